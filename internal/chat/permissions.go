package chat

import (
	"context"
	"fmt"
)

// maxAncestorDepth bounds the permission walk. Parent timestamps strictly
// precede child timestamps so real chains terminate quickly; hitting the
// bound means the parent links are corrupt.
const maxAncestorDepth = 64

// MessageInfoLoader is the slice of the store the permission walk needs.
type MessageInfoLoader interface {
	MessageInfo(ctx context.Context, id string) (senderUserID int64, parentID *string, err error)
}

// MayActOn decides whether the user may delete or hide the message by
// walking its causal parent chain: a message is actionable by its own
// sender, and AI or tool-call messages delegate authority to whichever
// human message caused them. Returns nil when authorized, ErrForbidden
// when the chain denies, ErrNotFound when a link is missing and
// ErrChainTooLong when the depth bound is hit.
func MayActOn(ctx context.Context, loader MessageInfoLoader, messageID string, userID int64) error {
	id := messageID
	for depth := 0; depth < maxAncestorDepth; depth++ {
		senderID, parentID, err := loader.MessageInfo(ctx, id)
		if err != nil {
			return err
		}

		if senderID == userID {
			return nil // message was sent or caused by the caller
		}

		// Only the AI's messages delegate up the chain; a human message
		// sent by someone else is a hard denial.
		if senderID != AIUserID || parentID == nil || *parentID == "" {
			return fmt.Errorf("message %s was not sent nor caused by user %d: %w",
				messageID, userID, ErrForbidden)
		}

		id = *parentID
	}
	return fmt.Errorf("walking ancestors of message %s: %w", messageID, ErrChainTooLong)
}
