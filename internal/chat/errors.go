package chat

import "errors"

var (
	// ErrNotFound means a referenced room, group or message does not exist.
	ErrNotFound = errors.New("not found")

	// ErrForbidden means the caller may not act on the resource.
	ErrForbidden = errors.New("forbidden")

	// ErrRoomBusy means the room is already in an AI turn.
	ErrRoomBusy = errors.New("room is busy with an AI turn")

	// ErrChainTooLong means the ancestor walk exceeded its depth bound,
	// which indicates corrupt parent links rather than a plain denial.
	ErrChainTooLong = errors.New("message parent chain too long")

	// ErrNotActionable means the operation had nothing to act on, e.g.
	// deleting a message that is already deleted.
	ErrNotActionable = errors.New("message not actionable")
)
