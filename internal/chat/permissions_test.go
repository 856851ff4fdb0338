package chat

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMessageInfo struct {
	senderID int64
	parentID *string
}

type fakeInfoLoader map[string]fakeMessageInfo

func (f fakeInfoLoader) MessageInfo(_ context.Context, id string) (int64, *string, error) {
	info, ok := f[id]
	if !ok {
		return 0, nil, ErrNotFound
	}
	return info.senderID, info.parentID, nil
}

func ref(s string) *string { return &s }

func TestMayActOnOwnMessage(t *testing.T) {
	loader := fakeInfoLoader{"m1": {senderID: 20}}
	require.NoError(t, MayActOn(context.Background(), loader, "m1", 20))
}

func TestMayActOnSomeoneElsesMessage(t *testing.T) {
	loader := fakeInfoLoader{"m1": {senderID: 20}}
	err := MayActOn(context.Background(), loader, "m1", 30)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestMayActOnDelegatesThroughAIChain(t *testing.T) {
	// tool call -> AI reply -> human trigger sent by user 20
	loader := fakeInfoLoader{
		"tool": {senderID: AIUserID, parentID: ref("ai")},
		"ai":   {senderID: AIUserID, parentID: ref("human")},
		"human": {senderID: 20},
	}

	require.NoError(t, MayActOn(context.Background(), loader, "tool", 20))

	err := MayActOn(context.Background(), loader, "tool", 30)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestMayActOnAIMessageWithoutParent(t *testing.T) {
	loader := fakeInfoLoader{"m1": {senderID: AIUserID}}
	err := MayActOn(context.Background(), loader, "m1", 20)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestMayActOnMissingMessage(t *testing.T) {
	err := MayActOn(context.Background(), fakeInfoLoader{}, "nope", 20)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMayActOnMissingAncestor(t *testing.T) {
	loader := fakeInfoLoader{"m1": {senderID: AIUserID, parentID: ref("gone")}}
	err := MayActOn(context.Background(), loader, "m1", 20)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMayActOnCyclicChain(t *testing.T) {
	// Corrupt data: the AI message points at itself. The walk must stop
	// with a distinct error instead of spinning.
	loader := fakeInfoLoader{"m1": {senderID: AIUserID, parentID: ref("m1")}}
	err := MayActOn(context.Background(), loader, "m1", 20)
	assert.ErrorIs(t, err, ErrChainTooLong)
}
