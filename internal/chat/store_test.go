package chat

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anochat/internal/database"
)

// setupTestStore connects to the database from DATABASE_URL and applies
// migrations. Integration tests are skipped in short mode.
func setupTestStore(t *testing.T) *Store {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db, err := database.NewDB()
	if err != nil {
		t.Skipf("database not available: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	require.NoError(t, database.Migrate(context.Background(), db))
	return NewStore(db)
}

// newTestRoom inserts a group and its room, returning both ids.
func newTestRoom(t *testing.T, s *Store) (groupID, roomID int64) {
	t.Helper()
	ctx := context.Background()

	err := s.db.QueryRowContext(ctx,
		`INSERT INTO groups (name, join_key) VALUES ('test group', 42) RETURNING id`).
		Scan(&groupID)
	require.NoError(t, err)

	err = s.db.QueryRowContext(ctx,
		`INSERT INTO rooms (group_id, name) VALUES ($1, 'test room') RETURNING id`, groupID).
		Scan(&roomID)
	require.NoError(t, err)
	return groupID, roomID
}

func TestEnsureSessionRecreatesLostRows(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	// Ids high enough to never clash with the sequences.
	const userID, sessionID = 900001, 900001

	require.NoError(t, s.EnsureSession(ctx, sessionID, userID, "10.0.0.1"))

	var userType UserType
	err := s.db.QueryRowContext(ctx,
		`SELECT type FROM users WHERE id = $1`, userID).Scan(&userType)
	require.NoError(t, err)
	assert.Equal(t, UserTypeAnonymous, userType)

	// A second call sees the existing session and changes nothing.
	require.NoError(t, s.EnsureSession(ctx, sessionID, userID, "10.0.0.2"))

	var count int
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sessions WHERE id = $1`, sessionID).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestAddMessageDefaultsAndPointer(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	_, roomID := newTestRoom(t, s)

	content := "hello"
	id, err := s.AddMessage(ctx, Message{RoomID: roomID, SenderID: AISessionID, Content: &content})
	require.NoError(t, err)
	assert.Len(t, id, 28)

	msg, err := s.Message(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, MessageTypeNormal, msg.Type)
	assert.Equal(t, MessageStatusSent, msg.Status)

	var latest string
	err = s.db.QueryRowContext(ctx,
		`SELECT latest_message_id FROM rooms WHERE id = $1`, roomID).Scan(&latest)
	require.NoError(t, err)
	assert.Equal(t, id, latest)
}

func TestRoomInfoByGroup(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	groupID, roomID := newTestRoom(t, s)

	info, err := s.RoomInfoByGroup(ctx, groupID)
	require.NoError(t, err)
	assert.Equal(t, roomID, info.ID)
	assert.Equal(t, 42, info.JoinKey)
	assert.Equal(t, RoomStateNormal, info.State)

	_, err = s.RoomInfoByGroup(ctx, -1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSoftDeleteIsNotRepeatable(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	_, roomID := newTestRoom(t, s)

	content := "to delete"
	id, err := s.AddMessage(ctx, Message{RoomID: roomID, SenderID: AISessionID, Content: &content})
	require.NoError(t, err)

	require.NoError(t, s.SoftDeleteMessage(ctx, id))
	assert.ErrorIs(t, s.SoftDeleteMessage(ctx, id), ErrNotActionable)

	listings, err := s.ListMessages(ctx, roomID, time.Unix(0, 0), AISessionID)
	require.NoError(t, err)
	assert.Empty(t, listings)
}

func TestHistoryRolesAndCutoff(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	_, roomID := newTestRoom(t, s)

	cutoff, err := s.CutoffTime(ctx, roomID)
	require.NoError(t, err)
	assert.True(t, cutoff.Equal(time.Unix(0, 0)), "unset cutoff defaults to epoch")

	first := "@AI hello"
	firstID, err := s.AddMessage(ctx, Message{RoomID: roomID, SenderID: AISessionID, Content: &first})
	require.NoError(t, err)

	second := "hi there"
	_, err = s.AddMessage(ctx, Message{RoomID: roomID, SenderID: AISessionID, Content: &second})
	require.NoError(t, err)

	history, err := s.History(ctx, roomID, cutoff)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "assistant", history[0].Role)
	assert.Equal(t, first, history[0].Content)

	// Skipping the first message moves the cutoff past it.
	require.NoError(t, s.SetSkippedMessage(ctx, firstID))
	cutoff, err = s.CutoffTime(ctx, roomID)
	require.NoError(t, err)

	history, err = s.History(ctx, roomID, cutoff)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, second, history[0].Content)
}

func TestSetMessageFileOnlyOnce(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	_, roomID := newTestRoom(t, s)

	content := "read me"
	id, err := s.AddMessage(ctx, Message{RoomID: roomID, SenderID: AISessionID, Content: &content})
	require.NoError(t, err)

	fileA, err := s.InsertFilePath(ctx, "a.mp3", "audio/mpeg")
	require.NoError(t, err)
	fileB, err := s.InsertFilePath(ctx, "b.mp3", "audio/mpeg")
	require.NoError(t, err)

	attached, err := s.SetMessageFile(ctx, id, fileA)
	require.NoError(t, err)
	assert.True(t, attached)

	attached, err = s.SetMessageFile(ctx, id, fileB)
	require.NoError(t, err)
	assert.False(t, attached, "second attachment must not replace the first")

	msg, err := s.Message(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, msg.FileID)
	assert.Equal(t, fileA, *msg.FileID)
}
