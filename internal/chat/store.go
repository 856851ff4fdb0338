package chat

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// Store issues all chat queries against the relational database. It owns no
// state besides the connection pool, so it is safe for concurrent use.
type Store struct {
	db *sql.DB
}

// NewStore creates a new chat store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// EnsureSession guarantees that the (user, session) pair claimed by an
// authenticated caller exists in storage, recreating both rows if the
// server-side state was lost (e.g. to a retention policy). The inserts use
// ON CONFLICT DO NOTHING so a concurrent recreation of the same session is
// a benign no-op rather than an error.
func (s *Store) EnsureSession(ctx context.Context, sessionID, userID int64, ipAddress string) error {
	var owner int64
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id FROM sessions WHERE id = $1`, sessionID).Scan(&owner)
	if err == nil {
		return nil // session exists, all good
	}
	if err != sql.ErrNoRows {
		return fmt.Errorf("failed to check session existence: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO users (id, type) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING`,
		userID, UserTypeAnonymous)
	if err != nil {
		return fmt.Errorf("failed to recreate user %d: %w", userID, err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, ip_address) VALUES ($1, $2, $3) ON CONFLICT (id) DO NOTHING`,
		sessionID, userID, ipAddress)
	if err != nil {
		return fmt.Errorf("failed to recreate session %d: %w", sessionID, err)
	}

	log.Info().Int64("session_id", sessionID).Int64("user_id", userID).
		Msg("Recreated session")
	return nil
}

// AddMessage stores a message, generating its identifier when the caller
// did not supply one, and returns the identifier. Type and status default
// to Normal/Sent. On success the room's latest-message pointer is advanced
// best-effort; a failure of that secondary write is logged but not
// returned.
func (s *Store) AddMessage(ctx context.Context, m Message) (string, error) {
	if m.DateSent.IsZero() {
		m.DateSent = time.Now()
	}

	if m.ID == "" {
		m.ID, m.DateSent = NewMessageID(m.RoomID, m.DateSent)
	} else {
		log.Warn().Str("message_id", m.ID).Msg("Message ID was provided by the caller")
	}

	if m.Type == MessageTypeUnknown {
		m.Type = MessageTypeNormal
	}
	if m.Status == MessageStatusUnknown {
		m.Status = MessageStatusSent
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, parent_id, room_id, sender_id, date_sent, type, status, content)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		m.ID, m.ParentID, m.RoomID, m.SenderID, m.DateSent, m.Type, m.Status, m.Content)
	if err != nil {
		return "", fmt.Errorf("failed to add the message: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE rooms SET latest_message_id = $1 WHERE id = $2`, m.ID, m.RoomID)
	if err != nil {
		// Deliberately non-fatal: the message itself is durable, only the
		// denormalized pointer is stale.
		log.Error().Err(err).Str("message_id", m.ID).Int64("room_id", m.RoomID).
			Msg("latest message pointer not advanced")
	}

	return m.ID, nil
}

// UpdateRoomState overwrites the room's state unconditionally. It is used
// both to enter AIBusy and to release back to Normal.
func (s *Store) UpdateRoomState(ctx context.Context, roomID int64, state RoomState) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE rooms SET state = $1 WHERE id = $2`, state, roomID)
	if err != nil {
		return fmt.Errorf("failed to update room %d state: %w", roomID, err)
	}
	return nil
}

// RoomInfoByGroup loads the room backing a group along with the group's
// join key and the AI cutoff pointer.
func (s *Store) RoomInfoByGroup(ctx context.Context, groupID int64) (RoomInfo, error) {
	var info RoomInfo
	var skipped sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT r.id, r.group_id, r.state, g.join_key, COALESCE(r.skipped_message_id, '')
		FROM rooms AS r
		JOIN groups AS g ON g.id = r.group_id
		WHERE g.id = $1`, groupID).
		Scan(&info.ID, &info.GroupID, &info.State, &info.JoinKey, &skipped)
	if err == sql.ErrNoRows {
		return RoomInfo{}, fmt.Errorf("group %d: %w", groupID, ErrNotFound)
	}
	if err != nil {
		return RoomInfo{}, fmt.Errorf("failed to get room info for group %d: %w", groupID, err)
	}
	info.SkippedMessageID = skipped.String
	return info, nil
}

// ListMessages returns the non-deleted messages of a room sent strictly
// after the given timestamp, oldest first. The viewer id is used to flag
// the caller's own messages; sender names fall back to "ANO-<user id>" for
// unnamed anonymous users.
func (s *Store) ListMessages(ctx context.Context, roomID int64, after time.Time, viewerID int64) ([]MessageListing, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.id, m.parent_id, u.id, COALESCE(NULLIF(u.name, ''), 'ANO-' || u.id),
		       m.date_sent, m.status, m.content
		FROM messages AS m
		JOIN sessions AS s ON s.id = m.sender_id
		JOIN users AS u ON u.id = s.user_id
		WHERE m.room_id = $1 AND m.date_sent > $2 AND m.date_deleted IS NULL
		ORDER BY m.room_id, m.date_sent`, roomID, after)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	messages := make([]MessageListing, 0)
	for rows.Next() {
		var m MessageListing
		if err := rows.Scan(&m.ID, &m.ParentID, &m.SenderID, &m.SenderName,
			&m.DateSent, &m.Status, &m.Content); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		m.SentByMe = m.SenderID == viewerID
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}
	return messages, nil
}

// SoftDeleteMessage marks a message deleted. Deleting a message that is
// already deleted (or missing) reports ErrNotActionable instead of
// succeeding again.
func (s *Store) SoftDeleteMessage(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE messages SET date_deleted = NOW() WHERE id = $1 AND date_deleted IS NULL`, id)
	if err != nil {
		return fmt.Errorf("failed to delete message %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("message %s: %w", id, ErrNotActionable)
	}
	return nil
}

// SetSkippedMessage points the room's AI cutoff at the given message, so
// it and everything before it stay out of future AI context.
func (s *Store) SetSkippedMessage(ctx context.Context, messageID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE rooms SET skipped_message_id = m.id
		FROM messages AS m
		WHERE m.id = $1 AND m.room_id = rooms.id`, messageID)
	if err != nil {
		return fmt.Errorf("failed to hide message %s from AI: %w", messageID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("message %s: %w", messageID, ErrNotFound)
	}
	return nil
}

// CutoffTime returns the send timestamp of the room's skipped message, or
// the epoch when no cutoff is set.
func (s *Store) CutoffTime(ctx context.Context, roomID int64) (time.Time, error) {
	var cutoff time.Time
	err := s.db.QueryRowContext(ctx, `
		SELECT m.date_sent
		FROM rooms AS r
		JOIN messages AS m ON m.id = r.skipped_message_id
		WHERE r.id = $1`, roomID).Scan(&cutoff)
	if err == sql.ErrNoRows {
		return time.Unix(0, 0), nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get cutoff for room %d: %w", roomID, err)
	}
	return cutoff, nil
}

// History reconstructs the conversation for the AI: all non-deleted
// messages with content, sent after the cutoff, oldest first, mapped to
// completion-API roles (the AI participant becomes "assistant", everyone
// else "user").
func (s *Store) History(ctx context.Context, roomID int64, cutoff time.Time) ([]HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT u.id, m.content
		FROM messages AS m
		JOIN sessions AS s ON s.id = m.sender_id
		JOIN users AS u ON u.id = s.user_id
		WHERE m.room_id = $1 AND m.date_sent > $2
		  AND m.content IS NOT NULL AND m.date_deleted IS NULL
		ORDER BY m.room_id, m.date_sent`, roomID, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	history := make([]HistoryEntry, 0)
	for rows.Next() {
		var userID int64
		var content string
		if err := rows.Scan(&userID, &content); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		role := "user"
		if userID == AIUserID {
			role = "assistant"
		}
		history = append(history, HistoryEntry{Role: role, Content: content})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating history: %w", err)
	}
	return history, nil
}

// MessageInfo returns the sending user id and parent pointer of a message,
// the two facts the ancestor permission walk needs.
func (s *Store) MessageInfo(ctx context.Context, id string) (senderUserID int64, parentID *string, err error) {
	err = s.db.QueryRowContext(ctx, `
		SELECT u.id, m.parent_id
		FROM messages AS m
		JOIN sessions AS s ON s.id = m.sender_id
		JOIN users AS u ON u.id = s.user_id
		WHERE m.id = $1`, id).Scan(&senderUserID, &parentID)
	if err == sql.ErrNoRows {
		return 0, nil, fmt.Errorf("message %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return 0, nil, fmt.Errorf("failed to get info of message %s: %w", id, err)
	}
	return senderUserID, parentID, nil
}

// Message loads one message by id.
func (s *Store) Message(ctx context.Context, id string) (Message, error) {
	var m Message
	err := s.db.QueryRowContext(ctx, `
		SELECT id, parent_id, room_id, sender_id, date_sent, type, status,
		       content, date_deleted, file_id
		FROM messages WHERE id = $1`, id).
		Scan(&m.ID, &m.ParentID, &m.RoomID, &m.SenderID, &m.DateSent, &m.Type,
			&m.Status, &m.Content, &m.DateDeleted, &m.FileID)
	if err == sql.ErrNoRows {
		return Message{}, fmt.Errorf("message %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Message{}, fmt.Errorf("failed to get message %s: %w", id, err)
	}
	return m, nil
}

// SetMessageFile attaches a stored file to a message, exactly once: the
// update only applies while file_id is still null, so a concurrent second
// synthesis cannot replace an already-attached artifact.
func (s *Store) SetMessageFile(ctx context.Context, messageID string, fileID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE messages SET file_id = $1 WHERE id = $2 AND file_id IS NULL`, fileID, messageID)
	if err != nil {
		return false, fmt.Errorf("failed to attach file to message %s: %w", messageID, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// InsertHTTPRequestLog records one outbound external API call for audit.
func (s *Store) InsertHTTPRequestLog(ctx context.Context, entry HTTPRequestLog) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO http_requests
		(message_id, url, duration_ms, status_code, request_content, response_headers, response_content)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.MessageID, entry.URL, entry.DurationMS, entry.StatusCode,
		entry.RequestContent, entry.ResponseHeaders, entry.ResponseContent)
	if err != nil {
		return fmt.Errorf("failed to insert http request log: %w", err)
	}
	return nil
}

// RoomsForUser lists the rooms the user is a member of, most recently
// active first.
func (s *Store) RoomsForUser(ctx context.Context, userID int64) ([]RoomListing, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.group_id, r.name, g.name, lm.date_sent, lm.content
		FROM rooms AS r
		JOIN groups AS g ON g.id = r.group_id
		JOIN room_members AS rm ON rm.room_id = r.id
		LEFT JOIN messages AS lm ON lm.id = r.latest_message_id
		WHERE rm.user_id = $1
		ORDER BY lm.date_sent DESC NULLS LAST, g.name ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query rooms: %w", err)
	}
	defer rows.Close()

	rooms := make([]RoomListing, 0)
	for rows.Next() {
		var r RoomListing
		if err := rows.Scan(&r.RoomID, &r.GroupID, &r.RoomName, &r.GroupName,
			&r.LatestDateSent, &r.LatestMessage); err != nil {
			return nil, fmt.Errorf("failed to scan room: %w", err)
		}
		rooms = append(rooms, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rooms: %w", err)
	}
	return rooms, nil
}

// UserByAccountID finds a user by their anonymous account id.
func (s *Store) UserByAccountID(ctx context.Context, accountID string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM users WHERE account_id = $1`, accountID).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to query user: %w", err)
	}
	return id, nil
}

// CreateAnonymousUser creates a user of type Anonymous bound to the given
// account id and returns the new user id.
func (s *Store) CreateAnonymousUser(ctx context.Context, accountID string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO users (account_id, type) VALUES ($1, $2) RETURNING id`,
		accountID, UserTypeAnonymous).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create new user: %w", err)
	}
	return id, nil
}

// CreateSession creates a session for the user and returns the session id.
func (s *Store) CreateSession(ctx context.Context, userID int64, ipAddress string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO sessions (user_id, ip_address) VALUES ($1, $2) RETURNING id`,
		userID, ipAddress).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create new session: %w", err)
	}
	return id, nil
}

// InsertFilePath records a stored file and returns its id.
func (s *Store) InsertFilePath(ctx context.Context, path, contentType string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO file_paths (path, content_type) VALUES ($1, $2) RETURNING id`,
		path, contentType).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert file path: %w", err)
	}
	return id, nil
}

// FilePath returns the stored path and content type of a file.
func (s *Store) FilePath(ctx context.Context, id int64) (path, contentType string, err error) {
	err = s.db.QueryRowContext(ctx,
		`SELECT path, content_type FROM file_paths WHERE id = $1`, id).
		Scan(&path, &contentType)
	if err == sql.ErrNoRows {
		return "", "", fmt.Errorf("file %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return "", "", fmt.Errorf("failed to get file path %d: %w", id, err)
	}
	return path, contentType, nil
}
