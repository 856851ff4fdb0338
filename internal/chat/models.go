package chat

import "time"

// AIUserID is the reserved user id of the AI participant. It is seeded by
// the migrations and must never be reassigned.
const AIUserID int64 = 1

// AISessionID is the seeded acting session of the AI participant. Message
// senders are sessions, so AI-authored messages carry this id.
const AISessionID int64 = 1

type UserType int

const (
	UserTypeUnknown UserType = iota
	UserTypeNormal
	UserTypeAnonymous
	UserTypeServer
)

type UserStatus int

const (
	UserStatusUnknown UserStatus = iota
	UserStatusActive
	UserStatusDeleted
	UserStatusBlocked
)

type RoomState int

const (
	RoomStateUnknown RoomState = iota
	RoomStateNormal
	RoomStateAIBusy
)

type MessageType int

const (
	MessageTypeUnknown MessageType = iota
	MessageTypeNormal
	MessageTypeToolCall
	MessageTypeEvent
)

type MessageStatus int

const (
	MessageStatusUnknown MessageStatus = iota
	MessageStatusSent
)

type User struct {
	ID        int64
	AccountID *string
	Type      UserType
	Status    UserStatus
	Name      string
	CreatedAt time.Time
}

// Session is the caller's acting identity, distinct from the user that owns
// it. Sessions are created on login and recreated if the backing row was
// lost (see Store.EnsureSession).
type Session struct {
	ID        int64
	UserID    int64
	IPAddress string
	CreatedAt time.Time
}

type Message struct {
	ID          string
	ParentID    *string
	RoomID      int64
	SenderID    int64
	DateSent    time.Time
	Type        MessageType
	Status      MessageStatus
	Content     *string
	DateDeleted *time.Time
	FileID      *int64
}

// RoomInfo is the subset of room plus group data the message endpoints need
// to validate access and report the AI cutoff pointer.
type RoomInfo struct {
	ID               int64
	GroupID          int64
	State            RoomState
	JoinKey          int
	SkippedMessageID string
}

// RoomListing is one entry of the rooms overview for a user.
type RoomListing struct {
	RoomID         int64
	GroupID        int64
	RoomName       string
	GroupName      string
	LatestDateSent *time.Time
	LatestMessage  *string
}

// MessageListing is one entry of the message history returned to clients.
type MessageListing struct {
	ID         string
	ParentID   *string
	SenderID   int64
	SenderName string
	DateSent   time.Time
	Status     MessageStatus
	Content    *string
	SentByMe   bool
}

// HistoryEntry is a message mapped to a completion-API role for the
// orchestrator's context reconstruction.
type HistoryEntry struct {
	Role    string
	Content string
}

// HTTPRequestLog is an audit record of one outbound call to the completion
// or speech-synthesis API.
type HTTPRequestLog struct {
	ID              int64
	MessageID       *string
	URL             string
	DurationMS      int64
	StatusCode      int
	RequestContent  string
	ResponseHeaders string
	ResponseContent string
	CreatedAt       time.Time
}
