package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/anochat/internal/chat"
)

type sendMessageRequest struct {
	GroupID  int64      `json:"groupId"`
	JoinKey  int        `json:"joinKey"`
	ParentID *string    `json:"parentId"`
	Content  string     `json:"content"`
	DateSent *time.Time `json:"dateSent"`
}

type messageResponse struct {
	ID         string    `json:"id"`
	ParentID   *string   `json:"parentId,omitempty"`
	SenderName string    `json:"senderName"`
	DateSent   time.Time `json:"dateSent"`
	Content    *string   `json:"content"`
	SentByMe   bool      `json:"sentByMe"`
}

// sendMessage stores a message in the group's room. A message addressed to
// the AI participant additionally flips the room to AIBusy and enqueues the
// detached reply job; the busy check runs before anything is stored, so a
// mention racing an in-flight AI turn is rejected without persisting.
func (s *Server) sendMessage(c echo.Context) error {
	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	// Surrounding whitespace would defeat the mention checks below, so it
	// is stripped before anything looks at the content.
	req.Content = strings.TrimSpace(req.Content)
	if req.Content == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message content is required")
	}

	if strings.HasPrefix(req.Content, "@ ") {
		return echo.NewHTTPError(http.StatusBadRequest, "a name must follow '@' directly")
	}

	addressed, malformed := chat.AIMention(req.Content)
	if malformed {
		return echo.NewHTTPError(http.StatusBadRequest, "A space after '@AI' is required.")
	}

	ctx := c.Request().Context()

	room, err := s.store.RoomInfoByGroup(ctx, req.GroupID)
	if err != nil {
		return httpError(err)
	}
	if room.JoinKey != req.JoinKey {
		return echo.NewHTTPError(http.StatusForbidden, "wrong join key")
	}

	if addressed && room.State == chat.RoomStateAIBusy {
		return httpError(chat.ErrRoomBusy)
	}

	msg := chat.Message{
		RoomID:   room.ID,
		ParentID: req.ParentID,
		SenderID: currentSessionID(c),
		Content:  &req.Content,
	}
	if req.DateSent != nil {
		msg.DateSent = *req.DateSent
	}

	id, err := s.store.AddMessage(ctx, msg)
	if err != nil {
		return httpError(err)
	}

	aiBusy := false
	if addressed {
		if err := s.store.UpdateRoomState(ctx, room.ID, chat.RoomStateAIBusy); err != nil {
			return httpError(err)
		}
		if err := s.queue.EnqueueAIReply(ctx, room.ID, id); err != nil {
			log.Error().Err(err).Int64("room_id", room.ID).Str("message_id", id).
				Msg("Failed to enqueue AI reply")
			// The message is stored but no run will release the room, so
			// release it here.
			if rerr := s.store.UpdateRoomState(ctx, room.ID, chat.RoomStateNormal); rerr != nil {
				log.Error().Err(rerr).Int64("room_id", room.ID).
					Msg("Failed to release room busy state")
			}
			return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
		}
		aiBusy = true
	}

	return c.JSON(http.StatusCreated, map[string]interface{}{
		"id":     id,
		"aiBusy": aiBusy,
	})
}

// listMessages returns the room behind a group plus its messages sent
// after the given timestamp.
func (s *Server) listMessages(c echo.Context) error {
	groupID, err := strconv.ParseInt(c.QueryParam("groupId"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "groupId is required")
	}
	joinKey, err := strconv.Atoi(c.QueryParam("joinKey"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "joinKey is required")
	}

	after := time.Unix(0, 0)
	if raw := c.QueryParam("lastMessageDateSent"); raw != "" {
		after, err = time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid lastMessageDateSent")
		}
	}

	ctx := c.Request().Context()

	room, err := s.store.RoomInfoByGroup(ctx, groupID)
	if err != nil {
		return httpError(err)
	}
	if room.JoinKey != joinKey {
		return echo.NewHTTPError(http.StatusForbidden, "wrong join key")
	}

	messages, err := s.store.ListMessages(ctx, room.ID, after, currentSessionID(c))
	if err != nil {
		return httpError(err)
	}

	resp := make([]messageResponse, 0, len(messages))
	for _, m := range messages {
		resp = append(resp, messageResponse{
			ID:         m.ID,
			ParentID:   m.ParentID,
			SenderName: m.SenderName,
			DateSent:   m.DateSent,
			Content:    m.Content,
			SentByMe:   m.SentByMe,
		})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"roomId":           room.ID,
		"state":            room.State,
		"skippedMessageId": room.SkippedMessageID,
		"messages":         resp,
	})
}

// deleteMessage soft-deletes a message after the ancestor permission walk
// authorized the caller.
func (s *Server) deleteMessage(c echo.Context) error {
	id := c.QueryParam("id")
	if id == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "id is required")
	}

	ctx := c.Request().Context()

	if err := chat.MayActOn(ctx, s.store, id, currentUserID(c)); err != nil {
		return httpError(err)
	}
	if err := s.store.SoftDeleteMessage(ctx, id); err != nil {
		return httpError(err)
	}

	return c.NoContent(http.StatusNoContent)
}

// hideFromAI points the room's AI cutoff at the message, excluding it and
// everything before it from future AI context.
func (s *Server) hideFromAI(c echo.Context) error {
	id := c.QueryParam("id")
	if id == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "id is required")
	}

	ctx := c.Request().Context()

	if err := chat.MayActOn(ctx, s.store, id, currentUserID(c)); err != nil {
		return httpError(err)
	}
	if err := s.store.SetSkippedMessage(ctx, id); err != nil {
		return httpError(err)
	}

	return c.NoContent(http.StatusNoContent)
}
