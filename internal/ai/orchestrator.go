package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/anochat/internal/chat"
)

// ConversationStore is the slice of the chat store the orchestrator needs.
type ConversationStore interface {
	AddMessage(ctx context.Context, m chat.Message) (string, error)
	UpdateRoomState(ctx context.Context, roomID int64, state chat.RoomState) error
	CutoffTime(ctx context.Context, roomID int64) (time.Time, error)
	History(ctx context.Context, roomID int64, cutoff time.Time) ([]chat.HistoryEntry, error)
}

// Orchestrator drives one asynchronous AI conversation turn: it
// reconstructs the room's history, loops against the completion API
// dispatching tool calls until the model stops asking for them, persists
// every assistant and tool turn, and finally returns the room to Normal.
// It runs detached from the request that triggered it; all state is read
// back from storage, so a run could equally be executed by a separate
// process.
type Orchestrator struct {
	Store     ConversationStore
	Client    *Client
	Tools     *ToolRegistry
	PromptDir string
}

// Run executes one conversation turn for the room, triggered by the given
// message. Errors never propagate to a caller: the triggering request has
// long been answered, so failures are recorded as visible messages from
// the AI identity instead. The room is released on every exit path,
// including panics — nothing may leave a room permanently busy.
func (o *Orchestrator) Run(ctx context.Context, roomID int64, messageID string) {
	log.Info().Int64("room_id", roomID).Str("message_id", messageID).
		Msg("AI replying to message")

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Int64("room_id", roomID).
				Msg("AI conversation panicked")
		}
		// The job context may already be cancelled (timeout, shutdown);
		// the release must still reach storage.
		if err := o.Store.UpdateRoomState(context.WithoutCancel(ctx), roomID, chat.RoomStateNormal); err != nil {
			log.Error().Err(err).Int64("room_id", roomID).
				Msg("Failed to release room busy state")
		}
	}()

	o.converse(ctx, roomID, messageID)
}

func (o *Orchestrator) converse(ctx context.Context, roomID int64, messageID string) {
	// Prototype for every message this run persists: sent by the AI,
	// causally parented to the triggering message.
	proto := chat.Message{
		RoomID:   roomID,
		SenderID: chat.AISessionID,
		ParentID: &messageID,
	}

	payload, err := LoadPromptTemplate(o.PromptDir)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load AI prompt template")
		o.persist(ctx, proto, chat.MessageTypeNormal, err.Error())
		return
	}

	cutoff, err := o.Store.CutoffTime(ctx, roomID)
	if err != nil {
		log.Error().Err(err).Int64("room_id", roomID).Msg("Failed to get room cutoff")
		o.persist(ctx, proto, chat.MessageTypeNormal, "Internal error: failed to get data")
		return
	}

	history, err := o.Store.History(ctx, roomID, cutoff)
	if err != nil {
		log.Error().Err(err).Int64("room_id", roomID).Msg("Failed to load history")
		o.persist(ctx, proto, chat.MessageTypeNormal, "Internal error: failed to get data")
		return
	}
	for _, h := range history {
		payload.AddRoleMessage(h.Role, h.Content)
	}

	for {
		body, err := json.Marshal(payload)
		if err != nil {
			// Fatal for this run; nothing sensible can be sent.
			log.Error().Err(err).Msg("Failed to serialize AI request payload")
			o.persist(ctx, proto, chat.MessageTypeNormal, "Failed to JSON serialize")
			return
		}

		resp, err := o.Client.Complete(ctx, body, &messageID)
		if err != nil {
			o.persist(ctx, proto, chat.MessageTypeNormal,
				fmt.Sprintf("AI request failed: %v", err))
			return
		}

		if resp.StatusCode != http.StatusOK {
			o.persist(ctx, proto, chat.MessageTypeNormal,
				fmt.Sprintf("AI request failed with status %d", resp.StatusCode))
			return
		}

		if !o.processResponse(ctx, resp.Body, payload, proto) {
			return
		}
	}
}

// processResponse folds one API response into the running conversation and
// storage. It returns true when a tool call occurred and another
// round-trip is required.
func (o *Orchestrator) processResponse(ctx context.Context, body []byte, payload *Payload, proto chat.Message) bool {
	var parsed struct {
		Output []json.RawMessage `json:"output"`
		Usage  json.RawMessage   `json:"usage"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil || parsed.Output == nil {
		log.Error().Str("response", string(body)).Msg("No output in AI response")
		o.persist(ctx, proto, chat.MessageTypeNormal, "Internal Error: No output in AI response.")
		return false
	}

	if len(parsed.Usage) > 0 && string(parsed.Usage) != "null" {
		log.Info().RawJSON("usage", parsed.Usage).Msg("AI tokens usage")
	}

	sendAgain := false

	for _, raw := range parsed.Output {
		// Literal copy into the running context, so the next round-trip
		// carries exactly what the API produced.
		payload.AddRaw(raw)

		var entry struct {
			Type      string `json:"type"`
			CallID    string `json:"call_id"`
			Name      string `json:"name"`
			Arguments string `json:"arguments"`
			Content   []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
		}
		if err := json.Unmarshal(raw, &entry); err != nil {
			log.Error().Err(err).Str("entry", string(raw)).Msg("Unparseable output entry")
			continue
		}

		if len(entry.Content) > 0 && entry.Content[0].Text != "" {
			o.persist(ctx, proto, chat.MessageTypeNormal, entry.Content[0].Text)
		}

		if entry.Type == "function_call" {
			sendAgain = true

			out := o.Tools.Dispatch(ctx, toolCall{
				CallID:    entry.CallID,
				Name:      entry.Name,
				Arguments: entry.Arguments,
			})

			outRaw, err := json.Marshal(out)
			if err == nil {
				payload.AddRaw(outRaw)
			}

			o.persist(ctx, proto, chat.MessageTypeToolCall, toolCallRecord(raw, out))
		}
	}

	return sendAgain
}

// toolCallRecord serializes the tool invocation together with its result
// for the ToolCall message content.
func toolCallRecord(call json.RawMessage, out toolOutput) string {
	var record map[string]any
	if err := json.Unmarshal(call, &record); err != nil {
		record = map[string]any{"call": string(call)}
	}
	record["output"] = out.Output

	content, err := json.MarshalIndent(record, "", "\t")
	if err != nil {
		return string(call)
	}
	return string(content)
}

func (o *Orchestrator) persist(ctx context.Context, proto chat.Message, typ chat.MessageType, content string) {
	proto.Type = typ
	proto.Content = &content
	// Error replies are written after the run already failed, possibly
	// with a cancelled context; they must land regardless.
	if _, err := o.Store.AddMessage(context.WithoutCancel(ctx), proto); err != nil {
		log.Error().Err(err).Int64("room_id", proto.RoomID).Msg("Failed to store AI message")
	}
}
