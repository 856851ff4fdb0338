package ai

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"
)

// ToolHandler executes one named capability with the model-supplied
// arguments (a JSON document) and returns its output for the conversation.
type ToolHandler func(ctx context.Context, arguments string) (string, error)

// ToolRegistry maps capability names to handlers. It is a plain lookup
// table: registering a tool makes it callable by the model, nothing more.
type ToolRegistry struct {
	handlers map[string]ToolHandler
}

// NewToolRegistry creates an empty registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{handlers: make(map[string]ToolHandler)}
}

// Register adds a handler under the given name, replacing any previous one.
func (r *ToolRegistry) Register(name string, handler ToolHandler) {
	r.handlers[name] = handler
}

// toolCall is the subset of a function_call output entry the dispatcher
// needs.
type toolCall struct {
	CallID    string `json:"call_id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// toolOutput is the entry appended to the conversation so the model sees
// the result of its call on the next round-trip.
type toolOutput struct {
	Type   string  `json:"type"`
	CallID string  `json:"call_id"`
	Output *string `json:"output"`
}

// Dispatch runs the named tool and returns the function_call_output entry
// for the conversation. Unknown names are logged loudly and yield a
// structured failure payload carrying the call id; one unrecognized tool
// must not abort the whole conversation.
func (r *ToolRegistry) Dispatch(ctx context.Context, call toolCall) toolOutput {
	log.Info().Str("tool", call.Name).Str("arguments", call.Arguments).Msg("Tool call")

	out := toolOutput{Type: "function_call_output", CallID: call.CallID}

	handler, ok := r.handlers[call.Name]
	if !ok {
		log.Error().Str("tool", call.Name).Str("call_id", call.CallID).
			Msg("Unknown tool call name")
		failure := toolFailure(call.CallID, fmt.Sprintf("unknown tool: %s", call.Name))
		out.Output = &failure
		return out
	}

	result, err := handler(ctx, call.Arguments)
	if err != nil {
		log.Error().Err(err).Str("tool", call.Name).Msg("Tool call failed")
		failure := toolFailure(call.CallID, err.Error())
		out.Output = &failure
		return out
	}

	out.Output = &result
	return out
}

func toolFailure(callID, message string) string {
	b, _ := json.Marshal(map[string]string{"call_id": callID, "error": message})
	return string(b)
}
