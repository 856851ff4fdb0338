package ai

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Payload is the mutable conversation payload sent to the completion API.
// Template fields (model, tools, ...) come from prompt.json and are carried
// through untouched; Input grows as the conversation advances. Entries in
// Input are either role messages or literal copies of output entries from
// earlier rounds, so the protocol structure stays valid across round-trips.
type Payload struct {
	template map[string]json.RawMessage
	Input    []any
}

// MarshalJSON flattens the template fields and the input array into one
// request object.
func (p *Payload) MarshalJSON() ([]byte, error) {
	obj := make(map[string]any, len(p.template)+1)
	for k, v := range p.template {
		obj[k] = v
	}
	obj["input"] = p.Input
	return json.Marshal(obj)
}

// AddRoleMessage appends a plain {role, content} entry.
func (p *Payload) AddRoleMessage(role, content string) {
	p.Input = append(p.Input, map[string]string{"role": role, "content": content})
}

// AddRaw appends a literal protocol entry (an output item copied back, or a
// function_call_output).
func (p *Payload) AddRaw(entry json.RawMessage) {
	p.Input = append(p.Input, entry)
}

// LoadPromptTemplate reads prompt.json and developer_prompt.txt from dir
// and returns the payload seeded with any input entries the template
// already carries plus the developer prompt.
func LoadPromptTemplate(dir string) (*Payload, error) {
	raw, err := os.ReadFile(filepath.Join(dir, "prompt.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to read prompt.json: %w", err)
	}

	var template map[string]json.RawMessage
	if err := json.Unmarshal(raw, &template); err != nil {
		return nil, fmt.Errorf("failed to parse prompt.json: %w", err)
	}

	payload := &Payload{template: template}

	if seed, ok := template["input"]; ok {
		var entries []json.RawMessage
		if err := json.Unmarshal(seed, &entries); err != nil {
			return nil, fmt.Errorf("failed to parse prompt.json input: %w", err)
		}
		for _, e := range entries {
			payload.AddRaw(e)
		}
		delete(template, "input")
	}

	developer, err := os.ReadFile(filepath.Join(dir, "developer_prompt.txt"))
	if err != nil {
		return nil, fmt.Errorf("failed to read developer_prompt.txt: %w", err)
	}
	payload.AddRoleMessage("developer", strings.TrimRight(string(developer), "\n"))

	return payload, nil
}
