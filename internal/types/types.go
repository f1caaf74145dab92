package types

// Property describes a single tool argument.
type Property struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Default     any    `json:"default,omitempty"`
}

// InputSchema is the JSON-schema object advertised for a tool.
type InputSchema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required"`
}

// ToolDescriptor describes a tool callable through the bridge.
type ToolDescriptor struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema InputSchema `json:"input_schema"`
}

// Arguments holds loosely typed invocation arguments.
type Arguments map[string]any

// Envelope is the response body of a successful invocation. It always
// carries "ok".
type Envelope map[string]any

// NewEnvelope returns an envelope with ok=true and the given fields.
func NewEnvelope(fields map[string]any) Envelope {
	env := Envelope{"ok": true}
	for k, v := range fields {
		env[k] = v
	}
	return env
}
