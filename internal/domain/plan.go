package domain

// Plan actions.
const (
	PlanActionChat = "chat"
	PlanActionTool = "tool"
)

// Plan is the structured decision extracted from one planner reply: either a
// direct chat answer or a single tool invocation. A plan is produced exactly
// once per turn and never mutated after validation.
type Plan struct {
	Action string         `json:"action"`
	Answer string         `json:"answer,omitempty"`
	Name   string         `json:"name,omitempty"`
	Args   map[string]any `json:"args,omitempty"`
}

// IsChat reports whether the plan is a direct answer.
func (p Plan) IsChat() bool {
	return p.Action == PlanActionChat
}
