package planner

import (
	"errors"
	"fmt"

	"github.com/jsamit27/ava/internal/domain"
	"github.com/jsamit27/ava/internal/tools"
)

// runtimeKeys are injected from the session at dispatch time; a plan
// that tries to supply them is rejected outright.
var runtimeKeys = []string{"sqlite_path", "lead_id", "buyer_id", "receiver_number"}

// Validate checks a parsed plan's shape and returns either the typed
// plan or the first rule violation. It is side-effect free.
func Validate(raw map[string]any) (*domain.Plan, error) {
	if raw == nil {
		return nil, errors.New("plan is not a JSON object")
	}

	action, _ := raw["action"].(string)
	switch action {
	case domain.PlanActionChat:
		answer, ok := raw["answer"].(string)
		if !ok {
			return nil, errors.New("chat plan must include string 'answer'")
		}
		return &domain.Plan{Action: domain.PlanActionChat, Answer: answer}, nil

	case domain.PlanActionTool:
		name, _ := raw["name"].(string)
		if !tools.Known(name) {
			return nil, fmt.Errorf("unknown tool '%s'", name)
		}
		args, ok := raw["args"].(map[string]any)
		if !ok {
			return nil, errors.New("tool plan must include object 'args'")
		}
		for _, key := range runtimeKeys {
			if _, found := args[key]; found {
				return nil, errors.New("args must not include sqlite_path, lead_id, buyer_id, or receiver_number")
			}
		}
		if _, found := args["buyer_offer_cents"]; found {
			return nil, errors.New("args must not include buyer_offer_cents (only GMTV employees can set the company's offer)")
		}
		return &domain.Plan{Action: domain.PlanActionTool, Name: name, Args: args}, nil

	default:
		return nil, errors.New("action must be 'chat' or 'tool'")
	}
}
