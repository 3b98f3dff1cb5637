// Package agent runs one conversational turn end to end: plan
// acquisition from the backend, validation, tool dispatch, and the
// final phrasing of the reply. Every step lands in the session's turn
// trace.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jsamit27/ava/internal/domain"
	"github.com/jsamit27/ava/internal/planner"
	"github.com/jsamit27/ava/internal/shared"
)

// User-facing replies for turns that never reach a tool. Failures here
// are expected operating conditions, so each gets a short apology
// instead of an error page.
const (
	ReplyNoPlan      = "Sorry—I couldn't figure out a plan. Could you rephrase?"
	ReplyInvalidPlan = "Sorry—my plan came out malformed. Please try again."
	replyGenericFail = "That did not work."
)

// Asker is the conversational backend surface the controller needs.
// Ask never fails: the client absorbs every transport problem and
// returns either reply text or its fixed apology.
type Asker interface {
	Ask(ctx context.Context, prompt string) string
}

// Dispatcher routes a validated tool plan to exactly one backend
// operation.
type Dispatcher interface {
	Dispatch(ctx context.Context, sess *domain.Session, name string, args map[string]any) *domain.ToolResult
}

// Controller drives single turns. It is stateless; per-session state
// (backend client, turn log) is passed in by the session manager.
type Controller struct {
	Tools Dispatcher
}

// Turn resolves one user message into a final reply. The steps are
// strictly sequential: each depends on the previous step's output.
func (c *Controller) Turn(ctx context.Context, backend Asker, sess *domain.Session, log *domain.TurnLog, userMsg string) string {
	log.Append(domain.EventUserInput, userMsg)

	prompt := planner.BuildPrompt(userMsg, sess, logsSnippet(log))
	raw := backend.Ask(ctx, prompt)

	parsed, found := planner.Extract(raw)
	if !found {
		log.Append(domain.EventPlannerFail, shared.Truncate(raw, 200))
		return ReplyNoPlan
	}

	plan, err := planner.Validate(parsed)
	if err != nil {
		log.AppendRaw(domain.EventPlanInvalid, err.Error(), shared.Truncate(raw, 200))
		return ReplyInvalidPlan
	}

	if plan.IsChat() {
		answer := Normalize(plan.Answer)
		log.Append(domain.EventChat, shared.Truncate(answer, 120))
		return answer
	}

	log.Append(domain.EventToolCall, fmt.Sprintf("%s(%v)", plan.Name, plan.Args))
	result := c.Tools.Dispatch(ctx, sess, plan.Name, plan.Args)
	log.Append(domain.EventToolResult, shared.Truncate(renderResult(result), 200))

	if !result.OK() {
		return failureReply(result)
	}

	phrased := backend.Ask(ctx, planner.BuildResultPrompt(userMsg, plan.Name, result))
	reply := Normalize(phrased)
	log.Append(domain.EventToolResponse, shared.Truncate(reply, 120))
	return reply
}

// failureReply turns an unsuccessful tool result into the sentence the
// user sees. TIME_ALREADY_BOOKED is the one code designed to surface
// its detail; everything else falls back to the result message.
func failureReply(result *domain.ToolResult) string {
	if result.Code == domain.CodeTimeAlreadyBooked {
		return fmt.Sprintf("The buyer is already booked at %s. Please choose another time.", bookedTime(result))
	}
	if result.Message != "" {
		return result.Message
	}
	return replyGenericFail
}

func bookedTime(result *domain.ToolResult) string {
	existing, _ := result.Data["existing_schedule"].(map[string]any)
	if t, ok := existing["schedule_time"].(string); ok {
		return t
	}
	return fmt.Sprintf("%v", existing["schedule_time"])
}

// logsSnippet renders the last three trace entries for the planner
// prompt so the backend sees what just happened.
func logsSnippet(log *domain.TurnLog) string {
	recent := log.Recent(3)
	parts := make([]string, 0, len(recent))
	for _, entry := range recent {
		parts = append(parts, entry.Event+":"+entry.Detail)
	}
	return strings.Join(parts, "; ")
}

func renderResult(result *domain.ToolResult) string {
	rendered, err := json.Marshal(result)
	if err != nil {
		slog.Warn("Failed to render tool result for trace", "error", err)
		return result.Message
	}
	return string(rendered)
}
