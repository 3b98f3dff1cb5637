// Package planner builds the planning prompt sent to the conversational
// backend and turns its replies into validated plans. A plan either
// answers the user directly or names exactly one tool to call.
package planner

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jsamit27/ava/internal/domain"
	"github.com/jsamit27/ava/internal/shared"
	"github.com/jsamit27/ava/internal/tools"
)

const fence = "```"

// System is the guidance prepended to every planning prompt. The
// backend must answer with exactly one JSON object describing either a
// direct reply or a single tool invocation.
var System = fmt.Sprintf(`You are a planner that decides whether to respond directly or call ONE tool.

Return EXACTLY ONE JSON object (and nothing else) inside %[1]sjson code fences.

Valid outputs:

%[1]sjson
{"action":"chat","answer":"<final user-facing text>"}
%[1]s
OR
%[1]sjson
{"action":"tool","name":"<one_of:%[2]s>","args":{}}
%[1]s

Rules:
- If you do not have enough details to call a tool, ask a short clarifying question with action="chat".
- NEVER include sqlite_path, lead_id, buyer_id, receiver_number, or buyer_offer_cents in args (runtime injects the first four; buyer_offer_cents can only be set by GMTV employees, not by Ava).
- IMPORTANT: You represent GMTV(Give me the vin company) (the buyer). Customers are sellers. You can ask customers what they want to sell for (seller_ask_cents), but you CANNOT set buyer_offer_cents (GMTV's offer - only employees can do that).
- Use ONE tool only per response.
- Keep args minimal and valid for the chosen tool (e.g., for car_retrieve use one of: car_id, vin, model, make, year).
- Output must be valid JSON (double quotes, no trailing commas).
- Always attempt tool calls when the user's request matches a tool's purpose, even if previous tool calls failed. Previous errors don't mean all tools are broken - try the appropriate tool for the current request.
`, fence, strings.Join(tools.Names(), "|"))

// BuildResultPrompt produces the second message of a turn: given a
// successful tool result, ask the backend to phrase it as plain
// conversational text.
func BuildResultPrompt(userMsg, toolName string, result *domain.ToolResult) string {
	rendered, err := json.Marshal(result)
	if err != nil {
		rendered = []byte(result.Message)
	}
	return fmt.Sprintf(`The user asked: %q

I called the tool '%s' and got this result:
%s

Please provide a natural, conversational response to the user's question based on this tool result. Be concise and directly answer what they asked. Return ONLY the response text, no JSON, no code blocks, just plain conversational text.`, userMsg, toolName, rendered)
}

// BuildPrompt produces the planning message for one user turn. Light
// session context is included so the planner knows the environment,
// alongside the explicit rule never to echo those values into args.
func BuildPrompt(userMsg string, sess *domain.Session, logsSnippet string) string {
	ctxLines := []string{
		fmt.Sprintf("- sqlite_path: %s", sess.StorageDSN),
		fmt.Sprintf("- lead_id: %s", sess.LeadID),
	}
	if logsSnippet != "" {
		ctxLines = append(ctxLines, fmt.Sprintf("- recent_logs: %s", shared.Truncate(logsSnippet, 300)))
	}

	return System +
		"\n\nAvailable Tools:\n" + tools.Catalog() +
		"\n\nContext:\n" + strings.Join(ctxLines, "\n") +
		"\n\nUser says:\n" + userMsg +
		"\n\nReturn only ONE JSON object inside " + fence + "json fences."
}
