// Package policy evaluates chat admission rules written in Rego.
package policy

import (
	"context"
	"fmt"
	"sort"

	"github.com/open-policy-agent/opa/rego"

	"github.com/AyeshaKanwal90/ChatAI/internal/domain"
)

// Engine is the OPA policy engine.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine creates a new policy engine with the given policy content.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.chat_policy.deny"),
		rego.Module("chat_policy.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// Input builds the policy input document for a chat request.
func Input(req *domain.ChatRequest) map[string]interface{} {
	turns := make([]interface{}, 0, len(req.Messages))
	for _, t := range req.Messages {
		turns = append(turns, map[string]interface{}{
			"id":      t.ID,
			"role":    string(t.Role),
			"content": t.Content,
		})
	}
	return map[string]interface{}{
		"messages":             turns,
		"conversation_id":      req.ConversationID,
		"persist_user_turn":    req.ShouldPersistUserTurn(),
		"assistant_message_id": req.AssistantMessageID,
	}
}

// Evaluate returns the deny reasons for a chat request, sorted. An empty result
// admits the request.
func (e *Engine) Evaluate(ctx context.Context, req *domain.ChatRequest) ([]string, error) {
	results, err := e.query.Eval(ctx, rego.EvalInput(Input(req)))
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate policy: %w", err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return nil, nil
	}

	// deny is a set, which the evaluator hands back as a slice.
	values, ok := results[0].Expressions[0].Value.([]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected policy result type %T", results[0].Expressions[0].Value)
	}
	reasons := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok {
			reasons = append(reasons, s)
		}
	}
	sort.Strings(reasons)
	return reasons, nil
}

// DefaultPolicy is the default admission policy.
const DefaultPolicy = `
package chat_policy

import rego.v1

max_turns := 500

valid_roles := {"user", "assistant", "system"}

deny contains "messages must not be empty" if {
	count(input.messages) == 0
}

deny contains msg if {
	count(input.messages) > max_turns
	msg := sprintf("too many messages: %d > %d", [count(input.messages), max_turns])
}

deny contains msg if {
	some i, turn in input.messages
	role := object.get(turn, "role", "")
	not role in valid_roles
	msg := sprintf("message %d has invalid role %q", [i, role])
}

deny contains "persist_user_turn requires a user message" if {
	input.persist_user_turn
	not has_user_turn
}

deny contains "assistant_message_id is required" if {
	object.get(input, "assistant_message_id", "") == ""
}

has_user_turn if {
	some turn in input.messages
	turn.role == "user"
}
`
