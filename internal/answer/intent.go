package answer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

const intentPrompt = `Analyze the following query and extract structured information:
Query: %q

Extract the following information and return as JSON:
{
    "entities": ["list of entities mentioned (policy numbers, names, etc.)"],
    "action": "primary action/question type (e.g., 'coverage inquiry', 'claim processing', 'waiting period')",
    "context": "main subject/context (e.g., 'maternity benefits', 'pre-existing conditions')",
    "intent": "specific intent (e.g., 'check coverage', 'find waiting period', 'verify benefits')"
}

Return only the JSON object, no additional text.`

// FallbackIntent is used when the model reply cannot be parsed.
func FallbackIntent(query string) StructuredQuery {
	ctx := query
	if r := []rune(ctx); len(r) > 100 {
		ctx = string(r[:100])
	}
	return StructuredQuery{
		Entities: []string{},
		Action:   "general_inquiry",
		Context:  ctx,
		Intent:   "answer_question",
	}
}

// ExtractIntent asks the intent generator to classify query. It never
// fails: generation or parse errors yield FallbackIntent.
func (a *Answerer) ExtractIntent(ctx context.Context, query string) StructuredQuery {
	if a.intent == nil {
		return FallbackIntent(query)
	}
	reply, err := a.intent.Generate(ctx, fmt.Sprintf(intentPrompt, query))
	if err != nil {
		a.logger.Warn("intent extraction failed", "error", err)
		return FallbackIntent(query)
	}
	sq, err := parseIntent(reply)
	if err != nil {
		a.logger.Warn("intent reply unparseable", "error", err)
		return FallbackIntent(query)
	}
	return sq
}

func parseIntent(reply string) (StructuredQuery, error) {
	reply = stripCodeFence(reply)
	var sq StructuredQuery
	if err := json.Unmarshal([]byte(reply), &sq); err != nil {
		return StructuredQuery{}, err
	}
	if sq.Action == "" || sq.Intent == "" {
		return StructuredQuery{}, fmt.Errorf("intent reply missing action or intent")
	}
	if sq.Entities == nil {
		sq.Entities = []string{}
	}
	return sq, nil
}

// stripCodeFence removes a surrounding ```json ... ``` block.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
