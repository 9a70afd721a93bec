package analyzer

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/leasedesk/reconcile/internal/model"
	"github.com/leasedesk/reconcile/pkg/llm"
)

const claudeSystemPrompt = `You classify a single extracted field from a property document.
Respond with ONLY a JSON object, no prose:
{"semantic_type": "...", "canonical_name": "...", "data_type": "number|currency|text|phone|email|date|formula", "confidence": 0.0, "formula": "", "unit": ""}
semantic_type is a snake_case label for what the field means (e.g. monthly_rent, contact_phone).
canonical_name is the normalized field name. confidence is your certainty in [0,1].
formula is set only when the value is a calculation expression.`

// Claude judges candidates with an Anthropic model via pkg/llm.
type Claude struct {
	client llm.Client
	model  string
}

// NewClaude creates the Claude analyzer.
func NewClaude(client llm.Client, model string) *Claude {
	return &Claude{client: client, model: model}
}

func (a *Claude) ID() string { return "claude" }

func (a *Claude) Judge(ctx context.Context, c model.CandidateFact) (*model.Judgment, error) {
	prompt := "Field name: " + c.RawFieldName + "\nField value: " + c.RawValue +
		"\nSource method: " + string(c.SourceMethod)

	resp, err := a.client.Complete(ctx, llm.Request{
		Model:     a.model,
		MaxTokens: 256,
		System:    claudeSystemPrompt,
		Prompt:    prompt,
	})
	if err != nil {
		return nil, err
	}

	var parsed struct {
		SemanticType  string  `json:"semantic_type"`
		CanonicalName string  `json:"canonical_name"`
		DataType      string  `json:"data_type"`
		Confidence    float64 `json:"confidence"`
		Formula       string  `json:"formula"`
		Unit          string  `json:"unit"`
	}
	if err := json.Unmarshal([]byte(extractJSON(resp.Text)), &parsed); err != nil {
		return nil, &Error{
			AnalyzerID: a.ID(),
			Kind:       FailureMalformed,
			Err:        eris.Wrap(err, "claude: parse response"),
		}
	}
	if parsed.SemanticType == "" || parsed.DataType == "" {
		return nil, &Error{
			AnalyzerID: a.ID(),
			Kind:       FailureMalformed,
			Err:        eris.New("claude: missing required fields"),
		}
	}

	return &model.Judgment{
		SemanticType:  parsed.SemanticType,
		CanonicalName: parsed.CanonicalName,
		DataType:      model.DataType(parsed.DataType),
		Confidence:    parsed.Confidence,
		Formula:       parsed.Formula,
		Unit:          parsed.Unit,
	}, nil
}

// extractJSON pulls the first JSON object out of a model response,
// tolerating markdown code fences.
func extractJSON(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, "{"); i >= 0 {
		if j := strings.LastIndex(s, "}"); j > i {
			return s[i : j+1]
		}
	}
	return s
}
