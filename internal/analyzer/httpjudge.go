package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/leasedesk/reconcile/internal/model"
	"github.com/leasedesk/reconcile/internal/resilience"
)

// HTTPJudge calls a generic JSON judge endpoint: POST the candidate,
// receive a judgment. A per-endpoint rate limiter keeps concurrent
// captures inside the remote quota.
type HTTPJudge struct {
	id      string
	url     string
	apiKey  string
	limiter *rate.Limiter
	client  *http.Client
}

// HTTPJudgeOption configures an HTTPJudge.
type HTTPJudgeOption func(*HTTPJudge)

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) HTTPJudgeOption {
	return func(j *HTTPJudge) { j.client = hc }
}

// WithRateLimit sets the request rate in calls per second.
func WithRateLimit(perSec float64) HTTPJudgeOption {
	return func(j *HTTPJudge) {
		if perSec > 0 {
			j.limiter = rate.NewLimiter(rate.Limit(perSec), 1)
		}
	}
}

// NewHTTPJudge creates an analyzer backed by a remote judge endpoint.
func NewHTTPJudge(id, url, apiKey string, opts ...HTTPJudgeOption) *HTTPJudge {
	j := &HTTPJudge{
		id:      id,
		url:     url,
		apiKey:  apiKey,
		limiter: rate.NewLimiter(rate.Limit(5), 1),
		client:  &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

func (j *HTTPJudge) ID() string { return j.id }

type judgeRequest struct {
	FieldName    string `json:"field_name"`
	Value        string `json:"value"`
	SourceMethod string `json:"source_method"`
}

type judgeResponse struct {
	SemanticType  string  `json:"semantic_type"`
	CanonicalName string  `json:"canonical_name"`
	DataType      string  `json:"data_type"`
	Confidence    float64 `json:"confidence"`
	Formula       string  `json:"formula,omitempty"`
	Unit          string  `json:"unit,omitempty"`
}

func (j *HTTPJudge) Judge(ctx context.Context, c model.CandidateFact) (*model.Judgment, error) {
	if err := j.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "httpjudge: rate limit wait")
	}

	body, err := json.Marshal(judgeRequest{
		FieldName:    c.RawFieldName,
		Value:        c.RawValue,
		SourceMethod: string(c.SourceMethod),
	})
	if err != nil {
		return nil, eris.Wrap(err, "httpjudge: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, j.url, bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "httpjudge: build request")
	}
	req.Header.Set("Content-Type", "application/json")
	if j.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+j.apiKey)
	}

	resp, err := j.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "httpjudge: request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		err := eris.Errorf("httpjudge: status %d: %s", resp.StatusCode, string(b))
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	var jr judgeResponse
	if err := json.NewDecoder(resp.Body).Decode(&jr); err != nil {
		return nil, &Error{
			AnalyzerID: j.id,
			Kind:       FailureMalformed,
			Err:        eris.Wrap(err, "httpjudge: decode response"),
		}
	}
	if jr.SemanticType == "" {
		return nil, &Error{
			AnalyzerID: j.id,
			Kind:       FailureMalformed,
			Err:        eris.New("httpjudge: empty semantic_type"),
		}
	}

	return &model.Judgment{
		SemanticType:  jr.SemanticType,
		CanonicalName: jr.CanonicalName,
		DataType:      model.DataType(jr.DataType),
		Confidence:    jr.Confidence,
		Formula:       jr.Formula,
		Unit:          jr.Unit,
	}, nil
}
