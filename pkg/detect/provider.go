package detect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/soteria-labs/soteria/pkg/threat"
)

// HTTPReasoner calls a remote reasoning service over HTTP. The service
// receives the input together with the active exemplar set and returns a
// structured verdict.
type HTTPReasoner struct {
	endpoint  string
	client    *http.Client
	exemplars *ExemplarConfig
}

// HTTPReasonerConfig configures a remote reasoning client.
type HTTPReasonerConfig struct {
	Endpoint  string
	Timeout   time.Duration
	Exemplars *ExemplarConfig
}

type reasonRequest struct {
	Text           string          `json:"text"`
	Instructions   string          `json:"instructions,omitempty"`
	Demonstrations []Demonstration `json:"demonstrations,omitempty"`
}

type reasonResponse struct {
	IsThreat   bool    `json:"is_threat"`
	ThreatType string  `json:"threat_type"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// NewHTTPReasoner creates a reasoning client for the given endpoint.
func NewHTTPReasoner(cfg HTTPReasonerConfig) (*HTTPReasoner, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("reasoner: %w", ErrReasonerUnavailable)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPReasoner{
		endpoint:  cfg.Endpoint,
		client:    NewHTTPClient(timeout),
		exemplars: cfg.Exemplars,
	}, nil
}

// Analyze sends the text to the reasoning service. The ctx deadline bounds
// the whole exchange; callers decide what an expired deadline means.
func (r *HTTPReasoner) Analyze(ctx context.Context, text string) (Verdict, error) {
	reqBody := reasonRequest{Text: text}
	if r.exemplars != nil {
		reqBody.Instructions = r.exemplars.Instructions
		reqBody.Demonstrations = r.exemplars.Demonstrations
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return Verdict{}, fmt.Errorf("encode reasoning request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(payload))
	if err != nil {
		return Verdict{}, fmt.Errorf("build reasoning request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return Verdict{}, fmt.Errorf("reasoning request: %w", err)
	}
	defer resp.Body.Close()

	if err := CheckResponse(resp, "reasoner"); err != nil {
		return Verdict{}, err
	}

	var body reasonResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Verdict{}, fmt.Errorf("decode reasoning response: %w", err)
	}

	confidence := clamp01(body.Confidence)
	if !body.IsThreat {
		return Benign(confidence, body.Reasoning, LayerReasoning), nil
	}

	ty, ok := threat.Parse(body.ThreatType)
	if !ok || ty.IsBenign() {
		ty = threat.AdversarialInput
	}
	return Threat(ty, confidence, body.Reasoning, LayerReasoning), nil
}
