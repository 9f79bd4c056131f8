package artifact

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"atelier/internal/models"
)

// ReplicateProducer renders images through a Replicate-style predictions
// API, blocking until the prediction resolves (Prefer: wait).
type ReplicateProducer struct {
	BaseURL string
	Token   string
	Model   string
	HTTP    *http.Client
}

func NewReplicateProducer(baseURL, token, model string) *ReplicateProducer {
	return &ReplicateProducer{
		BaseURL: baseURL,
		Token:   token,
		Model:   model,
		HTTP: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

type predictionRequest struct {
	Input predictionInput `json:"input"`
}

type predictionInput struct {
	Prompt            string `json:"prompt"`
	AspectRatio       string `json:"aspect_ratio"`
	SafetyFilterLevel string `json:"safety_filter_level"`
}

type predictionResponse struct {
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  *string         `json:"error"`
}

func (p *ReplicateProducer) Produce(ctx context.Context, traits models.TraitList) (*Artifact, error) {
	prompt := BuildPrompt(traits)

	payload, err := json.Marshal(predictionRequest{
		Input: predictionInput{
			Prompt:            prompt,
			AspectRatio:       "1:1",
			SafetyFilterLevel: "block_medium_and_above",
		},
	})
	if err != nil {
		return nil, &Error{Err: fmt.Errorf("encode request: %w", err)}
	}

	url := fmt.Sprintf("%s/v1/models/%s/predictions", p.BaseURL, p.Model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, &Error{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "wait")
	if p.Token != "" {
		req.Header.Set("Authorization", "Bearer "+p.Token)
	}

	resp, err := p.HTTP.Do(req)
	if err != nil {
		return nil, &Error{Transient: true, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, &Error{Transient: true, Err: fmt.Errorf("provider returned %d", resp.StatusCode)}
	case resp.StatusCode >= 400:
		return nil, &Error{Err: fmt.Errorf("provider rejected request: %d", resp.StatusCode)}
	}

	var pred predictionResponse
	if err := json.NewDecoder(resp.Body).Decode(&pred); err != nil {
		return nil, &Error{Transient: true, Err: fmt.Errorf("decode response: %w", err)}
	}
	if pred.Status == "failed" || pred.Status == "canceled" {
		reason := pred.Status
		if pred.Error != nil {
			reason = *pred.Error
		}
		return nil, &Error{Err: fmt.Errorf("prediction %s", reason)}
	}

	imageURL, err := firstOutputURL(pred.Output)
	if err != nil {
		return nil, &Error{Err: err}
	}
	return &Artifact{URL: imageURL, Prompt: prompt}, nil
}

// firstOutputURL handles both output shapes the API produces: a bare string
// or an array of URLs.
func firstOutputURL(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", errors.New("prediction returned no output")
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil && single != "" {
		return single, nil
	}
	var many []string
	if err := json.Unmarshal(raw, &many); err == nil && len(many) > 0 && many[0] != "" {
		return many[0], nil
	}
	return "", errors.New("prediction output has no image url")
}
