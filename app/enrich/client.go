package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	DefaultBaseURL = "https://api-inference.huggingface.co"
	SummarizeModel = "facebook/bart-large-cnn"
	ClassifyModel  = "facebook/bart-large-mnli"

	// MinSummarizeLength is the chunk length below which summarizing is skipped.
	MinSummarizeLength = 50

	maxResponseSize = 1 << 20
)

// ErrModelLoading matches an APIError returned while the hosted model warms up.
var ErrModelLoading = errors.New("model is currently loading")

// APIError is a failed inference call. Retryable separates transient
// failures (rate limits, server errors, model warm-up, network trouble) from
// terminal ones (bad requests, malformed responses).
type APIError struct {
	StatusCode int
	Message    string
	Retryable  bool
	Loading    bool
}

func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return e.Message
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	if e.Loading {
		return ErrModelLoading
	}
	return nil
}

// IsRetryable reports whether err is worth another attempt.
func IsRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable
	}
	return false
}

// Label is one candidate label with its score, as ranked by the classifier.
type Label struct {
	Name  string
	Score float64
}

// Client calls the Hugging Face inference API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

type summarizeParameters struct {
	MaxLength int  `json:"max_length"`
	MinLength int  `json:"min_length"`
	DoSample  bool `json:"do_sample"`
}

type classifyParameters struct {
	CandidateLabels []string `json:"candidate_labels"`
}

type inferenceRequest struct {
	Inputs     string `json:"inputs"`
	Parameters any    `json:"parameters"`
}

type summary struct {
	SummaryText string `json:"summary_text"`
}

type classification struct {
	Labels []string  `json:"labels"`
	Scores []float64 `json:"scores"`
}

// Summarize returns a short summary of text. Text shorter than
// MinSummarizeLength is returned unchanged without a request.
func (c *Client) Summarize(ctx context.Context, text string) (string, error) {
	if utf8.RuneCountInString(text) < MinSummarizeLength {
		return text, nil
	}

	var out []summary
	err := c.post(ctx, SummarizeModel, inferenceRequest{
		Inputs:     text,
		Parameters: summarizeParameters{MaxLength: 100, MinLength: 20, DoSample: false},
	}, &out)
	if err != nil {
		return "", err
	}
	if len(out) == 0 || strings.TrimSpace(out[0].SummaryText) == "" {
		return "", &APIError{StatusCode: http.StatusOK, Message: "empty summary"}
	}
	return strings.TrimSpace(out[0].SummaryText), nil
}

// Classify ranks labels by how well they describe text, best first.
func (c *Client) Classify(ctx context.Context, text string, labels []string) ([]Label, error) {
	var out classification
	err := c.post(ctx, ClassifyModel, inferenceRequest{
		Inputs:     text,
		Parameters: classifyParameters{CandidateLabels: labels},
	}, &out)
	if err != nil {
		return nil, err
	}

	ranked := make([]Label, 0, len(out.Labels))
	for i, name := range out.Labels {
		label := Label{Name: name}
		if i < len(out.Scores) {
			label.Score = out.Scores[i]
		}
		ranked = append(ranked, label)
	}
	return ranked, nil
}

func (c *Client) post(ctx context.Context, model string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/models/"+model, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		// timeouts and connection failures count against the retry budget
		return &APIError{Message: fmt.Sprintf("failed to send request: %v", err), Retryable: true}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return &APIError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("failed to read response: %v", err), Retryable: true}
	}

	if msg, ok := loadingMessage(data); ok {
		return &APIError{StatusCode: resp.StatusCode, Message: msg, Retryable: true, Loading: true}
	}

	if resp.StatusCode != http.StatusOK {
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(data)),
			Retryable:  resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500,
		}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return &APIError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("malformed response: %v", err)}
	}
	return nil
}

// loadingMessage detects the {"error": "... is currently loading"} body the
// API sends while a model warms up.
func loadingMessage(data []byte) (string, bool) {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return "", false
	}
	if strings.Contains(strings.ToLower(body.Error), "loading") {
		return body.Error, true
	}
	return "", false
}
