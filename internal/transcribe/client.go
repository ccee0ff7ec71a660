// Package transcribe is a narrow client for the transcription provider:
// upload an audio file, poll for the finished transcript with a bounded
// retry policy, and extract keywords from the result.
package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"
)

const defaultBaseURL = "https://api.assemblyai.com"

// ErrPollTimeout is returned when the transcript does not complete within the
// configured attempt budget. Polling never waits indefinitely.
var ErrPollTimeout = errors.New("transcription polling timed out")

// TranscribeError represents a non-2xx response from the provider.
type TranscribeError struct {
	StatusCode int
	Body       string
}

func (e *TranscribeError) Error() string {
	return fmt.Sprintf("transcription failed: HTTP %d: %s", e.StatusCode, e.Body)
}

// Word is a single transcribed word with its start time and confidence.
type Word struct {
	Text       string  `json:"text"`
	Start      float64 `json:"start"`
	Confidence float64 `json:"confidence"`
}

// Transcript is the completed transcription of an audio file.
type Transcript struct {
	Text  string `json:"text"`
	Words []Word `json:"words"`
}

type Client interface {
	Transcribe(ctx context.Context, audioPath string) (*Transcript, error)
}

// PollPolicy bounds the wait for an asynchronous transcript.
type PollPolicy struct {
	Interval time.Duration
	Attempts int
}

type HTTPClient struct {
	baseURL    string
	apiKey     string
	poll       PollPolicy
	httpClient *http.Client
	logger     *slog.Logger
}

func NewHTTPClient(baseURL, apiKey string, poll PollPolicy, logger *slog.Logger) *HTTPClient {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if poll.Interval <= 0 {
		poll.Interval = time.Second
	}
	if poll.Attempts <= 0 {
		poll.Attempts = 60
	}
	return &HTTPClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		poll:    poll,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: logger,
	}
}

type uploadResponse struct {
	UploadURL string `json:"upload_url"`
}

type transcriptResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Text   string `json:"text"`
	Error  string `json:"error"`
	Words  []struct {
		Text       string  `json:"text"`
		Start      int     `json:"start"`
		Confidence float64 `json:"confidence"`
	} `json:"words"`
}

// Transcribe uploads the audio file, submits a transcription job, and polls
// until the job completes or the attempt budget is exhausted.
func (c *HTTPClient) Transcribe(ctx context.Context, audioPath string) (*Transcript, error) {
	audioURL, err := c.upload(ctx, audioPath)
	if err != nil {
		return nil, err
	}

	jobID, err := c.submit(ctx, audioURL)
	if err != nil {
		return nil, err
	}

	if c.logger != nil {
		c.logger.Info("transcription submitted", "job_id", jobID)
	}

	for attempt := 0; attempt < c.poll.Attempts; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.poll.Interval):
		}

		result, err := c.fetch(ctx, jobID)
		if err != nil {
			return nil, err
		}

		switch result.Status {
		case "completed":
			return toTranscript(result), nil
		case "error":
			return nil, fmt.Errorf("transcription job failed: %s", result.Error)
		}
	}

	return nil, fmt.Errorf("%w after %d attempts", ErrPollTimeout, c.poll.Attempts)
}

func (c *HTTPClient) upload(ctx context.Context, audioPath string) (string, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return "", fmt.Errorf("open audio file: %w", err)
	}
	defer f.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/upload", f)
	if err != nil {
		return "", fmt.Errorf("create upload request: %w", err)
	}
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Content-Type", "application/octet-stream")

	var result uploadResponse
	if err := c.do(req, &result); err != nil {
		return "", err
	}
	if result.UploadURL == "" {
		return "", errors.New("upload response missing upload_url")
	}
	return result.UploadURL, nil
}

func (c *HTTPClient) submit(ctx context.Context, audioURL string) (string, error) {
	body, err := json.Marshal(map[string]string{"audio_url": audioURL})
	if err != nil {
		return "", fmt.Errorf("marshal transcript request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/transcript", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create transcript request: %w", err)
	}
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	var result transcriptResponse
	if err := c.do(req, &result); err != nil {
		return "", err
	}
	if result.ID == "" {
		return "", errors.New("transcript response missing id")
	}
	return result.ID, nil
}

func (c *HTTPClient) fetch(ctx context.Context, jobID string) (*transcriptResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v2/transcript/"+jobID, nil)
	if err != nil {
		return nil, fmt.Errorf("create poll request: %w", err)
	}
	req.Header.Set("Authorization", c.apiKey)

	var result transcriptResponse
	if err := c.do(req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *HTTPClient) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &TranscribeError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

// toTranscript converts provider millisecond timestamps to seconds.
func toTranscript(r *transcriptResponse) *Transcript {
	t := &Transcript{Text: r.Text}
	for _, w := range r.Words {
		t.Words = append(t.Words, Word{
			Text:       w.Text,
			Start:      float64(w.Start) / 1000,
			Confidence: w.Confidence,
		})
	}
	return t
}
