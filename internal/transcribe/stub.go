package transcribe

import (
	"context"
	"errors"
	"log/slog"
)

// ErrNotConfigured is returned by the stub when no API key is set.
var ErrNotConfigured = errors.New("transcription provider not configured")

// StubClient stands in when no API key is configured.
type StubClient struct {
	logger *slog.Logger
}

func NewStubClient(logger *slog.Logger) *StubClient {
	return &StubClient{logger: logger}
}

func (c *StubClient) Transcribe(ctx context.Context, audioPath string) (*Transcript, error) {
	if c.logger != nil {
		c.logger.Debug("transcribe stub: skipped", "path", audioPath)
	}
	return nil, ErrNotConfigured
}
