package giphy

import (
	"context"
	"errors"
	"log/slog"
)

// ErrNotConfigured is returned by the stub when no API key is set.
var ErrNotConfigured = errors.New("gif provider not configured")

// StubClient stands in when no API key is configured. Every call fails with
// ErrNotConfigured; callers with a partial-failure contract degrade to zero
// GIF results instead of aborting.
type StubClient struct {
	logger *slog.Logger
}

func NewStubClient(logger *slog.Logger) *StubClient {
	return &StubClient{logger: logger}
}

func (c *StubClient) Search(ctx context.Context, keyword string) (*GIF, error) {
	if c.logger != nil {
		c.logger.Debug("gif stub: search skipped", "keyword", keyword)
	}
	return nil, ErrNotConfigured
}

func (c *StubClient) Download(ctx context.Context, gifURL, dst string) error {
	return ErrNotConfigured
}
