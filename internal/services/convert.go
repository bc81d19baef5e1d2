package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/starwalkn/gotenberg-go-client/v8"
	"github.com/starwalkn/gotenberg-go-client/v8/document"
	"go.uber.org/zap"
)

// ConvertService wraps the Gotenberg collaborator that turns rendered HTML
// into a binary artifact. It is only invoked when a download is requested,
// never during a generation pass; generation stores HTML as-is.
type ConvertService struct {
	client  *gotenberg.Client
	timeout time.Duration
	logger  *zap.Logger
}

func NewConvertService(gotenbergURL, timeoutStr string, logger *zap.Logger) (*ConvertService, error) {
	timeout, err := time.ParseDuration(timeoutStr)
	if err != nil {
		timeout = 30 * time.Second
		logger.Warn("failed to parse gotenberg timeout, using default 30s",
			zap.String("value", timeoutStr), zap.Error(err))
	}

	httpClient := &http.Client{
		Timeout: timeout,
	}

	client, err := gotenberg.NewClient(gotenbergURL, httpClient)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gotenberg client: %w", err)
	}

	return &ConvertService{
		client:  client,
		timeout: timeout,
		logger:  logger,
	}, nil
}

// RenderBinary converts rendered HTML to the downloadable binary form with
// a bounded per-attempt timeout and capped retries.
func (s *ConvertService) RenderBinary(ctx context.Context, renderedHTML string) (io.ReadCloser, error) {
	return s.convertWithRetry(ctx, renderedHTML, 3)
}

func (s *ConvertService) convertWithRetry(ctx context.Context, renderedHTML string, maxRetries int) (io.ReadCloser, error) {
	var lastErr error

	for attempt := 1; attempt <= maxRetries; attempt++ {
		convertCtx, cancel := context.WithTimeout(ctx, s.timeout)

		index, err := document.FromReader("index.html", strings.NewReader(renderedHTML))
		if err != nil {
			cancel()
			return nil, fmt.Errorf("failed to build conversion document: %w", err)
		}

		req := gotenberg.NewHTMLRequest(index)

		resp, err := s.client.Send(convertCtx, req)
		if err == nil {
			cancel()
			return resp.Body, nil
		}
		cancel()

		lastErr = err
		s.logger.Warn("conversion attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("max_retries", maxRetries),
			zap.Error(err))

		if attempt < maxRetries {
			time.Sleep(time.Duration(attempt) * time.Second)
		}
	}

	return nil, fmt.Errorf("failed to convert document after %d attempts: %w", maxRetries, lastErr)
}
