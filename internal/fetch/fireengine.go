package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/crawlkit/internal/models"
)

// FireEngine delegates rendering to an external HTTP rendering service
// (a sibling headless-browser microservice, not the in-process chromedp
// pool) and is tried last, after Headless/StealthProxy, for pages that
// need capabilities this deployment doesn't run locally — e.g. a
// differently fingerprinted browser stack behind its own proxy pool.
type FireEngine struct {
	endpoint  string
	client    *http.Client
	userAgent string
	logger    arbor.ILogger
}

func NewFireEngine(endpoint, userAgent string, logger arbor.ILogger) *FireEngine {
	return &FireEngine{
		endpoint:  endpoint,
		client:    &http.Client{Timeout: 90 * time.Second},
		userAgent: userAgent,
		logger:    logger,
	}
}

func (f *FireEngine) Name() string { return "fireEngine" }

func (f *FireEngine) Capability() models.FetcherCapability {
	return models.FetcherCapability{
		ExecutesJS:         true,
		SupportsScreenshot: true,
		SupportsProxy:      true,
		SupportsStealth:    true,
		RespectsWaitFor:    true,
	}
}

type fireEngineRequest struct {
	URL         string `json:"url"`
	WaitTimeout int    `json:"wait,omitempty"`
	Screenshot  bool   `json:"screenshot,omitempty"`
	Stealth     bool   `json:"stealth,omitempty"`
}

type fireEngineResponse struct {
	Content    string `json:"content"`
	PageStatus int    `json:"pageStatusCode"`
	Screenshot string `json:"screenshot,omitempty"`
}

// Fetch posts a render request to the external service. On an HTTP 403 it
// retries once with Stealth set, mirroring the reference rendering
// service's own escalate-on-block behavior — some sites only block the
// first, unstealthed render attempt.
func (f *FireEngine) Fetch(ctx context.Context, targetURL string, opts models.ScrapeOptions) *models.FetchResult {
	result, statusCode := f.render(ctx, targetURL, opts, opts.Proxy == models.ProxyStealth)
	if statusCode == http.StatusForbidden {
		result, _ = f.render(ctx, targetURL, opts, true)
	}
	return result
}

func (f *FireEngine) render(ctx context.Context, targetURL string, opts models.ScrapeOptions, stealth bool) (*models.FetchResult, int) {
	start := time.Now()
	result := &models.FetchResult{FinalURL: targetURL}

	body, err := json.Marshal(fireEngineRequest{
		URL:         targetURL,
		WaitTimeout: opts.WaitFor,
		Screenshot:  opts.WantsScreenshot(),
		Stealth:     stealth,
	})
	if err != nil {
		result.FailureErr = fmt.Errorf("fire engine: marshal request: %w", err)
		result.Failure = models.FailureFatal
		return result, 0
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.endpoint, bytes.NewReader(body))
	if err != nil {
		result.FailureErr = fmt.Errorf("fire engine: build request: %w", err)
		result.Failure = models.FailureFatal
		return result, 0
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		result.FailureErr = fmt.Errorf("fire engine: request failed: %w", err)
		result.Failure = classifyError(err)
		result.Timing = time.Since(start)
		return result, 0
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden {
		result.Failure = models.FailureBlocked
		result.StatusCode = resp.StatusCode
		result.Timing = time.Since(start)
		return result, resp.StatusCode
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		result.FailureErr = fmt.Errorf("fire engine: read response: %w", err)
		result.Failure = models.FailureTransient
		result.Timing = time.Since(start)
		return result, resp.StatusCode
	}

	var parsed fireEngineResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		result.FailureErr = fmt.Errorf("fire engine: decode response: %w", err)
		result.Failure = models.FailureInvalidContent
		result.Timing = time.Since(start)
		return result, resp.StatusCode
	}

	result.StatusCode = parsed.PageStatus
	if result.StatusCode == 0 {
		result.StatusCode = resp.StatusCode
	}
	result.Body = parsed.Content
	result.Timing = time.Since(start)
	result.Failure = classifyStatus(result.StatusCode)
	return result, resp.StatusCode
}
