package code

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/gsarma/codejudge/internal/metrics"
)

// DefaultJudge0URL is the RapidAPI-hosted Judge0 endpoint.
const DefaultJudge0URL = "https://judge029.p.rapidapi.com"

// Judge0Config holds the connection settings for a RapidAPI-fronted Judge0 instance.
// Host is sent as x-rapidapi-host and defaults to the host part of URL.
// APIKey is sent as x-rapidapi-key; without it every Execute fails before any request.
type Judge0Config struct {
	URL     string
	Host    string
	APIKey  string
	Timeout time.Duration
}

// Judge0Client submits code to Judge0, polls for the verdict and normalizes it.
// It holds no per-call state and is safe for concurrent use.
type Judge0Client struct {
	url    string
	host   string
	apiKey string
	client *http.Client
	logger *zap.Logger

	// wait blocks between polls; replaced in tests.
	wait func(ctx context.Context, d time.Duration) error
}

// Option configures a Judge0Client.
type Option func(*Judge0Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Judge0Client) {
		c.client = hc
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(c *Judge0Client) {
		c.logger = l
	}
}

// NewJudge0Client constructs a Judge0Client from the given config.
func NewJudge0Client(cfg Judge0Config, opts ...Option) *Judge0Client {
	base := strings.TrimRight(cfg.URL, "/")
	if base == "" {
		base = DefaultJudge0URL
	}
	host := cfg.Host
	if host == "" {
		if u, err := url.Parse(base); err == nil {
			host = u.Host
		}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	c := &Judge0Client{
		url:    base,
		host:   host,
		apiKey: cfg.APIKey,
		client: &http.Client{Timeout: timeout},
		logger: zap.NewNop(),
		wait:   sleepContext,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Execute runs sourceCode in the given language and returns the normalized result.
// Unsupported languages and a missing API key fail before any network call.
func (c *Judge0Client) Execute(ctx context.Context, language, sourceCode string) Result {
	res := c.execute(ctx, language, sourceCode)
	metrics.RecordExecution(string(res.Outcome))
	if res.Success {
		c.logger.Info("execution finished",
			zap.String("language", language),
			zap.String("outcome", string(res.Outcome)))
	} else {
		c.logger.Warn("execution failed",
			zap.String("language", language),
			zap.String("outcome", string(res.Outcome)),
			zap.String("error", res.Error))
	}
	return res
}

func (c *Judge0Client) execute(ctx context.Context, language, sourceCode string) Result {
	lang, ok := LookupLanguage(language)
	if !ok {
		return failure(OutcomeUnsupportedLanguage, fmt.Sprintf("Unsupported language: %s", language))
	}
	if c.apiKey == "" {
		return failure(OutcomeNotConfigured, notConfiguredMessage)
	}

	token, err := c.Submit(ctx, lang.ID, sourceCode)
	if err != nil {
		return failure(OutcomeSubmitFailed, "Failed to execute code: "+err.Error())
	}

	resp, attempts, err := c.await(ctx, token)
	metrics.ObservePollAttempts(attempts)
	switch {
	case errors.Is(err, ErrPollAttemptsExhausted):
		return failure(OutcomePollExhausted, pollExhaustedMessage)
	case err != nil:
		return failure(OutcomePollFailed, "Failed to get output: "+err.Error())
	}

	sub, err := resp.Decode()
	if err != nil {
		return failure(OutcomeDecodeFailed, "Failed to decode judge output: "+err.Error())
	}
	return Classify(sub)
}

// Submit queues sourceCode with Judge0 (wait=false) and returns the submission token.
// It returns ErrNotConfigured without a request when no API key is set.
func (c *Judge0Client) Submit(ctx context.Context, languageID int, sourceCode string) (string, error) {
	if c.apiKey == "" {
		return "", ErrNotConfigured
	}
	reqBody := map[string]interface{}{
		"source_code": EncodeBase64(sourceCode),
		"language_id": languageID,
	}

	var out struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, http.MethodPost, "/submissions?base64_encoded=true&wait=false&fields=*", reqBody, &out); err != nil {
		return "", err
	}
	if out.Token == "" {
		return "", ErrMissingToken
	}
	c.logger.Debug("submission queued", zap.String("token", out.Token), zap.Int("language_id", languageID))
	return out.Token, nil
}

// Poll fetches the current state of a submission once.
func (c *Judge0Client) Poll(ctx context.Context, token string) (*SubmissionResponse, error) {
	if token == "" {
		return nil, ErrMissingToken
	}
	var out SubmissionResponse
	path := "/submissions/" + url.PathEscape(token) + "?base64_encoded=true&fields=*"
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// await polls until the submission is terminal, waiting PollDelay(attempt)
// after every non-terminal poll. It reports how many polls were made.
func (c *Judge0Client) await(ctx context.Context, token string) (*SubmissionResponse, int, error) {
	for attempt := 0; attempt < MaxPollAttempts; attempt++ {
		resp, err := c.Poll(ctx, token)
		if err != nil {
			return nil, attempt + 1, err
		}
		if resp.Terminal() {
			c.logger.Debug("submission finished",
				zap.String("token", token),
				zap.Int("attempt", attempt+1),
				zap.Int("status_id", resp.statusID()))
			return resp, attempt + 1, nil
		}

		c.logger.Debug("submission pending",
			zap.String("token", token),
			zap.Int("attempt", attempt+1),
			zap.String("status", resp.Status.Description))
		if err := c.wait(ctx, PollDelay(attempt)); err != nil {
			return nil, attempt + 1, err
		}
	}
	return nil, MaxPollAttempts, ErrPollAttemptsExhausted
}

func (c *Judge0Client) do(ctx context.Context, method, path string, body, out any) error {
	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url+path, bodyReader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("x-rapidapi-host", c.host)
	req.Header.Set("x-rapidapi-key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return parseError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode judge0 response: %w", err)
	}
	return nil
}

// parseError builds an error from a non-success response. RapidAPI reports
// failures in "message", Judge0 itself in "error".
func parseError(resp *http.Response) error {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	msg := http.StatusText(resp.StatusCode)
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil {
		msg = firstNonEmpty(body.Message, body.Error, msg)
	}
	return fmt.Errorf("judge0 returned HTTP %d: %s", resp.StatusCode, msg)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
