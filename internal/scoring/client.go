// Package scoring provides an HTTP client for the external recognition and
// carbon scoring service.
package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// DefaultBaseURL is where the scoring service listens in local development.
const DefaultBaseURL = "http://localhost:3000/api"

var (
	// ErrInvalidRequest is returned before any network call when a request
	// fails local validation.
	ErrInvalidRequest = errors.New("invalid scoring request")
	// ErrRejected is returned when the service answers with success=false.
	ErrRejected = errors.New("scoring service rejected request")
)

// StatusError reports a non-2xx response from the service.
type StatusError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

// Options configures a Client. Zero values pick the defaults.
type Options struct {
	BaseURL       string
	Timeout       time.Duration
	RatePerSecond float64
	Burst         int
	HTTPClient    *http.Client
}

// Client talks to the scoring service.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// New creates a Client. A non-positive RatePerSecond disables pacing.
func New(opts Options) *Client {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RatePerSecond > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), burst)
	}
	return &Client{baseURL: base, http: hc, limiter: limiter}
}

// BaseURL returns the service root the client sends requests to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// RecognizeImage uploads an image as multipart field "image" and returns the
// detected clothing items.
func (c *Client) RecognizeImage(ctx context.Context, filename string, image io.Reader) (*Recognition, error) {
	if image == nil {
		return nil, fmt.Errorf("%w: image is required", ErrInvalidRequest)
	}
	if filename == "" {
		filename = "image.jpg"
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename=%q`, filename))
	h.Set("Content-Type", "image/jpeg")
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("building upload: %w", err)
	}
	if _, err := io.Copy(part, image); err != nil {
		return nil, fmt.Errorf("reading image: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("building upload: %w", err)
	}

	var resp ImageRecognitionResponse
	if err := c.do(ctx, http.MethodPost, "/recognize-image", mw.FormDataContentType(), &buf, &resp); err != nil {
		return nil, err
	}
	if !resp.Success || resp.Data == nil {
		return nil, rejected("recognize-image", resp.Error)
	}
	return resp.Data, nil
}

// CarbonScore asks the service to score one item.
func (c *Client) CarbonScore(ctx context.Context, req CarbonScoreRequest) (*CarbonScore, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	var resp CarbonScoreResponse
	if err := c.do(ctx, http.MethodPost, "/carbon-score", "application/json", bytes.NewReader(body), &resp); err != nil {
		return nil, err
	}
	if !resp.Success || resp.Data == nil {
		return nil, rejected("carbon-score", resp.Error)
	}
	return resp.Data, nil
}

// FetchOffers retrieves the service's view of the offer catalog.
func (c *Client) FetchOffers(ctx context.Context) (*OffersData, error) {
	var resp OffersResponse
	if err := c.do(ctx, http.MethodGet, "/offers", "", nil, &resp); err != nil {
		return nil, err
	}
	if !resp.Success || resp.Data == nil {
		return nil, rejected("offers", resp.Error)
	}
	return resp.Data, nil
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading %s response: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// The service also reports failures in the envelope; surface that
		// message when present.
		var env struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(data))
		if json.Unmarshal(data, &env) == nil && env.Error != "" {
			msg = env.Error
		}
		return &StatusError{Endpoint: path, StatusCode: resp.StatusCode, Body: msg}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}

func rejected(endpoint, msg string) error {
	if msg == "" {
		msg = "no error message"
	}
	return fmt.Errorf("%s: %w: %s", endpoint, ErrRejected, msg)
}
