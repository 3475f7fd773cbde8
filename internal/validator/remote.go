package validator

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Xunop/bookworm/internal/log"
)

type Status string

const (
	StatusValid   Status = "valid"
	StatusInvalid Status = "invalid"
	// StatusUnknown means the validator could not give an answer. Callers
	// treat it as a pass.
	StatusUnknown Status = "unknown"
)

type ValidationError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type Verdict struct {
	Status Status            `json:"status"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// maxReplySize bounds how much of a reply is read.
const maxReplySize = 4 << 20

// Client talks to a remote EPUB validation service. The service takes the
// archive as the "file" part of a multipart POST and answers with
// {"errors": [{"code": ..., "message": ...}]}; an empty list means valid.
type Client struct {
	url         string
	httpClient  *http.Client
	rateLimiter *rate.Limiter
}

// NewClient returns a client for url. perSecond caps the request rate; a
// value <= 0 disables the limit.
func NewClient(url string, timeout time.Duration, perSecond float64) *Client {
	limit := rate.Inf
	burst := 1
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
		burst = max(1, int(perSecond*2))
	}
	return &Client{
		url:         url,
		httpClient:  &http.Client{Timeout: timeout},
		rateLimiter: rate.NewLimiter(limit, burst),
	}
}

// Validate never returns an invalid verdict because the service is
// unavailable: transport failures, timeouts, non-2xx replies and bodies that
// do not decode all give StatusUnknown.
func (c *Client) Validate(ctx context.Context, name string, data []byte) Verdict {
	if c == nil || c.url == "" {
		return Verdict{Status: StatusUnknown}
	}
	verdict, err := c.validate(ctx, name, data)
	if err != nil {
		log.Warn("Remote validation unavailable", zap.String("archive", name), zap.Error(err))
		return Verdict{Status: StatusUnknown}
	}
	return verdict
}

func (c *Client) validate(ctx context.Context, name string, data []byte) (Verdict, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return Verdict{}, errors.Wrap(err, "rate limit wait")
	}

	body := &bytes.Buffer{}
	form := multipart.NewWriter(body)
	part, err := form.CreateFormFile("file", name)
	if err != nil {
		return Verdict{}, err
	}
	if _, err := part.Write(data); err != nil {
		return Verdict{}, err
	}
	if err := form.Close(); err != nil {
		return Verdict{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, body)
	if err != nil {
		return Verdict{}, errors.Wrap(err, "creating request")
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Verdict{}, errors.Wrap(err, "request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Verdict{}, errors.Errorf("validator replied %s", resp.Status)
	}

	var reply struct {
		Errors *[]ValidationError `json:"errors"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxReplySize)).Decode(&reply); err != nil {
		return Verdict{}, errors.Wrap(err, "decoding reply")
	}
	if reply.Errors == nil {
		return Verdict{}, errors.New("reply has no error list")
	}
	if len(*reply.Errors) == 0 {
		return Verdict{Status: StatusValid}, nil
	}
	log.Info("Archive failed validation", zap.String("archive", name), zap.Int("errors", len(*reply.Errors)))
	return Verdict{Status: StatusInvalid, Errors: *reply.Errors}, nil
}
