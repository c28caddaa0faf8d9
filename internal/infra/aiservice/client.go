package aiservice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	domain "github.com/bryanwahyu/roundsiq/internal/domain/analysis"
)

const (
	apiKeyHeader          = "X-API-KEY"
	defaultRequestTimeout = 30 * time.Second
	maxResponseBytes      = 8 << 20
)

// Options configures the analysis service client.
type Options struct {
	BaseURL string
	APIKey  string
	// RequestTimeout bounds queue and poll calls. Blocking analyses use the
	// timeout passed to SubmitBlocking instead.
	RequestTimeout time.Duration
	HTTPClient     *http.Client
	Logger         *slog.Logger
}

// Client talks to the analysis service over HTTP.
type Client struct {
	baseURL string
	apiKey  string
	timeout time.Duration
	http    *http.Client
	log     *slog.Logger
}

var _ domain.Client = (*Client)(nil)

func New(opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		apiKey:  opts.APIKey,
		timeout: timeout,
		http:    hc,
		log:     log.With("component", "aiservice"),
	}
}

type queueResponse struct {
	AnalysisID json.RawMessage `json:"analysis_id"`
	Status     string          `json:"status"`
	Error      string          `json:"error"`
}

type analyzeResponse struct {
	Summary            string   `json:"summary"`
	FullResponse       string   `json:"full_response"`
	FullResponseCamel  string   `json:"fullResponse"`
	DetectedConditions []string `json:"detected_conditions"`
	Error              string   `json:"error"`
}

type statusResponse struct {
	Status             string   `json:"status"`
	Analysis           string   `json:"analysis"`
	Summary            string   `json:"summary"`
	FullResponse       string   `json:"full_response"`
	DetectedConditions []string `json:"detected_conditions"`
	Error              string   `json:"error"`
	ErrorMessage       string   `json:"error_message"`
}

// SubmitQueued asks the service to analyse the submission in the background
// and returns the handle to poll.
func (c *Client) SubmitQueued(ctx context.Context, sub domain.Submission) (domain.JobHandle, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.buildRequest(ctx, "/queue_analysis", sub)
	if err != nil {
		return "", err
	}
	var out queueResponse
	if err := c.do(req, &out); err != nil {
		return "", err
	}
	if out.Error != "" {
		return "", &domain.ServiceError{StatusCode: http.StatusOK, Message: out.Error}
	}
	handle, err := parseHandle(out.AnalysisID)
	if err != nil {
		return "", err
	}
	c.log.Debug("analysis queued", "handle", handle, "remote_status", out.Status, "attachments", len(sub.Attachments))
	return handle, nil
}

// SubmitBlocking runs one analysis and waits up to timeout for the answer.
func (c *Client) SubmitBlocking(ctx context.Context, sub domain.Submission, timeout time.Duration) (domain.Payload, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := c.buildRequest(ctx, "/analyze", sub)
	if err != nil {
		return domain.Payload{}, err
	}
	var out analyzeResponse
	if err := c.do(req, &out); err != nil {
		return domain.Payload{}, err
	}
	if out.Error != "" {
		return domain.Payload{}, &domain.ServiceError{StatusCode: http.StatusOK, Message: out.Error}
	}
	full := out.FullResponse
	if full == "" {
		full = out.FullResponseCamel
	}
	return domain.Payload{
		Summary:      out.Summary,
		FullResponse: full,
		Findings:     out.DetectedConditions,
	}, nil
}

// PollStatus reads the current state of a queued analysis.
func (c *Client) PollStatus(ctx context.Context, handle domain.JobHandle) (domain.PollResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	u := c.baseURL + "/get_analysis?id=" + url.QueryEscape(string(handle))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return domain.PollResponse{}, fmt.Errorf("build poll request: %w", err)
	}
	req.Header.Set(apiKeyHeader, c.apiKey)

	var out statusResponse
	if err := c.do(req, &out); err != nil {
		return domain.PollResponse{}, err
	}

	status, err := MapStatus(out.Status)
	if err != nil {
		return domain.PollResponse{}, err
	}
	resp := domain.PollResponse{Status: status}
	switch status {
	case domain.StatusCompleted:
		full := out.Analysis
		if full == "" {
			full = out.FullResponse
		}
		resp.Payload = &domain.Payload{
			Summary:      out.Summary,
			FullResponse: full,
			Findings:     out.DetectedConditions,
		}
	case domain.StatusFailed:
		resp.Error = out.ErrorMessage
		if resp.Error == "" {
			resp.Error = out.Error
		}
	}
	return resp, nil
}

// MapStatus translates a remote job status into the local state machine.
func MapStatus(remote string) (domain.Status, error) {
	switch strings.ToLower(strings.TrimSpace(remote)) {
	case "pending", "queued":
		return domain.StatusQueued, nil
	case "processing", "completed_fast":
		return domain.StatusProcessing, nil
	case "completed":
		return domain.StatusCompleted, nil
	case "failed", "error":
		return domain.StatusFailed, nil
	default:
		return "", fmt.Errorf("%w: unknown status %q", domain.ErrMalformedResponse, remote)
	}
}

// buildRequest encodes the submission as multipart when it carries
// attachments and as JSON otherwise.
func (c *Client) buildRequest(ctx context.Context, path string, sub domain.Submission) (*http.Request, error) {
	if strings.TrimSpace(sub.Note) == "" {
		return nil, fmt.Errorf("%w: clinical note is empty", domain.ErrInvalidRequest)
	}

	var (
		body        bytes.Buffer
		contentType string
	)
	if sub.HasAttachments() {
		mw := multipart.NewWriter(&body)
		fields := [][2]string{{"note", sub.Note}, {"specialty", sub.Specialty}, {"doctor_id", sub.ClinicianID}}
		for _, f := range fields {
			if err := mw.WriteField(f[0], f[1]); err != nil {
				return nil, fmt.Errorf("encode %s: %w", f[0], err)
			}
		}
		for _, a := range sub.Attachments {
			h := make(textproto.MIMEHeader)
			h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="images"; filename=%q`, a.Name))
			ct := a.ContentType
			if ct == "" {
				ct = "application/octet-stream"
			}
			h.Set("Content-Type", ct)
			part, err := mw.CreatePart(h)
			if err != nil {
				return nil, fmt.Errorf("encode attachment %s: %w", a.Name, err)
			}
			if _, err := part.Write(a.Data); err != nil {
				return nil, fmt.Errorf("encode attachment %s: %w", a.Name, err)
			}
		}
		if err := mw.Close(); err != nil {
			return nil, fmt.Errorf("encode multipart body: %w", err)
		}
		contentType = mw.FormDataContentType()
	} else {
		payload := map[string]string{
			"note":      sub.Note,
			"specialty": sub.Specialty,
			"doctor_id": sub.ClinicianID,
		}
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	req.Header.Set(apiKeyHeader, c.apiKey)
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return classify(req.Context(), err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return classify(req.Context(), err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		msg := ""
		if json.Unmarshal(raw, &e) == nil {
			msg = e.Error
		}
		if msg == "" {
			msg = strings.TrimSpace(string(raw))
			if len(msg) > 200 {
				msg = msg[:200]
			}
		}
		return &domain.ServiceError{StatusCode: resp.StatusCode, Message: msg}
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
	}
	return nil
}

func classify(ctx context.Context, err error) error {
	if errors.Is(err, context.Canceled) && !errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return err
	}
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return fmt.Errorf("%w: %v", domain.ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", domain.ErrServiceUnavailable, err)
}

// parseHandle accepts the id as a JSON number or string.
func parseHandle(raw json.RawMessage) (domain.JobHandle, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", fmt.Errorf("%w: missing analysis_id", domain.ErrMalformedResponse)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if strings.TrimSpace(s) == "" {
			return "", fmt.Errorf("%w: empty analysis_id", domain.ErrMalformedResponse)
		}
		return domain.JobHandle(s), nil
	}
	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&n); err != nil {
		return "", fmt.Errorf("%w: analysis_id %s", domain.ErrMalformedResponse, raw)
	}
	return domain.JobHandle(n.String()), nil
}
