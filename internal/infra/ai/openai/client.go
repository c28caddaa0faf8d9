package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	domain "github.com/bryanwahyu/roundsiq/internal/domain/analysis"
	"github.com/bryanwahyu/roundsiq/internal/infra/ai/prompt"
)

const (
	defaultModel = "gpt-5"
	maxTokens    = 8192
)

// Options configures the direct model backend.
type Options struct {
	APIKey  string
	Model   string
	BaseURL string
	// Modifiers holds extra prompt instructions per specialty slug.
	Modifiers map[string]string
}

// Client is a blocking Analyzer that calls the model directly instead of
// going through the analysis service.
type Client struct {
	*openai.Client
	Model     string
	Modifiers map[string]string
}

var _ domain.Analyzer = (*Client)(nil)

func NewClient(opts Options) *Client {
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	model := opts.Model
	if model == "" {
		model = defaultModel
	}
	return &Client{Client: openai.NewClientWithConfig(cfg), Model: model, Modifiers: opts.Modifiers}
}

func (c *Client) SubmitBlocking(ctx context.Context, sub domain.Submission, timeout time.Duration) (domain.Payload, error) {
	if strings.TrimSpace(sub.Note) == "" {
		return domain.Payload{}, fmt.Errorf("%w: clinical note is empty", domain.ErrInvalidRequest)
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	conditions := prompt.DetectConditions(sub.Note)
	images, names := imageParts(sub.Attachments)
	text := prompt.UserPrompt(prompt.Case{
		Note:       sub.Note,
		Modifier:   c.Modifiers[strings.ToLower(sub.Specialty)],
		ImageNames: names,
		Conditions: conditions,
	})

	parts := append([]openai.ChatMessagePart{{Type: openai.ChatMessagePartTypeText, Text: text}}, images...)
	req := openai.ChatCompletionRequest{
		Model: c.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt.SystemPrompt()},
			{Role: openai.ChatMessageRoleUser, MultiContent: parts},
		},
	}
	// For reasoning models (o1/o3/o4/gpt-5*) use MaxCompletionTokens instead of MaxTokens
	if isReasoningModel(c.Model) {
		req.MaxCompletionTokens = maxTokens
	} else {
		req.MaxTokens = maxTokens
	}

	resp, err := c.CreateChatCompletion(ctx, req)
	if err != nil {
		return domain.Payload{}, mapError(err)
	}
	if len(resp.Choices) == 0 {
		return domain.Payload{}, fmt.Errorf("%w: no choices in completion", domain.ErrMalformedResponse)
	}

	// Summary is left for the persister to derive from the analysis.
	return domain.Payload{
		FullResponse: strings.TrimSpace(resp.Choices[0].Message.Content),
		Findings:     conditions,
	}, nil
}

func isReasoningModel(model string) bool {
	for _, p := range []string{"o1", "o3", "o4", "gpt-5"} {
		if strings.HasPrefix(model, p) {
			return true
		}
	}
	return false
}

// imageParts turns attachments the model can read into data URIs. Anything
// else is only named in the prompt metadata.
func imageParts(atts []domain.Attachment) ([]openai.ChatMessagePart, []string) {
	var (
		parts []openai.ChatMessagePart
		names []string
	)
	for _, a := range atts {
		switch a.ContentType {
		case "image/png", "image/jpeg", "image/gif", "image/webp":
			uri := "data:" + a.ContentType + ";base64," + base64.StdEncoding.EncodeToString(a.Data)
			parts = append(parts, openai.ChatMessagePart{
				Type:     openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{URL: uri, Detail: openai.ImageURLDetailAuto},
			})
			names = append(names, a.Name+" (image)")
		default:
			names = append(names, fmt.Sprintf("%s (not sent: %s)", a.Name, a.ContentType))
		}
	}
	return parts, names
}

func mapError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &domain.ServiceError{StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &domain.ServiceError{StatusCode: reqErr.HTTPStatusCode, Message: reqErr.Error()}
	}
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return fmt.Errorf("%w: %v", domain.ErrTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrServiceUnavailable, err)
}
