// Package llm asks an OpenAI chat model whether a job page is still open.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"jobaudit-engine/internal/domain"
)

const (
	DefaultModel   = "gpt-4o-mini"
	DefaultTimeout = 45 * time.Second
)

var (
	ErrAPIKeyNotSet          = errors.New("OpenAI API key not set")
	ErrInvalidResponseFormat = errors.New("invalid response format")
)

const systemPrompt = `You check whether a job posting is still accepting applications.
You get the URL and the visible text of the posting page.
Answer with a JSON object: {"result": "open" | "closed" | "unsure", "justification": "<one sentence>"}.
Say "closed" only when the page clearly states the role is filled, expired or no longer accepting applications.
Say "open" only when the page shows the posting with a way to apply.`

// Classifier implements the role check fallback on top of chat completions.
type Classifier struct {
	client  openai.Client
	model   string
	timeout time.Duration
}

type Option func(*[]option.RequestOption)

// WithBaseURL points the client at another OpenAI compatible endpoint.
func WithBaseURL(u string) Option {
	return func(opts *[]option.RequestOption) {
		*opts = append(*opts, option.WithBaseURL(u))
	}
}

func NewClassifier(apiKey, model string, extra ...Option) (*Classifier, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrAPIKeyNotSet
	}
	if strings.TrimSpace(model) == "" {
		model = DefaultModel
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(2)}
	for _, o := range extra {
		o(&opts)
	}

	return &Classifier{
		client:  openai.NewClient(opts...),
		model:   model,
		timeout: DefaultTimeout,
	}, nil
}

func (c *Classifier) ModelName() string { return c.model }

type verdict struct {
	Result        string `json:"result"`
	Justification string `json:"justification"`
}

func (c *Classifier) Classify(ctx context.Context, pageURL, pageText string) (string, string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(fmt.Sprintf("URL: %s\n\nPage text:\n%s", pageURL, pageText)),
		},
		Temperature: openai.Float(0),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{Type: "json_object"},
		},
	}

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", "", fmt.Errorf("OpenAI API call failed: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", "", fmt.Errorf("no completion choices returned")
	}

	return ParseVerdict(completion.Choices[0].Message.Content)
}

// ParseVerdict reads the model's JSON answer. Anything other than open or
// closed comes back as unsure.
func ParseVerdict(content string) (string, string, error) {
	var v verdict
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &v); err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrInvalidResponseFormat, err)
	}

	result := strings.ToLower(strings.TrimSpace(v.Result))
	switch result {
	case domain.RoleOpen, domain.RoleClosed:
	default:
		result = domain.RoleUnsure
	}
	return result, strings.TrimSpace(v.Justification), nil
}
