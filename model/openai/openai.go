// Package openai provides an implementation of model.Model using the OpenAI
// Chat Completions API. It adapts railflow's normalized Request/Response
// structures (including inline images) into the SDK's message format and back.
package openai

import (
	"context"
	"fmt"

	"github.com/hupe1980/railflow/model"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Options configure the OpenAI model adapter. They are the defaults applied
// when a request does not set the corresponding model.Options field.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
	APIKey              string
	BaseURL             string
}

// Model wraps the OpenAI Chat Completions API behind the generic model.Model interface.
type Model struct {
	client *openai.Client
	opts   Options
}

// NewModel creates a new OpenAI model using the official client
func NewModel(optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(opts.BaseURL))
	}

	client := openai.NewClient(clientOpts...)
	return &Model{client: &client, opts: opts}
}

// NewModelFromClient creates a new OpenAI model from an existing client
func NewModelFromClient(client *openai.Client, optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Model{client: client, opts: opts}
}

func defaultOptions() Options {
	return Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 4096,
	}
}

// Generate implements model.Model with a single non-streaming completion.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 1)
	errCh := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errCh)

		params := m.buildParams(req)
		resp, err := m.client.Chat.Completions.New(ctx, params)
		if err != nil {
			errCh <- fmt.Errorf("openai api error: %w", err)
			return
		}
		if len(resp.Choices) == 0 {
			errCh <- fmt.Errorf("no choices returned")
			return
		}
		ch0 := resp.Choices[0]
		out <- model.Response{
			ID:           resp.ID,
			Content:      model.Content{Role: "assistant", Parts: []model.Part{model.TextPart{Text: ch0.Message.Content}}},
			FinishReason: ch0.FinishReason,
			Usage: &model.TokenUsage{
				PromptTokens:     int(resp.Usage.PromptTokens),
				CompletionTokens: int(resp.Usage.CompletionTokens),
				TotalTokens:      int(resp.Usage.TotalTokens),
			},
		}
	}()
	return out, errCh
}

// buildMessages converts normalized contents into OpenAI chat messages.
// User contents become multi-part messages so images travel as image_url parts.
func buildMessages(contents []model.Content) []openai.ChatCompletionMessageParamUnion {
	var messages []openai.ChatCompletionMessageParamUnion
	for _, c := range contents {
		switch c.Role {
		case "system":
			messages = append(messages, openai.SystemMessage(c.Text()))
		case "assistant":
			messages = append(messages, openai.AssistantMessage(c.Text()))
		default:
			messages = append(messages, openai.UserMessage(buildUserParts(c.Parts)))
		}
	}
	return messages
}

func buildUserParts(parts []model.Part) []openai.ChatCompletionContentPartUnionParam {
	out := make([]openai.ChatCompletionContentPartUnionParam, 0, len(parts))
	for _, p := range parts {
		switch part := p.(type) {
		case model.TextPart:
			out = append(out, openai.TextContentPart(part.Text))
		case model.ImagePart:
			out = append(out, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
				URL: part.URL,
			}))
		}
	}
	return out
}

// buildParams assembles the OpenAI request parameters, applying request
// options over the adapter defaults.
func (m *Model) buildParams(req model.Request) openai.ChatCompletionNewParams {
	o := req.Options

	name := m.opts.Model
	if o.Model != "" {
		name = o.Model
	}
	temperature := m.opts.Temperature
	if o.Temperature != nil {
		temperature = *o.Temperature
	}
	maxTokens := m.opts.MaxCompletionTokens
	if o.MaxTokens != nil {
		maxTokens = *o.MaxTokens
	}

	params := openai.ChatCompletionNewParams{
		Messages:            buildMessages(req.Contents),
		Model:               name,
		Temperature:         openai.Float(temperature),
		MaxCompletionTokens: openai.Int(maxTokens),
	}
	if o.TopP != nil {
		params.TopP = openai.Float(*o.TopP)
	}
	if o.Seed != nil {
		params.Seed = openai.Int(*o.Seed)
	}
	if len(o.Stop) > 0 {
		params.Stop = openai.ChatCompletionNewParamsStopUnion{OfStringArray: o.Stop}
	}
	return params
}

// Info returns metadata describing this OpenAI model implementation.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:     m.opts.Model,
		Provider: "openai",
	}
}
