package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/procurematch/attestation-pipeline/internal/pipelineerr"
)

// ErrRefused is returned when the model declines to answer (safety or
// content policy), mirroring the teacher client's refusal handling.
var ErrRefused = errors.New("llm_refused")

// OpenAIProvider calls the Chat Completions API with a JSON-schema
// response format, adapted from Client.callStructured in the teacher
// repo and generalized to accept an optional page image for the vision
// tier.
type OpenAIProvider struct {
	client openai.Client
	model  string
	name   string
}

// NewOpenAIProvider builds a provider bound to apiKey/model. name
// distinguishes providers in a FallbackChain's logs (e.g. "openai-primary",
// "openai-vision").
func NewOpenAIProvider(apiKey, model, name string) *OpenAIProvider {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAIProvider{client: client, model: model, name: name}
}

func (p *OpenAIProvider) Name() string    { return p.name }
func (p *OpenAIProvider) ModelID() string { return p.model }

func (p *OpenAIProvider) CallStructured(ctx context.Context, req Request) (*Response, error) {
	model := p.model
	if req.Model != "" {
		model = req.Model
	}

	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(req.SystemPrompt),
	}
	if len(req.ImageData) > 0 {
		dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(req.ImageData)
		messages = append(messages, openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
			openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: dataURL}),
		}))
	} else {
		messages = append(messages, openai.UserMessage(req.UserContent))
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 2000
	}

	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:               openai.ChatModel(model),
		Messages:            messages,
		MaxCompletionTokens: openai.Int(int64(maxTokens)),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   "response",
					Schema: req.Schema,
					Strict: openai.Bool(true),
				},
			},
		},
	})
	if err != nil {
		statusCode := extractHTTPStatusCode(err)
		return nil, pipelineerr.Classify(statusCode, err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices returned", pipelineerr.ErrExtractorUnavailable)
	}
	choice := resp.Choices[0]

	if choice.Message.Refusal != "" {
		return nil, fmt.Errorf("%w: %s", ErrRefused, choice.Message.Refusal)
	}

	return &Response{
		Content:          choice.Message.Content,
		Model:            model,
		FinishReason:     string(choice.FinishReason),
		TokensUsed:       int(resp.Usage.TotalTokens),
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
	}, nil
}

// extractHTTPStatusCode pulls the upstream status code out of an
// openai-go API error, the way the teacher client classifies failures for
// its circuit breaker.
func extractHTTPStatusCode(err error) int {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
