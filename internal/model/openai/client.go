// Package openai provides a model.Client implementation backed by the OpenAI
// Chat Completions API using github.com/sashabaranov/go-openai. It is an
// alternate provider, selected when an operator configures an OpenAI key
// and no Anthropic key.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/insight-edu/pageflow/internal/model"
)

// ChatClient captures the subset of the go-openai client used by the adapter.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Options configures the OpenAI adapter.
type Options struct {
	Client       ChatClient
	DefaultModel string
	HighModel    string
	SmallModel   string
}

// Client implements model.Client via the OpenAI Chat Completions API.
type Client struct {
	chat         ChatClient
	defaultModel string
	highModel    string
	smallModel   string
}

// New builds an OpenAI-backed model client from the provided options.
func New(opts Options) (*Client, error) {
	if opts.Client == nil {
		return nil, errors.New("openai: client is required")
	}
	modelID := strings.TrimSpace(opts.DefaultModel)
	if modelID == "" {
		return nil, errors.New("openai: default model is required")
	}
	return &Client{
		chat:         opts.Client,
		defaultModel: modelID,
		highModel:    opts.HighModel,
		smallModel:   opts.SmallModel,
	}, nil
}

// NewFromAPIKey constructs a client using the default go-openai HTTP client.
func NewFromAPIKey(apiKey string, opts Options) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("openai: api key is required")
	}
	opts.Client = openai.NewClient(apiKey)
	return New(opts)
}

// Complete renders a chat completion using the configured OpenAI client.
func (c *Client) Complete(ctx context.Context, req model.Request) (model.Response, error) {
	request, err := c.prepareRequest(req)
	if err != nil {
		return model.Response{}, err
	}
	resp, err := c.chat.CreateChatCompletion(ctx, request)
	if err != nil {
		return model.Response{}, &model.ProviderError{Provider: "openai", Retryable: isRetryable(err), Err: err}
	}
	return translateResponse(resp), nil
}

// Stream reports that OpenAI Chat Completions streaming is not wired into
// this adapter; the Anthropic and Bedrock adapters implement Stream.
func (c *Client) Stream(context.Context, model.Request) (model.Streamer, error) {
	return nil, errors.New("openai: streaming is not supported by this adapter")
}

func (c *Client) prepareRequest(req model.Request) (openai.ChatCompletionRequest, error) {
	if len(req.Messages) == 0 {
		return openai.ChatCompletionRequest{}, errors.New("openai: messages are required")
	}
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	for _, msg := range req.Messages {
		role, err := encodeRole(msg.Role)
		if err != nil {
			return openai.ChatCompletionRequest{}, err
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: msg.Text()})
	}
	request := openai.ChatCompletionRequest{
		Model:       c.resolveModelID(req),
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if req.Format.Type == model.FormatJSON {
		if len(req.Format.Schema) > 0 {
			var schema any
			if err := json.Unmarshal(req.Format.Schema, &schema); err != nil {
				return openai.ChatCompletionRequest{}, fmt.Errorf("openai: invalid response schema: %w", err)
			}
			name := req.Format.Name
			if name == "" {
				name = "response"
			}
			request.ResponseFormat = &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
				JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
					Name:   name,
					Schema: schema,
					Strict: true,
				},
			}
		} else {
			request.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
		}
	}
	return request, nil
}

func encodeRole(role model.ConversationRole) (string, error) {
	switch role {
	case model.RoleUser:
		return openai.ChatMessageRoleUser, nil
	case model.RoleAssistant:
		return openai.ChatMessageRoleAssistant, nil
	case model.RoleSystem:
		return openai.ChatMessageRoleSystem, nil
	default:
		return "", fmt.Errorf("openai: unsupported message role %q", role)
	}
}

func (c *Client) resolveModelID(req model.Request) string {
	if strings.TrimSpace(req.Model) != "" {
		return req.Model
	}
	switch req.ModelClass {
	case model.ClassHighReasoning:
		if c.highModel != "" {
			return c.highModel
		}
	case model.ClassSmall:
		if c.smallModel != "" {
			return c.smallModel
		}
	}
	return c.defaultModel
}

func isRetryable(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500
	}
	return true
}

func translateResponse(resp openai.ChatCompletionResponse) model.Response {
	var text, stop string
	if len(resp.Choices) > 0 {
		text = resp.Choices[0].Message.Content
		stop = string(resp.Choices[0].FinishReason)
	}
	return model.Response{
		Message:    model.AssistantMessage(text),
		StopReason: stop,
		Usage: model.TokenUsage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
	}
}
