// Package bedrock provides a model.Client implementation backed by the AWS
// Bedrock Converse API. It splits system vs. conversational messages and
// translates Converse responses back into model.Response, giving operators a
// region-local or cost-tiered alternative to the Anthropic API for the
// Router, Planner, and Chat agent.
package bedrock

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	smithy "github.com/aws/smithy-go"

	"github.com/insight-edu/pageflow/internal/model"
)

// RuntimeClient mirrors the subset of the AWS Bedrock runtime client required
// by the adapter, matching *bedrockruntime.Client so tests can substitute a
// fake.
type RuntimeClient interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
	ConverseStream(ctx context.Context, params *bedrockruntime.ConverseStreamInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseStreamOutput, error)
}

// Options configures the Bedrock client adapter.
type Options struct {
	Runtime      RuntimeClient
	DefaultModel string
	HighModel    string
	SmallModel   string
	MaxTokens    int
	Temperature  float32
}

// Client implements model.Client on top of AWS Bedrock Converse.
type Client struct {
	runtime      RuntimeClient
	defaultModel string
	highModel    string
	smallModel   string
	maxTok       int
	temp         float32
}

// New builds a Bedrock-backed client.
func New(opts Options) (*Client, error) {
	if opts.Runtime == nil {
		return nil, errors.New("bedrock: runtime client is required")
	}
	if opts.DefaultModel == "" {
		return nil, errors.New("bedrock: default model identifier is required")
	}
	return &Client{
		runtime:      opts.Runtime,
		defaultModel: opts.DefaultModel,
		highModel:    opts.HighModel,
		smallModel:   opts.SmallModel,
		maxTok:       opts.MaxTokens,
		temp:         opts.Temperature,
	}, nil
}

// Complete issues a non-streaming Converse call.
func (c *Client) Complete(ctx context.Context, req model.Request) (model.Response, error) {
	input, err := c.buildConverseInput(req)
	if err != nil {
		return model.Response{}, err
	}
	out, err := c.runtime.Converse(ctx, input)
	if err != nil {
		return model.Response{}, &model.ProviderError{Provider: "bedrock", Retryable: isRetryable(err), Err: err}
	}
	return translateResponse(out)
}

// Stream issues a ConverseStream call and adapts it into model.Chunks.
func (c *Client) Stream(ctx context.Context, req model.Request) (model.Streamer, error) {
	parts, err := c.prepareMessages(req)
	if err != nil {
		return nil, err
	}
	input := &bedrockruntime.ConverseStreamInput{
		ModelId:       aws.String(c.resolveModelID(req)),
		Messages:      parts.messages,
		System:        parts.system,
		InferenceConfig: c.inferenceConfig(req),
	}
	out, err := c.runtime.ConverseStream(ctx, input)
	if err != nil {
		return nil, &model.ProviderError{Provider: "bedrock", Retryable: isRetryable(err), Err: err}
	}
	return newStreamer(out), nil
}

type requestParts struct {
	messages []brtypes.Message
	system   []brtypes.SystemContentBlock
}

func (c *Client) buildConverseInput(req model.Request) (*bedrockruntime.ConverseInput, error) {
	parts, err := c.prepareMessages(req)
	if err != nil {
		return nil, err
	}
	return &bedrockruntime.ConverseInput{
		ModelId:         aws.String(c.resolveModelID(req)),
		Messages:        parts.messages,
		System:          parts.system,
		InferenceConfig: c.inferenceConfig(req),
	}, nil
}

func (c *Client) prepareMessages(req model.Request) (*requestParts, error) {
	if len(req.Messages) == 0 {
		return nil, errors.New("bedrock: messages are required")
	}
	msgs := make([]brtypes.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		text := m.Text()
		if text == "" {
			continue
		}
		var role brtypes.ConversationRole
		switch m.Role { //nolint:exhaustive
		case model.RoleUser:
			role = brtypes.ConversationRoleUser
		case model.RoleAssistant:
			role = brtypes.ConversationRoleAssistant
		default:
			return nil, fmt.Errorf("bedrock: unsupported message role %q", m.Role)
		}
		msgs = append(msgs, brtypes.Message{
			Role:    role,
			Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: text}},
		})
	}
	if len(msgs) == 0 {
		return nil, errors.New("bedrock: at least one user/assistant message is required")
	}

	system := req.System
	if req.Format.Type == model.FormatJSON {
		system += jsonModeInstruction(req.Format)
	}
	var sys []brtypes.SystemContentBlock
	if system != "" {
		sys = []brtypes.SystemContentBlock{&brtypes.SystemContentBlockMemberText{Value: system}}
	}
	return &requestParts{messages: msgs, system: sys}, nil
}

func jsonModeInstruction(f model.ResponseFormat) string {
	msg := "\n\nRespond with a single JSON object and nothing else: no prose, no markdown code fences."
	if len(f.Schema) > 0 {
		msg += " The object must validate against this JSON Schema:\n" + string(f.Schema)
	}
	return msg
}

func (c *Client) resolveModelID(req model.Request) string {
	if req.Model != "" {
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

func (c *Client) inferenceConfig(req model.Request) *brtypes.InferenceConfiguration {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTok
	}
	cfg := &brtypes.InferenceConfiguration{}
	if maxTokens > 0 {
		cfg.MaxTokens = aws.Int32(int32(maxTokens))
	}
	temp := req.Temperature
	if temp <= 0 {
		temp = c.temp
	}
	if temp > 0 {
		cfg.Temperature = aws.Float32(temp)
	}
	return cfg
}

func isRetryable(err error) bool {
	var throttling *brtypes.ThrottlingException
	if errors.As(err, &throttling) {
		return true
	}
	var serviceUnavailable *brtypes.ServiceUnavailableException
	if errors.As(err, &serviceUnavailable) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ThrottlingException", "ServiceUnavailableException", "ModelTimeoutException":
			return true
		}
		return false
	}
	return true
}

func translateResponse(out *bedrockruntime.ConverseOutput) (model.Response, error) {
	msg, ok := out.Output.(*brtypes.ConverseOutputMemberMessage)
	if !ok {
		return model.Response{}, errors.New("bedrock: response carried no message output")
	}
	var text string
	for _, block := range msg.Value.Content {
		if tb, ok := block.(*brtypes.ContentBlockMemberText); ok {
			text += tb.Value
		}
	}
	resp := model.Response{
		Message:    model.AssistantMessage(text),
		StopReason: string(out.StopReason),
	}
	if u := out.Usage; u != nil {
		resp.Usage = model.TokenUsage{
			InputTokens:  int(aws.ToInt32(u.InputTokens)),
			OutputTokens: int(aws.ToInt32(u.OutputTokens)),
		}
	}
	return resp, nil
}
