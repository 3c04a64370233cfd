package main

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/insight-edu/pageflow/internal/config"
	"github.com/insight-edu/pageflow/internal/model"
	"github.com/insight-edu/pageflow/internal/model/anthropic"
	"github.com/insight-edu/pageflow/internal/model/bedrock"
	"github.com/insight-edu/pageflow/internal/model/openai"
)

// buildModelClient selects a provider from whichever credential cfg carries,
// preferring Anthropic (the Planner/Router's best-tested provider, per the
// teacher's own Claude-first assistant design) then OpenAI then Bedrock, so
// an operator only needs to set one credential to stand the service up.
func buildModelClient(ctx context.Context, cfg *config.Config) (model.Client, error) {
	switch {
	case cfg.AnthropicAPIKey != "":
		return anthropic.NewFromAPIKey(cfg.AnthropicAPIKey, anthropic.Options{
			DefaultModel: "claude-3-5-sonnet-20241022",
			HighModel:    "claude-3-5-sonnet-20241022",
			SmallModel:   "claude-3-5-haiku-20241022",
			MaxTokens:    4096,
			Temperature:  0.2,
		})
	case cfg.OpenAIAPIKey != "":
		return openai.NewFromAPIKey(cfg.OpenAIAPIKey, openai.Options{
			DefaultModel: "gpt-4o",
			HighModel:    "gpt-4o",
			SmallModel:   "gpt-4o-mini",
		})
	case cfg.AWSRegion != "":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			return nil, fmt.Errorf("loading AWS config: %w", err)
		}
		rt := bedrockruntime.NewFromConfig(awsCfg)
		return bedrock.New(bedrock.Options{
			Runtime:      rt,
			DefaultModel: "anthropic.claude-3-5-sonnet-20241022-v2:0",
			HighModel:    "anthropic.claude-3-5-sonnet-20241022-v2:0",
			SmallModel:   "anthropic.claude-3-5-haiku-20241022-v1:0",
			MaxTokens:    4096,
			Temperature:  0.2,
		})
	default:
		return nil, fmt.Errorf("no model provider configured: set ANTHROPIC_API_KEY, OPENAI_API_KEY, or AWS_REGION")
	}
}
