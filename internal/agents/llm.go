// Package agents exposes the option engine as OpenAI function tools and
// runs the tool-calling loop that lets a model answer questions with them.
package agents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	"callput-engine/internal/logging"
	"callput-engine/internal/resilience"
	"callput-engine/pkg/utils"
)

// ChatCompleter is the part of the OpenAI client the agent uses.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// ClientConfig configures an OpenAIClient.
type ClientConfig struct {
	APIKey        string
	BaseURL       string // optional OpenAI-compatible endpoint
	Model         string
	Temperature   float32
	MaxToolRounds int
	Retry         utils.RetryConfig

	// RequestsPerMinute limits completion calls; 0 disables the limit.
	RequestsPerMinute int
	// Breaker defaults to resilience.DefaultCircuitBreakerConfig.
	Breaker *resilience.CircuitBreakerConfig
}

// OpenAIClient wraps a chat completion API.
type OpenAIClient struct {
	client      ChatCompleter
	model       string
	temperature float32
	maxRounds   int
	retry       utils.RetryConfig
	breaker     *resilience.CircuitBreaker
	limiter     *resilience.RateLimiter
	logger      zerolog.Logger
}

// NewOpenAIClient creates a new OpenAI LLM client.
func NewOpenAIClient(cfg ClientConfig, logger zerolog.Logger) *OpenAIClient {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	return NewClientWith(openai.NewClientWithConfig(oc), cfg, logger)
}

// NewClientWith builds a client over any ChatCompleter.
func NewClientWith(cc ChatCompleter, cfg ClientConfig, logger zerolog.Logger) *OpenAIClient {
	rounds := cfg.MaxToolRounds
	if rounds <= 0 {
		rounds = 6
	}
	retry := cfg.Retry
	if retry.MaxAttempts == 0 {
		retry = utils.DefaultRetryConfig()
	}
	if retry.Retryable == nil {
		retry.Retryable = retryable
	}
	bc := resilience.DefaultCircuitBreakerConfig()
	if cfg.Breaker != nil {
		bc = *cfg.Breaker
	}
	var limiter *resilience.RateLimiter
	if cfg.RequestsPerMinute > 0 {
		limiter = resilience.PerMinute(cfg.RequestsPerMinute)
	}
	return &OpenAIClient{
		client:      cc,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxRounds:   rounds,
		retry:       retry,
		breaker:     resilience.NewCircuitBreaker("openai", bc, logger),
		limiter:     limiter,
		logger:      logger,
	}
}

// retryable rejects errors that another attempt cannot fix.
func retryable(err error) bool {
	return !errors.Is(err, resilience.ErrCircuitOpen) &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded)
}

func (c *OpenAIClient) create(ctx context.Context, messages []openai.ChatCompletionMessage, tools []openai.Tool) (openai.ChatCompletionMessage, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Tools:       tools,
		Temperature: c.temperature,
	}
	resp, err := utils.RetryWithResult(ctx, c.retry, func() (openai.ChatCompletionResponse, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return openai.ChatCompletionResponse{}, err
		}
		return resilience.Call(ctx, c.breaker, func(ctx context.Context) (openai.ChatCompletionResponse, error) {
			return c.client.CreateChatCompletion(ctx, req)
		})
	})
	if err != nil {
		return openai.ChatCompletionMessage{}, fmt.Errorf("openai completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return openai.ChatCompletionMessage{}, fmt.Errorf("no response from openai")
	}
	return resp.Choices[0].Message, nil
}

// CompleteWithSystem sends a prompt with system message to the LLM.
func (c *OpenAIClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	msg, err := c.create(ctx, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
		{Role: openai.ChatMessageRoleUser, Content: userPrompt},
	}, nil)
	if err != nil {
		return "", err
	}
	return msg.Content, nil
}

// ToolCallLog represents a single tool call in the chain of thought.
type ToolCallLog struct {
	ToolName  string `json:"tool"`
	Arguments string `json:"arguments"`
	Result    string `json:"result"`
	Failed    bool   `json:"failed,omitempty"`
}

// ChainOfThought captures the model's tool calls and its final answer.
type ChainOfThought struct {
	ToolCalls []ToolCallLog `json:"tool_calls"`
	Response  string        `json:"response"`
}

// ToolRunner executes one named tool call.
type ToolRunner interface {
	ExecuteTool(ctx context.Context, toolName string, args json.RawMessage) (string, error)
}

// CompleteWithToolsVerbose sends a prompt with tools, executes the calls the
// model makes and returns the full chain of thought. Tool errors are fed
// back to the model as results rather than aborting the loop.
func (c *OpenAIClient) CompleteWithToolsVerbose(ctx context.Context, systemPrompt, userPrompt string, tools []openai.Tool, runner ToolRunner) (*ChainOfThought, error) {
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
		{Role: openai.ChatMessageRoleUser, Content: userPrompt},
	}

	cot := &ChainOfThought{
		ToolCalls: make([]ToolCallLog, 0),
	}

	for round := 0; round < c.maxRounds; round++ {
		msg, err := c.create(ctx, messages, tools)
		if err != nil {
			return nil, err
		}

		if len(msg.ToolCalls) == 0 {
			cot.Response = msg.Content
			return cot, nil
		}

		messages = append(messages, msg)

		for _, call := range msg.ToolCalls {
			start := time.Now()
			result, err := runner.ExecuteTool(ctx, call.Function.Name, json.RawMessage(call.Function.Arguments))
			logging.LogToolCall(c.logger, call.Function.Name, time.Since(start), err)
			if err != nil {
				result = fmt.Sprintf("Error executing tool %s: %v", call.Function.Name, err)
			}

			cot.ToolCalls = append(cot.ToolCalls, ToolCallLog{
				ToolName:  call.Function.Name,
				Arguments: call.Function.Arguments,
				Result:    result,
				Failed:    err != nil,
			})

			messages = append(messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    result,
				ToolCallID: call.ID,
			})
		}
	}

	return cot, fmt.Errorf("exceeded %d tool call rounds", c.maxRounds)
}

// Model returns the model name.
func (c *OpenAIClient) Model() string {
	return c.model
}
