package agents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"callput-engine/internal/market"
)

// Agent answers questions about option positions by letting a model call
// the engine tools.
type Agent struct {
	llm      *OpenAIClient
	executor *ToolExecutor
	tools    []openai.Tool
	registry *market.Registry
	now      func() time.Time
}

// NewAgent creates an agent over an LLM client and a tool executor.
func NewAgent(llm *OpenAIClient, executor *ToolExecutor) *Agent {
	return &Agent{
		llm:      llm,
		executor: executor,
		tools:    GetToolDefinitions(),
		registry: executor.cfg.Registry,
		now:      executor.cfg.Now,
	}
}

// SystemPrompt describes the engine's conventions to the model.
func (a *Agent) SystemPrompt() string {
	var assets []string
	for _, asset := range a.registry.Assets() {
		assets = append(assets, fmt.Sprintf("%s=%d", asset.Ticker, asset.Index))
	}

	var b strings.Builder
	b.WriteString("You are an options analyst for a DeFi options venue. Positions are ERC-1155 tokens whose 256-bit id encodes ")
	b.WriteString("the underlying, expiry, strategy and up to four legs.\n\n")
	b.WriteString("Conventions:\n")
	fmt.Fprintf(&b, "- Underlying asset indexes: %s.\n", strings.Join(assets, ", "))
	b.WriteString("- Strategies: BuyCall, SellCall, BuyPut, SellPut and the vertical spreads BuyCallSpread, SellCallSpread, BuyPutSpread, SellPutSpread.\n")
	fmt.Fprintf(&b, "- Options expire at %02d:00 UTC. Instruments are named TICKER-DMONYY-STRIKE-C|P.\n", market.ExpiryHourUTC)
	b.WriteString("- Implied vols are annualized fractions; prices are in USD per contract.\n")
	fmt.Fprintf(&b, "- The current time is %s.\n\n", a.now().UTC().Format(time.RFC3339))
	b.WriteString("Always compute numbers with the tools instead of estimating them. Quote token ids exactly as the tools return them.")
	return b.String()
}

// Ask runs the tool-calling loop for one question.
func (a *Agent) Ask(ctx context.Context, question string) (*ChainOfThought, error) {
	return a.llm.CompleteWithToolsVerbose(ctx, a.SystemPrompt(), question, a.tools, a.executor)
}
