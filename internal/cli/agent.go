package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"callput-engine/internal/agents"
	"callput-engine/pkg/utils"
)

func newAgentCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Query positions through the LLM tool surface",
		Long: `The agent exposes token decoding, validation, valuation and payoff tools to
an OpenAI-compatible chat model. The same tools can be called directly with
"agent call" without a model.`,
	}

	cmd.AddCommand(newAgentToolsCmd())
	cmd.AddCommand(newAgentCallCmd(app))
	cmd.AddCommand(newAgentAskCmd(app))

	return cmd
}

// executor wires the tool surface to the resolved market and the store.
func (a *App) executor(ctx context.Context, cmd *cobra.Command) (*agents.ToolExecutor, error) {
	md, err := a.loadMarket(ctx, cmd)
	if err != nil {
		return nil, err
	}
	cfg := agents.ExecutorConfig{
		Registry: a.Registry,
		Snapshot: md.Snapshot,
		Marks:    md.Env.Marks,
		Forwards: md.Env.Forwards,
		Settles:  md.Env.Settles,
		Chart:    a.ChartConfig(),
		Now:      func() time.Time { return time.Unix(md.Env.AsOf, 0) },
	}
	if st, err := a.Store(); err == nil {
		cfg.Holdings = st
	}
	return agents.NewToolExecutor(cfg), nil
}

func newAgentToolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List the agent tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			tools := agents.GetToolDefinitions()

			if output.IsJSON() {
				return output.JSON(tools)
			}
			table := NewTable(output, "Tool", "Description")
			for _, t := range tools {
				table.AddRow(output.Cyan(t.Function.Name), TruncateString(t.Function.Description, 80))
			}
			table.Render()
			return nil
		},
	}
}

func newAgentCallCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "call <tool> [json-args]",
		Short: "Call one tool directly",
		Example: `  callput agent call decode_option_token '{"token_id":"0x0001..."}'
  callput agent call get_portfolio_summary --snapshot feed.json`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := app.context(cmd, "agent.call")

			raw := json.RawMessage("{}")
			if len(args) == 2 {
				if !json.Valid([]byte(args[1])) {
					return fmt.Errorf("arguments are not valid JSON")
				}
				raw = json.RawMessage(args[1])
			}

			te, err := app.executor(ctx, cmd)
			if err != nil {
				return err
			}
			result, err := te.ExecuteTool(ctx, args[0], raw)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				output.Println(result)
				return nil
			}
			var pretty interface{}
			if err := json.Unmarshal([]byte(result), &pretty); err != nil {
				output.Println(result)
				return nil
			}
			return output.JSON(pretty)
		},
	}

	addMarketFlags(cmd)

	return cmd
}

func newAgentAskCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask the model about tokens and positions",
		Example: `  callput agent ask "What is the break-even of 0x0001... bought at 850?"
  callput agent ask "Summarize my portfolio" --snapshot feed.json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := app.context(cmd, "agent.ask")

			creds := app.Config.Credentials.OpenAI
			if creds.APIKey == "" {
				return fmt.Errorf("no OpenAI API key configured; set it in credentials.toml or OPENAI_API_KEY")
			}

			te, err := app.executor(ctx, cmd)
			if err != nil {
				return err
			}
			timeout, _ := cmd.Flags().GetDuration("timeout")
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			llm := agents.NewOpenAIClient(agents.ClientConfig{
				APIKey:            creds.APIKey,
				BaseURL:           creds.BaseURL,
				Model:             app.Config.Agent.Model,
				Temperature:       app.Config.Agent.Temperature,
				MaxToolRounds:     app.Config.Agent.MaxToolRounds,
				Retry:             utils.DefaultRetryConfig(),
				RequestsPerMinute: app.Config.Agent.RequestsPerMinute,
			}, app.Logger)
			agent := agents.NewAgent(llm, te)

			cot, err := agent.Ask(ctx, strings.Join(args, " "))
			if err != nil && cot == nil {
				return err
			}

			if output.IsJSON() {
				if jerr := output.JSON(cot); jerr != nil {
					return jerr
				}
				return err
			}

			if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
				for _, call := range cot.ToolCalls {
					status := output.Green("ok")
					if call.Failed {
						status = output.Red("failed")
					}
					output.Printf("%s %s %s\n", output.Cyan(call.ToolName), output.DimText(TruncateString(call.Arguments, 60)), status)
				}
				if len(cot.ToolCalls) > 0 {
					output.Println()
				}
			}
			if cot.Response != "" {
				output.Println(cot.Response)
			}
			return err
		},
	}

	addMarketFlags(cmd)
	cmd.Flags().BoolP("verbose", "v", false, "show the tool calls made")
	cmd.Flags().Duration("timeout", 2*time.Minute, "overall time limit")

	return cmd
}
