package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# Callput option engine configuration

[chart]
# Price step of the payoff curve
tick_interval = 1.0
# Display margins around the break-even point, as fractions
naked_min_margin = 0.1
naked_max_margin = 0.1
combo_min_margin = 0.2
combo_max_margin = 0.2
# Window widens by days_to_expiry / days_divisor
days_divisor = 60.0
# Terminal chart size
width = 72
height = 18

[pricing]
# Discount rate applied to the strike leg (0 for crypto dailies)
risk_free_rate = 0.0

[pricing.default_vols]
# Flat vols used when no market snapshot is supplied
BTC = 0.55
ETH = 0.7

[[assets]]
index = 1
ticker = "BTC"
decimals = 8

[[assets]]
index = 2
ticker = "ETH"
decimals = 18

[store]
# SQLite database; defaults to callput.db next to this file
path = ""

[logging]
# debug, info, warn, error
level = "info"
console = true
# Rotated log file; leave empty to disable
file = ""

[agent]
model = "gpt-4o"
# Maximum tool-call round trips per question
max_tool_rounds = 6
temperature = 0.2
# Chat completion calls per minute; 0 disables the limit
requests_per_minute = 30
`

const credentialsTemplate = `# Callput option engine credentials
# WARNING: Keep this file secure! Do not commit to version control.

[openai]
api_key = ""
# Optional OpenAI-compatible endpoint
base_url = ""
`

func createTemplate(configDir, name, content string, perm os.FileMode) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, name)
	if err := os.WriteFile(path, []byte(content), perm); err != nil {
		return fmt.Errorf("writing %s template: %w", name, err)
	}
	return nil
}
