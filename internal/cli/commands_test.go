package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"callput-engine/internal/config"
	"callput-engine/internal/errors"
	"callput-engine/internal/models"
)

const expiry8Mar24 = 1709884800

func newTestApp(t *testing.T) *App {
	t.Helper()
	cfg := config.Default()
	cfg.Store.Path = filepath.Join(t.TempDir(), "callput.db")

	app, err := NewApp(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	t.Cleanup(func() { app.Close() })
	return app
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func runCLI(t *testing.T, app *App, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd(app)
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func runJSON(t *testing.T, app *App, v interface{}, args ...string) {
	t.Helper()
	out, err := runCLI(t, app, append(args, "--json")...)
	if err != nil {
		t.Fatalf("%v: %v\n%s", args, err, out)
	}
	if err := json.Unmarshal([]byte(out), v); err != nil {
		t.Fatalf("%v: decoding output: %v\n%s", args, err, out)
	}
}

func encodeToken(t *testing.T, app *App, legs ...string) tokenView {
	t.Helper()
	args := []string{"token", "encode", "--asset", "BTC", "--expiry", "8MAR24"}
	for _, l := range legs {
		args = append(args, "--leg", l)
	}
	var view tokenView
	runJSON(t, app, &view, args...)
	return view
}

func TestTokenEncodeDecode(t *testing.T) {
	app := newTestApp(t)

	enc := encodeToken(t, app, "+C65000")
	if enc.Position.Strategy != models.StrategyBuyCall {
		t.Errorf("strategy = %v, want BuyCall", enc.Position.Strategy)
	}
	if enc.Position.Expiry != expiry8Mar24 {
		t.Errorf("expiry = %d, want %d", enc.Position.Expiry, expiry8Mar24)
	}
	if len(enc.Instruments) != 1 || enc.Instruments[0] != "BTC-8MAR24-65000-C" {
		t.Errorf("instruments = %v", enc.Instruments)
	}

	for _, id := range []string{enc.TokenID, enc.Hex} {
		var dec tokenView
		runJSON(t, app, &dec, "token", "decode", id)
		if dec.TokenID != enc.TokenID {
			t.Errorf("decode(%s) token = %s, want %s", id, dec.TokenID, enc.TokenID)
		}
		if dec.Position != enc.Position {
			t.Errorf("decode(%s) position = %+v, want %+v", id, dec.Position, enc.Position)
		}
	}
}

func TestTokenEncodeClassifiesSpread(t *testing.T) {
	app := newTestApp(t)

	view := encodeToken(t, app, "-C70000", "+C65000")
	if view.Position.Strategy != models.StrategyBuyCallSpread {
		t.Fatalf("strategy = %v, want BuyCallSpread", view.Position.Strategy)
	}
	if view.Position.Legs[0].StrikePrice != 65000 || view.Position.Legs[1].StrikePrice != 70000 {
		t.Errorf("legs not in slot order: %+v", view.Position.Legs)
	}
	if view.Direction != models.DirectionBullish {
		t.Errorf("direction = %v", view.Direction)
	}
	if view.ClosedBy != models.StrategySellCallSpread {
		t.Errorf("closed by = %v, want SellCallSpread", view.ClosedBy)
	}
}

func TestTokenEncodeErrors(t *testing.T) {
	app := newTestApp(t)

	cases := [][]string{
		{"token", "encode", "--asset", "DOGE", "--expiry", "8MAR24", "--leg", "+C1"},
		{"token", "encode", "--asset", "BTC", "--expiry", "8XXX24", "--leg", "+C1"},
		{"token", "encode", "--asset", "BTC", "--expiry", "8MAR24"},
		{"token", "encode", "--asset", "BTC", "--expiry", "8MAR24", "--leg", "+C65000", "--leg", "+P60000"},
		{"token", "decode", "not-a-number"},
		{"token", "decode", "0x-1"},
	}
	for _, args := range cases {
		if _, err := runCLI(t, app, args...); err == nil {
			t.Errorf("%v: expected an error", args)
		}
	}
}

func TestPriceCommand(t *testing.T) {
	app := newTestApp(t)

	var res priceResult
	runJSON(t, app, &res, "price",
		"--forward", "66000", "--strike", "65000", "--iv", "0.55",
		"--expiry", "8MAR24", "--as-of", "1709798400")

	if res.Value <= res.Intrinsic || res.Intrinsic != 1000 {
		t.Errorf("value %v, intrinsic %v", res.Value, res.Intrinsic)
	}
	if res.Greeks.Delta <= 0.5 || res.Greeks.Delta >= 1 {
		t.Errorf("delta = %v, want in (0.5, 1)", res.Greeks.Delta)
	}
	if res.Greeks.Theta >= 0 {
		t.Errorf("theta = %v, want negative", res.Greeks.Theta)
	}
}

func TestHoldingsAndSettledPnL(t *testing.T) {
	app := newTestApp(t)
	tok := encodeToken(t, app, "+C65000")

	if out, err := runCLI(t, app, "holdings", "add", tok.TokenID, "--size", "1", "--price", "1000"); err != nil {
		t.Fatalf("holdings add: %v\n%s", err, out)
	}

	var holdings []models.Holding
	runJSON(t, app, &holdings, "holdings", "list")
	if len(holdings) != 1 || holdings[0].TokenID != tok.TokenID {
		t.Fatalf("holdings = %+v", holdings)
	}

	runJSON(t, app, &holdings, "holdings", "list", "--asset", "ETH")
	if len(holdings) != 0 {
		t.Errorf("ETH filter returned %d holdings", len(holdings))
	}

	if out, err := runCLI(t, app, "settle", "set", "BTC", "8MAR24", "67000"); err != nil {
		t.Fatalf("settle set: %v\n%s", err, out)
	}

	var report pnlReport
	runJSON(t, app, &report, "pnl", "--as-of", "1709888400")
	if report.Summary == nil || len(report.Rows) != 1 {
		t.Fatalf("report = %+v", report)
	}
	r := report.Rows[0].Result
	if r.Mode != models.ModeSettled {
		t.Errorf("mode = %v, want SETTLED", r.Mode)
	}
	if r.PnL != 1000 || r.ROI != 100 {
		t.Errorf("pnl %v roi %v, want 1000 and 100", r.PnL, r.ROI)
	}
	if report.Summary.TotalPnL != 1000 || report.Summary.Invested != 1000 {
		t.Errorf("summary = %+v", report.Summary)
	}

	if out, err := runCLI(t, app, "holdings", "rm", tok.TokenID); err != nil {
		t.Fatalf("holdings rm: %v\n%s", err, out)
	}
	_, err := runCLI(t, app, "holdings", "rm", tok.TokenID)
	if !errors.Is(err, errors.ErrDataNotFound) {
		t.Errorf("second rm error = %v, want ErrDataNotFound", err)
	}
}

func TestOpenPnLFromModelMarks(t *testing.T) {
	app := newTestApp(t)
	tok := encodeToken(t, app, "+C65000")

	var report pnlReport
	runJSON(t, app, &report, "pnl", tok.TokenID,
		"--size", "2", "--price", "1000",
		"--model", "--forward", "BTC=70000", "--as-of", "1709798400")

	if report.Source != "model" || report.Summary != nil {
		t.Fatalf("report = %+v", report)
	}
	r := report.Rows[0].Result
	if r.Mode != models.ModeOpen {
		t.Errorf("mode = %v, want OPEN", r.Mode)
	}
	// Worth at least intrinsic 5000 per unit.
	if r.PnL < 8000 {
		t.Errorf("pnl = %v, want at least 8000", r.PnL)
	}
	if r.Greeks.Delta <= 0 {
		t.Errorf("delta = %v, want positive for a bought call", r.Greeks.Delta)
	}
}

func TestChartCommand(t *testing.T) {
	app := newTestApp(t)
	tok := encodeToken(t, app, "+C65000")

	var data models.ChartData
	runJSON(t, app, &data, "chart", tok.TokenID, "--price", "1000",
		"--model", "--forward", "BTC=66000", "--points", "50")

	if len(data.BreakEvenPoints) == 0 {
		t.Fatal("no break-even point")
	}
	if bep := data.BreakEvenPoints[0]; bep < 65990 || bep > 66010 {
		t.Errorf("break-even = %v, want about 66000", bep)
	}
	if len(data.Points) == 0 || len(data.Points) > 50 {
		t.Errorf("got %d points, want 1..50", len(data.Points))
	}

	out, err := runCLI(t, app, "chart", tok.TokenID, "--price", "1000", "--model", "--forward", "BTC=66000", "--width", "30", "--height", "8")
	if err != nil {
		t.Fatalf("chart: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Break-even: ") || strings.Contains(out, "Break-even: none") {
		t.Errorf("missing break-even line:\n%s", out)
	}
}

func TestAgentCallCommand(t *testing.T) {
	app := newTestApp(t)
	tok := encodeToken(t, app, "-P60000")

	out, err := runCLI(t, app, "agent", "call", "decode_option_token", `{"token_id":"`+tok.TokenID+`"}`, "--json")
	if err != nil {
		t.Fatalf("agent call: %v\n%s", err, out)
	}
	if !strings.Contains(out, "BTC-8MAR24-60000-P") {
		t.Errorf("decoded view missing instrument:\n%s", out)
	}

	if _, err := runCLI(t, app, "agent", "call", "no_such_tool"); !errors.Is(err, errors.ErrUnknownTool) {
		t.Errorf("unknown tool error = %v", err)
	}
	if _, err := runCLI(t, app, "agent", "call", "decode_option_token", "{oops"); err == nil {
		t.Error("expected an error for invalid JSON arguments")
	}
}

func TestSettleImportAndList(t *testing.T) {
	app := newTestApp(t)
	path := filepath.Join(t.TempDir(), "settle.json")
	writeFile(t, path, `{"1709884800": {"BTC": 67412.5, "ETH": 3890.1}}`)

	var res map[string]int
	runJSON(t, app, &res, "settle", "import", path)
	if res["imported"] != 2 {
		t.Errorf("imported = %d, want 2", res["imported"])
	}

	var doc map[string]map[string]float64
	runJSON(t, app, &doc, "settle", "list")
	if doc["1709884800"]["BTC"] != 67412.5 || doc["1709884800"]["ETH"] != 3890.1 {
		t.Errorf("settle list = %v", doc)
	}
}

func TestSnapshotImportShow(t *testing.T) {
	app := newTestApp(t)
	path := filepath.Join(t.TempDir(), "feed.json")
	writeFile(t, path, `{
  "asOf": 1709798400,
  "futures": {"BTC": 66000},
  "market": {
    "BTC": {
      "expiries": [1709884800],
      "options": {
        "1709884800": {
          "call": [{"instrument": "BTC-8MAR24-65000-C", "strikePrice": 65000, "markPrice": 1500, "markIv": 0.5, "delta": 0.6, "isOptionAvailable": true}],
          "put": []
        }
      }
    }
  }
}`)

	var imported map[string]int64
	runJSON(t, app, &imported, "snapshot", "import", path)
	if imported["options"] != 1 {
		t.Fatalf("import = %v", imported)
	}

	var shown struct {
		AsOf    int64                     `json:"as_of"`
		Options []models.OptionMarketData `json:"options"`
	}
	runJSON(t, app, &shown, "snapshot", "show")
	if shown.AsOf != 1709798400 || len(shown.Options) != 1 || shown.Options[0].MarkPrice != 1500 {
		t.Errorf("snapshot = %+v", shown)
	}

	// pnl now prices from the stored snapshot.
	tok := encodeToken(t, app, "+C65000")
	var report pnlReport
	runJSON(t, app, &report, "pnl", tok.TokenID, "--price", "1000", "--as-of", "1709798400")
	if report.Source != "stored snapshot" {
		t.Errorf("source = %q", report.Source)
	}
	if got := report.Rows[0].Result.PnL; got != 500 {
		t.Errorf("pnl = %v, want 500", got)
	}
}
