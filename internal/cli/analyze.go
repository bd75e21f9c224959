package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"harmonic-trader/internal/analysis/harmonic"
	"harmonic-trader/internal/analysis/mtf"
	apperrors "harmonic-trader/internal/errors"
	"harmonic-trader/internal/models"
	"harmonic-trader/internal/scanner"
)

// addAnalysisCommands adds pattern detection commands.
func addAnalysisCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newScanCmd(app))
	rootCmd.AddCommand(newMTFCmd(app))
	rootCmd.AddCommand(newTemplatesCmd())
}

func newScanCmd(app *App) *cobra.Command {
	var (
		file           string
		symbol         string
		timeframe      string
		lookback       int
		noPlaceholders bool
	)

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Detect harmonic patterns in a candle series",
		Long: `Detect harmonic patterns either in a JSON candle file or in the candles
stored for a symbol and timeframe.

Series shorter than the minimum length return illustrative placeholder
patterns, clearly marked as synthetic, unless --no-placeholders is given.`,
		Example: `  harmonic scan --file btc-4h.json --timeframe 4H
  harmonic scan --symbol BTCUSDT --timeframe 1D --lookback 5`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()

			tf, err := models.ParseTimeframe(timeframe)
			if err != nil {
				return err
			}
			if file == "" && symbol == "" {
				return apperrors.NewValidationError("symbol", "", "either --file or --symbol is required")
			}

			sc := app.Scanner
			cfg := sc.Detector().Config()
			if cmd.Flags().Changed("lookback") {
				cfg.Lookback = lookback
			}
			if noPlaceholders {
				cfg.AllowPlaceholders = false
			}
			if cfg != sc.Detector().Config() {
				if cfg.Lookback < 1 {
					return apperrors.NewValidationError("lookback", fmt.Sprint(lookback), "lookback must be at least 1")
				}
				sc = sc.WithDetectorConfig(cfg)
			}

			var report *scanner.Report
			if file != "" {
				candles, err := readCandlesFile(file)
				if err != nil {
					return err
				}
				if symbol == "" {
					symbol = symbolFromPath(file)
				}
				report, err = sc.ScanCandles(ctx, symbol, tf, candles)
				if err != nil {
					return err
				}
			} else {
				report, err = sc.Scan(ctx, symbol, tf)
				if err != nil {
					return err
				}
			}

			if output.IsJSON() {
				return output.JSON(report)
			}
			renderReport(output, report)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON candle file")
	cmd.Flags().StringVarP(&symbol, "symbol", "s", "", "symbol to scan from the store")
	cmd.Flags().StringVarP(&timeframe, "timeframe", "t", "1D", "timeframe (15m, 1H, 4H, 1D, 1W)")
	cmd.Flags().IntVar(&lookback, "lookback", harmonic.DefaultConfig().Lookback, "swing confirmation window")
	cmd.Flags().BoolVar(&noPlaceholders, "no-placeholders", false, "never return illustrative patterns")

	return cmd
}

// symbolFromPath derives a symbol from a candle file name.
func symbolFromPath(path string) string {
	base := filepath.Base(path)
	return strings.ToUpper(strings.TrimSuffix(base, filepath.Ext(base)))
}

// maxReasonWidth bounds the reason line so the summary box stays narrow.
const maxReasonWidth = 60

func renderReport(output *Output, report *scanner.Report) {
	res := report.Result

	title := fmt.Sprintf("%s %s", report.Symbol, report.Timeframe)
	lines := []string{
		fmt.Sprintf("Status:   %s", output.Status(res.Status)),
		fmt.Sprintf("Candles:  %d   Swings: %d", res.CandleCount, res.SwingCount),
		fmt.Sprintf("Time:     %s", FormatDuration(report.Duration)),
	}
	if report.Cached {
		lines = append(lines, output.DimText("Served from cache"))
	}
	if res.Reason != "" {
		lines = append(lines, fmt.Sprintf("Reason:   %s", TruncateString(res.Reason, maxReasonWidth)))
	}
	output.Box(title, lines)
	output.Println()

	if len(res.Patterns) == 0 {
		output.Warning("No harmonic patterns detected")
	} else {
		output.Bold("Detected Patterns (%d)", len(res.Patterns))
		renderPatternTable(output, res.Patterns)
		output.Println()
		for _, p := range res.Patterns {
			renderPatternDetail(output, p)
		}
		output.Printf("Average risk/reward: %s\n", FormatRiskReward(report.AverageRiskReward()))
		if len(report.Saved) > 0 {
			output.Dim("%d new detection(s) saved", len(report.Saved))
		}
	}

	if len(res.Placeholders) > 0 {
		output.Println()
		output.Warning("Illustrative patterns (synthetic, not trading signals)")
		renderPatternTable(output, res.Placeholders)
	}
}

func renderPatternTable(output *Output, patterns []harmonic.HarmonicPattern) {
	table := NewTable(output, "Pattern", "Direction", "Reliability", "Completion", "PRZ", "Entry", "TP1", "SL", "R:R")
	for _, p := range patterns {
		table.AddRow(
			p.Type.DisplayName(),
			output.Direction(p.Direction),
			FormatScore(p.Reliability),
			FormatScore(p.Completion),
			FormatPRZ(p.PRZ),
			FormatPrice(p.Entry()),
			FormatPrice(p.Target.TP1),
			FormatPrice(p.Target.SL),
			FormatRiskReward(p.RiskReward()),
		)
	}
	table.Render()
}

func renderPatternDetail(output *Output, p harmonic.HarmonicPattern) {
	output.Printf("%s  %s\n", output.BoldText(p.Type.DisplayName()), output.Direction(p.Direction))
	output.Printf("  X %s  A %s  B %s  C %s  D %s\n",
		FormatPrice(p.Points.X.Price), FormatPrice(p.Points.A.Price), FormatPrice(p.Points.B.Price),
		FormatPrice(p.Points.C.Price), FormatPrice(p.Points.D.Price))
	output.Printf("  D at %s\n", FormatDateTime(p.Points.D.Time))
	output.Printf("  Ratios  XAB %s  ABC %s  BCD %s  XAD %s\n",
		FormatRatio(p.Ratios.XAB), FormatRatio(p.Ratios.ABC), FormatRatio(p.Ratios.BCD), FormatRatio(p.Ratios.XAD))
	output.Printf("  Targets TP1 %s  TP2 %s  TP3 %s  SL %s\n",
		FormatPrice(p.Target.TP1), FormatPrice(p.Target.TP2), FormatPrice(p.Target.TP3), FormatPrice(p.Target.SL))
	output.Dim("  %s", p.Description)
	output.Dim("  %s", p.StrategyNote)
	output.Println()
}

func newMTFCmd(app *App) *cobra.Command {
	var (
		symbol     string
		timeframes string
		file1H     string
		file4H     string
		file1D     string
	)

	cmd := &cobra.Command{
		Use:   "mtf",
		Short: "Multi-timeframe harmonic analysis",
		Long: `Run the detector on several timeframes of one symbol, either from the
store or from one candle file per timeframe.`,
		Example: `  harmonic mtf --symbol BTCUSDT
  harmonic mtf --symbol BTCUSDT --timeframes 1H,4H
  harmonic mtf --file-1h btc-1h.json --file-4h btc-4h.json --file-1d btc-1d.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()

			files := map[models.Timeframe]string{}
			for tf, path := range map[models.Timeframe]string{
				models.Timeframe1Hour: file1H,
				models.Timeframe4Hour: file4H,
				models.Timeframe1Day:  file1D,
			} {
				if path != "" {
					files[tf] = path
				}
			}

			var (
				res *mtf.Result
				err error
			)
			if len(files) > 0 {
				byTimeframe := make(map[models.Timeframe][]models.Candle, len(files))
				for tf, path := range files {
					candles, err := readCandlesFile(path)
					if err != nil {
						return err
					}
					byTimeframe[tf] = candles
					if symbol == "" {
						symbol = symbolFromPath(path)
					}
				}
				res, err = app.Scanner.AnalyzeMulti(ctx, symbol, byTimeframe)
			} else {
				if symbol == "" {
					return apperrors.NewValidationError("symbol", "", "--symbol or at least one --file-* flag is required")
				}
				tfs, perr := parseTimeframes(timeframes)
				if perr != nil {
					return perr
				}
				res, err = app.Scanner.ScanMulti(ctx, symbol, tfs)
			}
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(res)
			}
			output.Print("%s", res.FormatResult())
			if dir, ok := res.Bias(); ok {
				output.Printf("\nOverall bias: %s\n", output.Direction(dir))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&symbol, "symbol", "s", "", "symbol")
	cmd.Flags().StringVar(&timeframes, "timeframes", "1H,4H,1D", "comma separated timeframes to load from the store")
	cmd.Flags().StringVar(&file1H, "file-1h", "", "1H candle file")
	cmd.Flags().StringVar(&file4H, "file-4h", "", "4H candle file")
	cmd.Flags().StringVar(&file1D, "file-1d", "", "1D candle file")

	return cmd
}

// parseTimeframes parses a comma separated list, dropping duplicates.
func parseTimeframes(list string) ([]models.Timeframe, error) {
	var tfs []models.Timeframe
	seen := make(map[models.Timeframe]bool)
	for _, s := range strings.Split(list, ",") {
		if strings.TrimSpace(s) == "" {
			continue
		}
		tf, err := models.ParseTimeframe(s)
		if err != nil {
			return nil, err
		}
		if !seen[tf] {
			seen[tf] = true
			tfs = append(tfs, tf)
		}
	}
	return tfs, nil
}

func newTemplatesCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "templates",
		Short:       "Show pattern ratio templates and reference statistics",
		Annotations: noBootstrap(),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			type row struct {
				Template   harmonic.PatternTemplate `json:"template"`
				Statistics harmonic.PatternStats    `json:"statistics"`
				Expectancy float64                  `json:"expectancy"`
			}

			tpls := harmonic.Templates()
			rows := make([]row, 0, len(tpls))
			for _, t := range tpls {
				stats := harmonic.Statistics(t.Type)
				rows = append(rows, row{Template: t, Statistics: stats, Expectancy: stats.Expectancy()})
			}
			if output.IsJSON() {
				return output.JSON(rows)
			}

			output.Bold("Ratio Bands")
			bands := NewTable(output, "Pattern", "XAB", "ABC", "BCD", "XAD")
			for _, r := range rows {
				t := r.Template
				bands.AddRow(t.Type.DisplayName(), FormatRange(t.XAB), FormatRange(t.ABC), FormatRange(t.BCD), FormatRange(t.XAD))
			}
			bands.Render()
			output.Println()

			output.Bold("Reference Statistics")
			stats := NewTable(output, "Pattern", "Win Rate", "Avg Profit", "Avg Loss", "Expectancy", "Frequency")
			for _, r := range rows {
				s := r.Statistics
				stats.AddRow(
					s.Type.DisplayName(),
					FormatScore(s.WinRate),
					FormatPercent(s.AvgProfit),
					FormatPercent(-s.AvgLoss),
					FormatPercent(r.Expectancy),
					string(s.Frequency),
				)
			}
			stats.Render()
			output.Dim("Figures are illustrative reference values, not backtest results.")
			return nil
		},
	}
}
