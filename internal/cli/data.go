package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"harmonic-trader/internal/analysis/harmonic"
	apperrors "harmonic-trader/internal/errors"
	"harmonic-trader/internal/models"
	"harmonic-trader/internal/scanner"
	"harmonic-trader/internal/store"
)

// addDataCommands adds candle and history commands.
func addDataCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newImportCmd(app))
	rootCmd.AddCommand(newCandlesCmd(app))
	rootCmd.AddCommand(newHistoryCmd(app))
}

// readCandlesFile reads a JSON candle file. Both a bare array and an object
// with a "candles" array are accepted. Candles must be strictly ascending.
func readCandlesFile(path string) ([]models.Candle, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.NewDataError("candles", path, "reading candle file", err)
	}

	var candles []models.Candle
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || (trimmed[0] != '[' && trimmed[0] != '{') {
		return nil, fmt.Errorf("%w: %s is not a JSON candle array or object", apperrors.ErrUnsupportedFormat, path)
	}
	if trimmed[0] == '{' {
		var wrapped struct {
			Candles []models.Candle `json:"candles"`
		}
		if err := json.Unmarshal(trimmed, &wrapped); err != nil {
			return nil, apperrors.NewValidationError("file", path, fmt.Sprintf("invalid candle JSON: %v", err))
		}
		candles = wrapped.Candles
	} else if err := json.Unmarshal(trimmed, &candles); err != nil {
		return nil, apperrors.NewValidationError("file", path, fmt.Sprintf("invalid candle JSON: %v", err))
	}

	for i := 1; i < len(candles); i++ {
		if !candles[i].Timestamp.After(candles[i-1].Timestamp) {
			return nil, apperrors.NewValidationError("file", path,
				fmt.Sprintf("candle %d is not after candle %d", i, i-1))
		}
	}
	return candles, nil
}

func newImportCmd(app *App) *cobra.Command {
	var (
		symbol    string
		timeframe string
		file      string
	)

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import candles from a JSON file into the store",
		Long: `Import OHLCV candles into the local SQLite store. Candles with a
timestamp already stored for the symbol and timeframe are replaced.`,
		Example: `  harmonic import --symbol BTCUSDT --timeframe 4H --file btc-4h.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()

			if err := app.requireStore(); err != nil {
				return err
			}
			sym, err := scanner.NormalizeSymbol(symbol)
			if err != nil {
				return err
			}
			tf, err := models.ParseTimeframe(timeframe)
			if err != nil {
				return err
			}
			candles, err := readCandlesFile(file)
			if err != nil {
				return err
			}
			if len(candles) == 0 {
				return apperrors.NewValidationError("file", file, "no candles in file")
			}

			if err := app.Store.SaveCandles(ctx, sym, tf, candles); err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"symbol":    sym,
					"timeframe": tf,
					"imported":  len(candles),
					"from":      candles[0].Timestamp,
					"to":        candles[len(candles)-1].Timestamp,
				})
			}
			output.Success("✓ Imported %d %s candles for %s", len(candles), tf, sym)
			output.Dim("  %s to %s", FormatDateTime(candles[0].Timestamp), FormatDateTime(candles[len(candles)-1].Timestamp))
			return nil
		},
	}

	cmd.Flags().StringVarP(&symbol, "symbol", "s", "", "symbol")
	cmd.Flags().StringVarP(&timeframe, "timeframe", "t", "1D", "timeframe (15m, 1H, 4H, 1D, 1W)")
	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON candle file")
	_ = cmd.MarkFlagRequired("symbol")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func newCandlesCmd(app *App) *cobra.Command {
	var (
		timeframe string
		limit     int
		since     string
	)

	cmd := &cobra.Command{
		Use:   "candles <symbol>",
		Short: "Show stored candles",
		Example: `  harmonic candles BTCUSDT --timeframe 4H --limit 20
  harmonic candles BTCUSDT --timeframe 1D --since 2024-01-01`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()

			if err := app.requireStore(); err != nil {
				return err
			}
			sym, err := scanner.NormalizeSymbol(args[0])
			if err != nil {
				return err
			}
			tf, err := models.ParseTimeframe(timeframe)
			if err != nil {
				return err
			}

			var candles []models.Candle
			if since != "" {
				from, perr := time.Parse("2006-01-02", since)
				if perr != nil {
					return apperrors.NewValidationError("since", since, "expected YYYY-MM-DD")
				}
				candles, err = app.Store.GetCandles(ctx, sym, tf, from, time.Now().UTC())
			} else {
				candles, err = app.Store.GetLatestCandles(ctx, sym, tf, limit)
			}
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(candles)
			}
			if len(candles) == 0 {
				output.Warning("No %s candles stored for %s", tf, sym)
				return nil
			}

			output.Bold("%s %s (%d candles)", sym, tf, len(candles))
			table := NewTable(output, "Time", "Open", "High", "Low", "Close", "Volume")
			for _, c := range candles {
				table.AddRow(
					FormatDateTime(c.Timestamp),
					FormatPrice(c.Open),
					output.Green(FormatPrice(c.High)),
					output.Red(FormatPrice(c.Low)),
					FormatPrice(c.Close),
					FormatVolume(c.Volume),
				)
			}
			table.Render()

			if latest, ferr := app.Store.GetCandlesFreshness(ctx, sym, tf); ferr == nil && !latest.IsZero() {
				output.Dim("Latest candle %s (%s ago)", FormatDateTime(latest), FormatDuration(time.Since(latest)))
			}
			if last := app.Store.GetLastScan(store.ScanKey(sym, tf)); !last.IsZero() {
				output.Dim("Last scanned %s", FormatDateTime(last))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&timeframe, "timeframe", "t", "1D", "timeframe (15m, 1H, 4H, 1D, 1W)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of candles")
	cmd.Flags().StringVar(&since, "since", "", "show every candle from this date (YYYY-MM-DD)")

	return cmd
}

func newHistoryCmd(app *App) *cobra.Command {
	var (
		symbol         string
		timeframe      string
		pattern        string
		minReliability float64
		limit          int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List stored pattern detections",
		Example: `  harmonic history --symbol BTCUSDT
  harmonic history --timeframe 4H --pattern Bat --min-reliability 70`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()

			if err := app.requireStore(); err != nil {
				return err
			}

			filter := store.DetectionFilter{
				Symbol:         strings.ToUpper(strings.TrimSpace(symbol)),
				MinReliability: minReliability,
				Limit:          limit,
			}
			if timeframe != "" {
				tf, err := models.ParseTimeframe(timeframe)
				if err != nil {
					return err
				}
				filter.Timeframe = tf
			}
			if pattern != "" {
				pt, err := parsePatternType(pattern)
				if err != nil {
					return err
				}
				filter.PatternType = pt
			}

			records, err := app.Store.GetDetections(ctx, filter)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(records)
			}
			if len(records) == 0 {
				output.Warning("No detections found")
				return nil
			}

			table := NewTable(output, "Detected", "Symbol", "TF", "Pattern", "Direction", "Reliability", "Entry", "TP1", "SL")
			for _, r := range records {
				p := r.Pattern
				table.AddRow(
					FormatDateTime(r.DetectedAt),
					r.Symbol,
					string(r.Timeframe),
					p.Type.DisplayName(),
					output.Direction(p.Direction),
					FormatScore(p.Reliability),
					FormatPrice(p.Entry()),
					FormatPrice(p.Target.TP1),
					FormatPrice(p.Target.SL),
				)
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().StringVarP(&symbol, "symbol", "s", "", "filter by symbol")
	cmd.Flags().StringVarP(&timeframe, "timeframe", "t", "", "filter by timeframe")
	cmd.Flags().StringVarP(&pattern, "pattern", "p", "", "filter by pattern type")
	cmd.Flags().Float64Var(&minReliability, "min-reliability", 0, "minimum reliability score")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "maximum rows")

	return cmd
}

// parsePatternType matches a pattern name case-insensitively.
func parsePatternType(s string) (harmonic.PatternType, error) {
	name := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), " pattern")
	for _, pt := range harmonic.AllPatternTypes() {
		if strings.ToLower(string(pt)) == name {
			return pt, nil
		}
	}
	return "", apperrors.NewValidationError("pattern", s, "unknown pattern type")
}
