package harmonic

import (
	"fmt"

	"harmonic-trader/internal/analysis"
)

type strategyNotes struct {
	bullish string
	bearish string
}

var notesByType = map[PatternType]strategyNotes{
	Gartley: {
		bullish: "Gartley complete. Buy at D (0.786 XA). Stop below X; targets at the 0.382 and 0.618 AB retracements.",
		bearish: "Gartley complete. Sell at D (0.786 XA). Stop above X; targets at the 0.382 and 0.618 AB retracements.",
	},
	Bat: {
		bullish: "Bat complete. Buy at D (0.886 XA). Conservative entry with a high expected hit rate.",
		bearish: "Bat complete. Sell at D (0.886 XA). Conservative entry with a high expected hit rate.",
	},
	Butterfly: {
		bullish: "Butterfly complete. Buy at D (1.27-1.618 XA). Extension pattern, expect a large reversal.",
		bearish: "Butterfly complete. Sell at D (1.27-1.618 XA). Extension pattern, expect a large reversal.",
	},
	Crab: {
		bullish: "Crab complete. Buy at D (1.618 XA). Tightest pattern with a strong reversal signal.",
		bearish: "Crab complete. Sell at D (1.618 XA). Tightest pattern with a strong reversal signal.",
	},
	Shark: {
		bullish: "Shark complete. Buy at D. Requires fast entry and exit.",
		bearish: "Shark complete. Sell at D. Requires fast entry and exit.",
	},
	Cypher: {
		bullish: "Cypher complete. Buy at D (0.786 XC). High hit-rate pattern.",
		bearish: "Cypher complete. Sell at D (0.786 XC). High hit-rate pattern.",
	},
}

// StrategyNote returns trading guidance for a pattern type and direction.
func StrategyNote(pt PatternType, dir analysis.Direction) string {
	n, ok := notesByType[pt]
	if !ok {
		return "Pattern under analysis."
	}
	if dir.IsBullish() {
		return n.bullish
	}
	return n.bearish
}

// Description returns a one-line summary of a detected pattern.
func Description(pt PatternType, dir analysis.Direction) string {
	move := "bearish"
	if dir.IsBullish() {
		move = "bullish"
	}
	return fmt.Sprintf("%s detected. A %s reversal is possible.", pt.DisplayName(), move)
}

// Frequency describes how often a pattern tends to form.
type Frequency string

const (
	FrequencyCommon   Frequency = "common"
	FrequencyUncommon Frequency = "uncommon"
	FrequencyRare     Frequency = "rare"
	FrequencyUnknown  Frequency = "unknown"
)

// PatternStats holds reference performance figures for a pattern type.
type PatternStats struct {
	Type      PatternType `json:"type"`
	WinRate   float64     `json:"winRate"`
	AvgProfit float64     `json:"avgProfit"`
	AvgLoss   float64     `json:"avgLoss"`
	Frequency Frequency   `json:"frequency"`
}

// Expectancy returns the expected percentage return per trade.
func (s PatternStats) Expectancy() float64 {
	w := s.WinRate / 100
	return w*s.AvgProfit - (1-w)*s.AvgLoss
}

// Reference figures are illustrative and not derived from any backtest in
// this repository.
var statsByType = map[PatternType]PatternStats{
	Gartley:   {Type: Gartley, WinRate: 68, AvgProfit: 2.3, AvgLoss: 1.2, Frequency: FrequencyCommon},
	Bat:       {Type: Bat, WinRate: 72, AvgProfit: 2.1, AvgLoss: 1.0, Frequency: FrequencyCommon},
	Butterfly: {Type: Butterfly, WinRate: 65, AvgProfit: 3.5, AvgLoss: 1.5, Frequency: FrequencyRare},
	Crab:      {Type: Crab, WinRate: 78, AvgProfit: 3.8, AvgLoss: 1.3, Frequency: FrequencyRare},
	Shark:     {Type: Shark, WinRate: 63, AvgProfit: 2.0, AvgLoss: 1.1, Frequency: FrequencyUncommon},
	Cypher:    {Type: Cypher, WinRate: 70, AvgProfit: 2.5, AvgLoss: 1.2, Frequency: FrequencyUncommon},
}

// Statistics returns reference figures for a pattern type.
func Statistics(pt PatternType) PatternStats {
	if s, ok := statsByType[pt]; ok {
		return s
	}
	return PatternStats{Type: pt, WinRate: 50, AvgProfit: 1.5, AvgLoss: 1.5, Frequency: FrequencyUnknown}
}
