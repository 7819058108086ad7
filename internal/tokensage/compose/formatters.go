package compose

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/avelnar/tokensage/internal/tokensage/backend"
)

// A formatter renders one operation's payload into a summary sentence. It
// returns false when the payload is not the shape it expects, in which case
// the generic count fallback is used instead.
type formatter func(payload any) (string, bool)

var formatters = map[string]formatter{
	"price":            formatPrices,
	"top-tokens":       formatTokens,
	"ohlcv":            formatCandles,
	"trader-grades":    formatGrades,
	"investor-grades":  formatGrades,
	"trading-signals":  formatSignals,
	"market-sentiment": formatSentiment,
	"market":           formatSentiment,
}

func formatPrices(payload any) (string, bool) {
	prices, ok := payload.([]backend.TokenPrice)
	if !ok || len(prices) == 0 {
		return "", false
	}
	lines := make([]string, 0, len(prices))
	for _, p := range prices {
		lines = append(lines, fmt.Sprintf("%s is trading at $%s (%+.2f%% over 24h).",
			p.Symbol, formatMoney(p.Price), p.PercentChange24))
	}
	return strings.Join(lines, " "), true
}

func formatTokens(payload any) (string, bool) {
	tokens, ok := payload.([]backend.TokenInfo)
	if !ok || len(tokens) == 0 {
		return "", false
	}
	symbols := make([]string, 0, len(tokens))
	for _, t := range tokens {
		symbols = append(symbols, t.Symbol)
	}
	return fmt.Sprintf("The top %d tokens by market cap right now: %s.",
		len(tokens), strings.Join(symbols, ", ")), true
}

func formatCandles(payload any) (string, bool) {
	candles, ok := payload.([]backend.Candle)
	if !ok || len(candles) == 0 {
		return "", false
	}
	latest := candles[0]
	return fmt.Sprintf("I pulled %d candles for %s. The most recent closed at $%s with a range of $%s to $%s.",
		len(candles), latest.Symbol, formatMoney(latest.Close),
		formatMoney(latest.Low), formatMoney(latest.High)), true
}

func formatGrades(payload any) (string, bool) {
	grades, ok := payload.([]backend.Grade)
	if !ok || len(grades) == 0 {
		return "", false
	}
	latest := grades[0]
	trend := "holding steady"
	if latest.Change > 0 {
		trend = "improving"
	} else if latest.Change < 0 {
		trend = "slipping"
	}
	return fmt.Sprintf("%s currently grades %.1f out of 100 and is %s.",
		latest.Symbol, latest.Grade, trend), true
}

func formatSignals(payload any) (string, bool) {
	signals, ok := payload.([]backend.Signal)
	if !ok || len(signals) == 0 {
		return "", false
	}
	latest := signals[0]
	var stance string
	switch {
	case latest.Signal > 0:
		stance = "bullish"
	case latest.Signal < 0:
		stance = "bearish"
	default:
		stance = "neutral"
	}
	return fmt.Sprintf("The latest signal on %s as of %s is %s.",
		latest.Symbol, latest.Date, stance), true
}

func formatSentiment(payload any) (string, bool) {
	points, ok := payload.([]backend.SentimentPoint)
	if !ok || len(points) == 0 {
		return "", false
	}
	latest := points[0]
	return fmt.Sprintf("Overall market sentiment reads %s (%.1f) as of %s.",
		strings.ToLower(latest.Label), latest.Grade, latest.Date), true
}

// formatMoney renders a price with two decimals above a dollar and more
// precision for sub-dollar tokens.
func formatMoney(v float64) string {
	if v >= 1 {
		return fmt.Sprintf("%.2f", v)
	}
	return fmt.Sprintf("%.6f", v)
}

// countItems reports the element count of slice payloads, or 0/1 for
// anything else, for the generic fallback summary.
func countItems(payload any) int {
	if payload == nil {
		return 0
	}
	v := reflect.ValueOf(payload)
	if v.Kind() == reflect.Slice || v.Kind() == reflect.Map {
		return v.Len()
	}
	return 1
}
