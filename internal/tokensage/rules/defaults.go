package rules

// DefaultSet returns the built-in rule tables used when no rules file is
// configured. Ordering and confidence values are load-bearing: generic
// fallback rules sit last with deliberately low confidence so they never
// outrank a specific rule that also matches.
func DefaultSet() *Set {
	return &Set{
		Intents:  defaultIntents(),
		Entities: defaultEntities(),
	}
}

// MustCompileDefaults compiles the built-in tables. The tables are constants
// of this package, so a compile failure is a programming error.
func MustCompileDefaults() *Compiled {
	c, err := Compile(DefaultSet())
	if err != nil {
		panic("rules: built-in tables failed to compile: " + err.Error())
	}
	return c
}

func defaultIntents() []IntentRule {
	return []IntentRule{
		{
			Intent:     "price",
			Confidence: 0.9,
			Patterns: []string{
				`\bprice\b`,
				`how much (is|does|would)`,
				`\bworth\b`,
				`\bcost(s|ing)? of\b`,
				`trading at`,
				`current value`,
			},
			FollowUps: []string{
				"Want to see the trading signals for this token?",
				"Should I pull up its trader grade as well?",
				"Interested in the recent price history?",
			},
		},
		{
			Intent:     "trading-signals",
			Confidence: 0.85,
			Patterns: []string{
				`\bsignals?\b`,
				`buy or sell`,
				`should i (buy|sell|hold)`,
				`long or short`,
				`entry point`,
				`bullish or bearish`,
			},
			FollowUps: []string{
				"Want the trader grade behind this signal?",
				"Should I check the overall market sentiment too?",
			},
		},
		{
			Intent:     "trader-grades",
			Confidence: 0.85,
			Patterns: []string{
				`trader grades?`,
				`short[- ]term grades?`,
				`\bta grades?\b`,
				`technical (grade|rating|score)`,
			},
			FollowUps: []string{
				"Want the long-term investor grade for comparison?",
				"Should I fetch the current trading signal?",
			},
		},
		{
			Intent:     "investor-grades",
			Confidence: 0.85,
			Patterns: []string{
				`investor grades?`,
				`long[- ]term grades?`,
				`fundamental (grade|rating|score)`,
				`\bfundamentals\b`,
			},
			FollowUps: []string{
				"Want the short-term trader grade for comparison?",
				"Should I look at its price trend as well?",
			},
		},
		{
			Intent:     "market-sentiment",
			Confidence: 0.85,
			Patterns: []string{
				`\bsentiments?\b`,
				`market (mood|feeling)`,
				`fear (and|&) greed`,
				`how (is|does) the market feel`,
				`\bvibes?\b`,
			},
			FollowUps: []string{
				"Want to see which tokens are leading the market?",
				"Should I pull the trading signals for a specific token?",
			},
		},
		{
			Intent:     "ohlcv",
			Confidence: 0.8,
			Patterns: []string{
				`\bohlcv\b`,
				`\bcandles?(ticks?)?\b`,
				`chart data`,
				`price history`,
				`historical (price|data)`,
				`(open|close|high|low) prices?`,
			},
			FollowUps: []string{
				"Want hourly candles instead of daily?",
				"Should I overlay the trading signals on this range?",
			},
		},
		{
			Intent:     "top-tokens",
			Confidence: 0.8,
			Patterns: []string{
				`top (tokens|coins|cryptos|assets)`,
				`best (tokens|coins|performers)`,
				`market cap leaders`,
				`\btrending\b`,
				`biggest (gainers|movers)`,
			},
			FollowUps: []string{
				"Want trader grades for any of these?",
				"Should I narrow this down to a sector?",
			},
		},
		{
			// Generic market fallback. Deliberately low confidence so any
			// specific rule that also matches always wins.
			Intent:     "market",
			Confidence: 0.3,
			Patterns: []string{
				`\bmarket\b`,
				`\bcryptos?\b`,
				`\btokens?\b`,
				`\bcoins?\b`,
			},
			FollowUps: []string{
				"Want the overall market sentiment?",
				"Should I list the top tokens by market cap?",
			},
		},
	}
}

func defaultEntities() []EntityRule {
	return []EntityRule{
		{Pattern: `\b(btc|bitcoin)\b`, Symbol: "BTC", TokenID: 3375, Confidence: 0.95},
		{Pattern: `\b(eth|ethereum|ether)\b`, Symbol: "ETH", TokenID: 3306, Confidence: 0.95},
		{Pattern: `\b(sol|solana)\b`, Symbol: "SOL", TokenID: 3408, Confidence: 0.9},
		{Pattern: `\b(ada|cardano)\b`, Symbol: "ADA", TokenID: 3321, Confidence: 0.9},
		{Pattern: `\b(xrp|ripple)\b`, Symbol: "XRP", TokenID: 3396, Confidence: 0.9},
		{Pattern: `\b(doge|dogecoin)\b`, Symbol: "DOGE", TokenID: 3393, Confidence: 0.9},
		{Pattern: `\b(dot|polkadot)\b`, Symbol: "DOT", TokenID: 3394, Confidence: 0.9},
		{Pattern: `\b(avax|avalanche)\b`, Symbol: "AVAX", TokenID: 3380, Confidence: 0.9},
		{Pattern: `\b(link|chainlink)\b`, Symbol: "LINK", TokenID: 3385, Confidence: 0.9},
		{Pattern: `\b(matic|polygon)\b`, Symbol: "MATIC", TokenID: 3390, Confidence: 0.9},
	}
}
