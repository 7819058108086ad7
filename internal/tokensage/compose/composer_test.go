package compose

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/avelnar/tokensage/internal/tokensage/backend"
	"github.com/avelnar/tokensage/internal/tokensage/dispatch"
	"github.com/avelnar/tokensage/internal/tokensage/intent"
	"github.com/avelnar/tokensage/internal/tokensage/memory"
)

func newTestComposer() (*Composer, memory.Store) {
	now := time.Date(2026, time.March, 5, 12, 0, 0, 0, time.UTC)
	store := memory.NewInMemoryStoreAt(func() time.Time { return now })
	c := NewComposerAt(store, func(n int) int { return 0 }, func() time.Time { return now })
	return c, store
}

func priceAnalysis(query string) intent.QueryAnalysis {
	return intent.QueryAnalysis{
		Query:      query,
		Intent:     "price",
		Confidence: 0.9,
		Entities:   []intent.Entity{{Symbol: "BTC", TokenID: 3375, Confidence: 0.95}},
		FollowUps:  []string{"Want the 7-day trend?", "Compare with ETH?", "Check trading signals?"},
	}
}

// ---------------------------------------------------------------------------
// Reply assembly
// ---------------------------------------------------------------------------

func TestComposeSuccessAssemblyOrder(t *testing.T) {
	c, _ := newTestComposer()

	reply := c.Compose(Input{
		UserID:    "u1",
		Analysis:  priceAnalysis("price of bitcoin"),
		Operation: "price",
		Result: dispatch.Result{Success: true, Payload: []backend.TokenPrice{
			{Symbol: "BTC", Price: 64250.10, PercentChange24: 1.8},
		}},
	})

	leadIdx := strings.Index(reply, "Here's the latest pricing:")
	dataIdx := strings.Index(reply, "BTC is trading at $64250.10")
	followIdx := strings.Index(reply, "You could also ask:")
	if leadIdx != 0 {
		t.Errorf("reply does not open with the price lead-in: %q", reply)
	}
	if dataIdx < 0 || followIdx < 0 || !(leadIdx < dataIdx && dataIdx < followIdx) {
		t.Errorf("reply parts out of order: %q", reply)
	}
}

func TestComposeFollowUpsCapped(t *testing.T) {
	c, _ := newTestComposer()

	reply := c.Compose(Input{
		UserID:    "u1",
		Analysis:  priceAnalysis("price of bitcoin"),
		Operation: "price",
		Result:    dispatch.Result{Success: true, Payload: []backend.TokenPrice{{Symbol: "BTC", Price: 1}}},
	})

	if strings.Contains(reply, "Check trading signals?") {
		t.Errorf("reply includes a third follow-up beyond the cap: %q", reply)
	}
	if !strings.Contains(reply, "Want the 7-day trend?") || !strings.Contains(reply, "Compare with ETH?") {
		t.Errorf("reply missing the first two follow-ups: %q", reply)
	}
}

func TestComposeTransitionReferencesPriorExchange(t *testing.T) {
	c, _ := newTestComposer()
	in := Input{
		UserID:    "u1",
		Analysis:  priceAnalysis("price of bitcoin"),
		Operation: "price",
		Result:    dispatch.Result{Success: true, Payload: []backend.TokenPrice{{Symbol: "BTC", Price: 1}}},
	}

	first := c.Compose(in)
	if strings.Contains(first, "Following up") {
		t.Errorf("first reply references a prior exchange: %q", first)
	}

	second := c.Compose(in)
	if !strings.Contains(second, "Following up on your last question,") {
		t.Errorf("second reply lacks transition: %q", second)
	}
}

func TestComposeGenericFallbackCountsItems(t *testing.T) {
	c, _ := newTestComposer()

	reply := c.Compose(Input{
		UserID:    "u1",
		Analysis:  intent.QueryAnalysis{Query: "anything", Intent: "market", Confidence: 0.3},
		Operation: "market",
		Result:    dispatch.Result{Success: true, Payload: []string{"a", "b", "c"}},
	})

	if !strings.Contains(reply, "3 data points retrieved.") {
		t.Errorf("generic summary missing: %q", reply)
	}
}

func TestComposePreferenceInsight(t *testing.T) {
	c, store := newTestComposer()
	store.MergePreferences("u1", memory.UserPreferences{RiskTolerance: "low"})

	reply := c.Compose(Input{
		UserID:    "u1",
		Analysis:  priceAnalysis("price of bitcoin"),
		Operation: "price",
		Result:    dispatch.Result{Success: true, Payload: []backend.TokenPrice{{Symbol: "BTC", Price: 1}}},
	})

	if !strings.Contains(reply, "low risk tolerance") {
		t.Errorf("insight for low risk tolerance missing: %q", reply)
	}
}

// ---------------------------------------------------------------------------
// Failure path
// ---------------------------------------------------------------------------

func TestComposeFailureRemediation(t *testing.T) {
	c, _ := newTestComposer()

	cases := []struct {
		err  error
		want string
	}{
		{&dispatch.OperationError{Kind: dispatch.KindAuth, Err: errors.New("denied")}, "API key"},
		{&dispatch.OperationError{Kind: dispatch.KindValidation, Err: errors.New("no token")}, "rephrasing"},
		{dispatch.ErrOperationNotFound, "not sure what you're after"},
		{errors.New("connection reset"), "try again"},
	}
	for _, tc := range cases {
		reply := c.Compose(Input{
			UserID:   "u1",
			Analysis: priceAnalysis("price of bitcoin"),
			Result:   dispatch.Result{Success: false, Err: tc.err},
		})
		if !strings.Contains(reply, "Sorry, I wasn't able to complete that request.") {
			t.Errorf("failure reply for %v lacks apology: %q", tc.err, reply)
		}
		if !strings.Contains(reply, tc.want) {
			t.Errorf("failure reply for %v lacks %q: %q", tc.err, tc.want, reply)
		}
	}
}

// ---------------------------------------------------------------------------
// Context recording
// ---------------------------------------------------------------------------

func TestComposeRecordsExchange(t *testing.T) {
	c, store := newTestComposer()

	c.Compose(Input{
		UserID:    "u1",
		Analysis:  priceAnalysis("price of bitcoin"),
		Operation: "price",
		Result:    dispatch.Result{Success: true, Payload: []backend.TokenPrice{{Symbol: "BTC", Price: 1}}},
	})

	ctx := store.Context("u1")
	if ctx == nil {
		t.Fatal("no context recorded")
	}
	if ctx.LastOperation != "price" || ctx.LastQuery != "price of bitcoin" {
		t.Errorf("last operation/query = %q/%q", ctx.LastOperation, ctx.LastQuery)
	}
	if ctx.CurrentFocus != "price" {
		t.Errorf("focus = %q, want price", ctx.CurrentFocus)
	}
	if len(ctx.LastTokensDiscussed) != 1 || ctx.LastTokensDiscussed[0].Symbol != "BTC" {
		t.Errorf("tokens discussed = %+v", ctx.LastTokensDiscussed)
	}
	if len(ctx.ConversationFlow) != 1 || !ctx.ConversationFlow[0].Success {
		t.Errorf("conversation flow = %+v", ctx.ConversationFlow)
	}
	if len(ctx.RecentQueries) != 1 || ctx.RecentQueries[0] != "price of bitcoin" {
		t.Errorf("recent queries = %v", ctx.RecentQueries)
	}
}

func TestComposeUnknownIntentKeepsFocusAndTokens(t *testing.T) {
	c, store := newTestComposer()

	c.Compose(Input{
		UserID:    "u1",
		Analysis:  priceAnalysis("price of bitcoin"),
		Operation: "price",
		Result:    dispatch.Result{Success: true, Payload: []backend.TokenPrice{{Symbol: "BTC", Price: 1}}},
	})
	c.Compose(Input{
		UserID:   "u1",
		Analysis: intent.QueryAnalysis{Query: "hmm", Intent: intent.IntentUnknown},
		Result:   dispatch.Result{Success: false, Err: dispatch.ErrOperationNotFound},
	})

	ctx := store.Context("u1")
	if ctx.CurrentFocus != "price" {
		t.Errorf("focus = %q, want price preserved across unknown intent", ctx.CurrentFocus)
	}
	if len(ctx.LastTokensDiscussed) != 1 || ctx.LastTokensDiscussed[0].Symbol != "BTC" {
		t.Errorf("tokens discussed = %+v, want BTC preserved", ctx.LastTokensDiscussed)
	}
}

func TestComposeFailureRecordedInFlow(t *testing.T) {
	c, store := newTestComposer()

	c.Compose(Input{
		UserID:    "u1",
		Analysis:  priceAnalysis("price of bitcoin"),
		Operation: "price",
		Result:    dispatch.Result{Success: false, Err: errors.New("boom")},
	})

	ctx := store.Context("u1")
	step := ctx.LastStep()
	if step == nil || step.Success {
		t.Fatalf("flow step = %+v, want recorded failure", step)
	}
	if step.Result != "boom" {
		t.Errorf("step result = %q, want boom", step.Result)
	}
}

// ---------------------------------------------------------------------------
// Formatters
// ---------------------------------------------------------------------------

func TestFormatters(t *testing.T) {
	cases := []struct {
		op      string
		payload any
		want    string
	}{
		{"price", []backend.TokenPrice{{Symbol: "ETH", Price: 3120.5, PercentChange24: -0.4}}, "ETH is trading at $3120.50 (-0.40% over 24h)."},
		{"top-tokens", []backend.TokenInfo{{Symbol: "BTC"}, {Symbol: "ETH"}}, "The top 2 tokens by market cap right now: BTC, ETH."},
		{"trading-signals", []backend.Signal{{Symbol: "SOL", Date: "2026-03-05", Signal: 1}}, "The latest signal on SOL as of 2026-03-05 is bullish."},
		{"trader-grades", []backend.Grade{{Symbol: "BTC", Grade: 81.2, Change: 2.1}}, "BTC currently grades 81.2 out of 100 and is improving."},
		{"market-sentiment", []backend.SentimentPoint{{Date: "2026-03-05", Grade: 62.0, Label: "Positive"}}, "Overall market sentiment reads positive (62.0) as of 2026-03-05."},
	}
	for _, tc := range cases {
		got := summarize(tc.op, tc.payload)
		if got != tc.want {
			t.Errorf("summarize(%s) = %q, want %q", tc.op, got, tc.want)
		}
	}
}

func TestFormatterWrongShapeFallsBack(t *testing.T) {
	got := summarize("price", []backend.Grade{{Symbol: "BTC"}})
	if got != "1 data points retrieved." {
		t.Errorf("summarize = %q, want generic fallback", got)
	}
}

func TestFormatMoneySubDollar(t *testing.T) {
	if got := formatMoney(0.000034); got != "0.000034" {
		t.Errorf("formatMoney = %q", got)
	}
}
