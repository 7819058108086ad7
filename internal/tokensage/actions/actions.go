// Package actions holds the backend operations the engine can route a query
// to. Each operation validates its preconditions (a configured API client,
// plus a resolved token where the endpoint requires one) and executes a
// single backend call shaped by the built parameters.
package actions

import (
	"context"
	"errors"
	"fmt"

	"github.com/avelnar/tokensage/internal/tokensage/backend"
	"github.com/avelnar/tokensage/internal/tokensage/dispatch"
)

var errNoClient = errors.New("market-data client is not configured")

// Register binds every operation into the registry under its intent label.
func Register(r *dispatch.Registry) {
	for _, op := range []dispatch.Operation{
		PriceOp{},
		OHLCVOp{},
		TraderGradesOp{},
		InvestorGradesOp{},
		TradingSignalsOp{},
		MarketSentimentOp{},
		TopTokensOp{},
		MarketOverviewOp{},
	} {
		r.Bind(op.Name(), op)
	}
}

// client extracts the backend client from the opaque runtime handle.
func client(runtime any) (*backend.Client, error) {
	c, ok := runtime.(*backend.Client)
	if !ok || c == nil {
		return nil, fmt.Errorf("runtime handle is %T, want *backend.Client", runtime)
	}
	return c, nil
}

// validateClient is the shared precondition: a runtime client with
// credentials present.
func validateClient(runtime any) (bool, error) {
	c, err := client(runtime)
	if err != nil {
		return false, err
	}
	if !c.Configured() {
		return false, errNoClient
	}
	return true, nil
}

// PriceOp fetches current prices. With a resolved token the query is scoped
// to it; without one it returns the broad price listing rather than guessing
// at a token.
type PriceOp struct{}

func (PriceOp) Name() string { return "price" }

func (PriceOp) Validate(_ context.Context, runtime any, _ *dispatch.Message) (bool, error) {
	return validateClient(runtime)
}

func (PriceOp) Execute(ctx context.Context, runtime any, msg *dispatch.Message) (any, error) {
	c, err := client(runtime)
	if err != nil {
		return nil, err
	}
	p := msg.Content.Params
	if p.TokenID != 0 {
		return c.Price(ctx, []int64{p.TokenID}, p.Page, p.Limit)
	}
	if p.Symbol == "" {
		return c.Price(ctx, nil, p.Page, p.Limit)
	}
	// Symbol without a known ID: resolve it through the token listing first.
	tokens, err := c.Tokens(ctx, p.Symbol, 1, 1)
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return nil, &dispatch.OperationError{
			Kind: dispatch.KindNotFound,
			Op:   "price",
			Err:  fmt.Errorf("no listed token matches %q", p.Symbol),
		}
	}
	return c.Price(ctx, []int64{tokens[0].TokenID}, p.Page, p.Limit)
}

// OHLCVOp fetches candle history at the interval chosen during parameter
// building.
type OHLCVOp struct{}

func (OHLCVOp) Name() string { return "ohlcv" }

func (OHLCVOp) Validate(_ context.Context, runtime any, _ *dispatch.Message) (bool, error) {
	return validateClient(runtime)
}

func (OHLCVOp) Execute(ctx context.Context, runtime any, msg *dispatch.Message) (any, error) {
	c, err := client(runtime)
	if err != nil {
		return nil, err
	}
	p := msg.Content.Params
	return c.OHLCV(ctx, p.Interval, p.Symbol, p.Page, p.Limit)
}

// TraderGradesOp fetches short-term technical grades; without a resolved
// token it returns the broad listing.
type TraderGradesOp struct{}

func (TraderGradesOp) Name() string { return "trader-grades" }

func (TraderGradesOp) Validate(_ context.Context, runtime any, _ *dispatch.Message) (bool, error) {
	return validateClient(runtime)
}

func (TraderGradesOp) Execute(ctx context.Context, runtime any, msg *dispatch.Message) (any, error) {
	c, err := client(runtime)
	if err != nil {
		return nil, err
	}
	p := msg.Content.Params
	return c.TraderGrades(ctx, p.Symbol, p.Page, p.Limit)
}

// InvestorGradesOp fetches long-term fundamental grades.
type InvestorGradesOp struct{}

func (InvestorGradesOp) Name() string { return "investor-grades" }

func (InvestorGradesOp) Validate(_ context.Context, runtime any, _ *dispatch.Message) (bool, error) {
	return validateClient(runtime)
}

func (InvestorGradesOp) Execute(ctx context.Context, runtime any, msg *dispatch.Message) (any, error) {
	c, err := client(runtime)
	if err != nil {
		return nil, err
	}
	p := msg.Content.Params
	return c.InvestorGrades(ctx, p.Symbol, p.Page, p.Limit)
}

// TradingSignalsOp fetches model trading signals.
type TradingSignalsOp struct{}

func (TradingSignalsOp) Name() string { return "trading-signals" }

func (TradingSignalsOp) Validate(_ context.Context, runtime any, _ *dispatch.Message) (bool, error) {
	return validateClient(runtime)
}

func (TradingSignalsOp) Execute(ctx context.Context, runtime any, msg *dispatch.Message) (any, error) {
	c, err := client(runtime)
	if err != nil {
		return nil, err
	}
	p := msg.Content.Params
	return c.TradingSignals(ctx, p.Symbol, p.Page, p.Limit)
}

// MarketSentimentOp fetches market-wide sentiment readings.
type MarketSentimentOp struct{}

func (MarketSentimentOp) Name() string { return "market-sentiment" }

func (MarketSentimentOp) Validate(_ context.Context, runtime any, _ *dispatch.Message) (bool, error) {
	return validateClient(runtime)
}

func (MarketSentimentOp) Execute(ctx context.Context, runtime any, msg *dispatch.Message) (any, error) {
	c, err := client(runtime)
	if err != nil {
		return nil, err
	}
	p := msg.Content.Params
	return c.MarketSentiment(ctx, p.Page, p.Limit)
}

// TopTokensOp lists tokens by market cap rank.
type TopTokensOp struct{}

func (TopTokensOp) Name() string { return "top-tokens" }

func (TopTokensOp) Validate(_ context.Context, runtime any, _ *dispatch.Message) (bool, error) {
	return validateClient(runtime)
}

func (TopTokensOp) Execute(ctx context.Context, runtime any, msg *dispatch.Message) (any, error) {
	c, err := client(runtime)
	if err != nil {
		return nil, err
	}
	p := msg.Content.Params
	return c.Tokens(ctx, "", p.Page, p.Limit)
}

// MarketOverviewOp answers broad "how's the market" questions with recent
// sentiment readings. It backs the low-confidence fallback intent.
type MarketOverviewOp struct{}

func (MarketOverviewOp) Name() string { return "market" }

func (MarketOverviewOp) Validate(_ context.Context, runtime any, _ *dispatch.Message) (bool, error) {
	return validateClient(runtime)
}

func (MarketOverviewOp) Execute(ctx context.Context, runtime any, msg *dispatch.Message) (any, error) {
	c, err := client(runtime)
	if err != nil {
		return nil, err
	}
	p := msg.Content.Params
	return c.MarketSentiment(ctx, p.Page, p.Limit)
}
