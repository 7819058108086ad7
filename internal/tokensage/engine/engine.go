// Package engine is the query-processing front door. It wires the analysis,
// resolution, parameter-building, dispatch, and composition stages into a
// single ProcessQuery call, serialised per user so concurrent queries from
// one conversation cannot interleave their context updates.
//
// ProcessQuery never returns an error: every internal failure is converted
// into a structured Response with a conversational explanation.
package engine

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/avelnar/tokensage/internal/tokensage/compose"
	"github.com/avelnar/tokensage/internal/tokensage/dispatch"
	"github.com/avelnar/tokensage/internal/tokensage/intent"
	"github.com/avelnar/tokensage/internal/tokensage/memory"
	"github.com/avelnar/tokensage/internal/tokensage/params"
	"github.com/avelnar/tokensage/internal/tokensage/resolver"
	"github.com/avelnar/tokensage/internal/tokensage/rules"
)

// charsPerToken approximates response length in model tokens for the
// MaxTokens option.
const charsPerToken = 4

// Options tune a single ProcessQuery call.
type Options struct {
	// ForceIntent bypasses classification with the given intent at full
	// confidence. Empty means classify normally.
	ForceIntent string `json:"forceIntent,omitempty"`
	// IncludeHistory attaches the user's recent queries to the response.
	IncludeHistory bool `json:"includeHistory,omitempty"`
	// MaxTokens truncates the natural-language reply to roughly this many
	// model tokens. Zero means no limit.
	MaxTokens int `json:"maxTokens,omitempty"`
}

// Request is one conversational query.
type Request struct {
	Text      string  `json:"text"`
	UserID    string  `json:"userId"`
	SessionID string  `json:"sessionId,omitempty"`
	Options   Options `json:"options"`

	// Runtime is the opaque capability handle passed through to the bound
	// operation, typically the backend client.
	Runtime any `json:"-"`
}

// ConversationInfo summarises what the engine understood about the query.
type ConversationInfo struct {
	Intent             string   `json:"intent"`
	Confidence         float64  `json:"confidence"`
	DetectedEntities   []string `json:"detectedEntities,omitempty"`
	SuggestedFollowUps []string `json:"suggestedFollowUps,omitempty"`
	RecentQueries      []string `json:"recentQueries,omitempty"`
}

// Metadata carries per-call diagnostics.
type Metadata struct {
	OperationExecuted string `json:"operationExecuted,omitempty"`
	ProcessingTimeMs  int64  `json:"processingTimeMs"`
	DataSource        string `json:"dataSource,omitempty"`
	AnalysisDepth     string `json:"analysisDepth,omitempty"`
	Attempts          int    `json:"attempts,omitempty"`
}

// Response is the engine's uniform reply envelope.
type Response struct {
	Success                 bool              `json:"success"`
	Data                    any               `json:"data,omitempty"`
	NaturalLanguageResponse string            `json:"naturalLanguageResponse"`
	ConversationContext     *ConversationInfo `json:"conversationContext,omitempty"`
	Metadata                Metadata          `json:"metadata"`
}

// Engine processes conversational market queries end to end.
type Engine struct {
	analyzer   *intent.Analyzer
	store      memory.Store
	dispatcher *dispatch.Dispatcher
	composer   *compose.Composer
	dataSource string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New assembles an engine over compiled rules, a context store, and a
// populated operation registry.
func New(table *rules.Compiled, store memory.Store, registry *dispatch.Registry, cfg dispatch.Config) *Engine {
	return &Engine{
		analyzer: &intent.Analyzer{
			Classifier: intent.NewClassifier(table),
			Extractor:  intent.NewExtractor(table),
		},
		store:      store,
		dispatcher: dispatch.NewDispatcher(registry, store, cfg),
		composer:   compose.NewComposer(store),
		dataSource: "market-data-api",
		locks:      make(map[string]*sync.Mutex),
	}
}

// userLock returns the mutex serialising one user's queries, creating it on
// first use. Locks are never removed; the per-user footprint is one mutex.
func (e *Engine) userLock(userID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		e.locks[userID] = l
	}
	return l
}

// ProcessQuery runs the full pipeline for one query. Queries from the same
// user are processed strictly one at a time.
func (e *Engine) ProcessQuery(ctx context.Context, req Request) Response {
	start := time.Now()

	lock := e.userLock(req.UserID)
	lock.Lock()
	defer lock.Unlock()

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = req.UserID
	}
	e.store.RecordQuery(sessionID)

	analysis := e.analyzer.Analyze(req.Text)
	if req.Options.ForceIntent != "" {
		analysis.Intent = req.Options.ForceIntent
		analysis.Confidence = 1.0
	}

	convCtx := e.store.Context(req.UserID)
	prefs := e.store.Preferences(req.UserID)
	resolved := resolver.Resolve(analysis, convCtx, prefs)

	slog.Debug("engine: query analysed",
		"user", req.UserID, "intent", resolved.Intent,
		"confidence", resolved.Confidence, "entities", len(resolved.Entities))

	if resolved.Intent == intent.IntentUnknown {
		return e.classificationMiss(req, resolved, start)
	}

	p := params.Build(resolved, prefs)
	msg := &dispatch.Message{Content: dispatch.Content{Text: req.Text, Params: p}}
	result := e.dispatcher.Dispatch(ctx, resolved.Intent, req.Runtime, msg, sessionID)

	reply := e.composer.Compose(compose.Input{
		UserID:    req.UserID,
		Analysis:  resolved,
		Operation: resolved.Intent,
		Result:    result,
	})
	reply = truncateTokens(reply, req.Options.MaxTokens)

	resp := Response{
		Success:                 result.Success,
		Data:                    result.Payload,
		NaturalLanguageResponse: reply,
		ConversationContext:     e.conversationInfo(req, resolved),
		Metadata: Metadata{
			OperationExecuted: resolved.Intent,
			ProcessingTimeMs:  time.Since(start).Milliseconds(),
			DataSource:        e.dataSource,
			AnalysisDepth:     p.AnalysisDepth,
			Attempts:          result.Attempts,
		},
	}
	return resp
}

// classificationMiss answers a query no rule matched with a clarifying
// question. The query is still recorded into the conversation context so a
// follow-up can reference it.
func (e *Engine) classificationMiss(req Request, analysis intent.QueryAnalysis, start time.Time) Response {
	ctx := e.store.Context(req.UserID)
	if ctx == nil {
		ctx = &memory.ConversationContext{}
	}
	ctx.PushQuery(req.Text)
	ctx.LastQuery = req.Text
	e.store.PutContext(req.UserID, ctx)

	reply := "I'm not sure what you're asking about. " +
		"You can ask me about token prices, price history, trader or investor grades, " +
		"trading signals, market sentiment, or the top tokens by market cap. " +
		"What would you like to know?"
	return Response{
		NaturalLanguageResponse: truncateTokens(reply, req.Options.MaxTokens),
		ConversationContext:     e.conversationInfo(req, analysis),
		Metadata:                Metadata{ProcessingTimeMs: time.Since(start).Milliseconds()},
	}
}

func (e *Engine) conversationInfo(req Request, analysis intent.QueryAnalysis) *ConversationInfo {
	info := &ConversationInfo{
		Intent:             analysis.Intent,
		Confidence:         analysis.Confidence,
		SuggestedFollowUps: analysis.FollowUps,
	}
	if len(info.SuggestedFollowUps) > compose.MaxFollowUps {
		info.SuggestedFollowUps = info.SuggestedFollowUps[:compose.MaxFollowUps]
	}
	for _, ent := range analysis.Entities {
		info.DetectedEntities = append(info.DetectedEntities, ent.Symbol)
	}
	if req.Options.IncludeHistory {
		if ctx := e.store.Context(req.UserID); ctx != nil {
			info.RecentQueries = ctx.RecentQueries
		}
	}
	return info
}

// truncateTokens cuts s to roughly maxTokens model tokens, breaking at a
// word boundary and marking the cut with an ellipsis.
func truncateTokens(s string, maxTokens int) string {
	if maxTokens <= 0 {
		return s
	}
	limit := maxTokens * charsPerToken
	if len(s) <= limit {
		return s
	}
	cut := s[:limit]
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		cut = cut[:i]
	}
	return cut + "..."
}
