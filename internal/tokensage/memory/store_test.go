package memory_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/avelnar/tokensage/internal/tokensage/memory"
)

// fixedClock is a mutable deterministic clock for store tests.
type fixedClock struct{ t time.Time }

func (c *fixedClock) now() time.Time { return c.t }

func (c *fixedClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newStore() (*memory.InMemoryStore, *fixedClock) {
	clock := &fixedClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	return memory.NewInMemoryStoreAt(clock.now), clock
}

func TestContext_CreatedAndSnapshotted(t *testing.T) {
	store, _ := newStore()

	if got := store.Context("alice"); got != nil {
		t.Fatalf("expected nil context for fresh user, got %+v", got)
	}

	c := &memory.ConversationContext{}
	c.PushQuery("price of btc")
	store.PutContext("alice", c)

	got := store.Context("alice")
	if got == nil || got.LastQuery != "price of btc" {
		t.Fatalf("unexpected context: %+v", got)
	}

	// Mutating the snapshot must not affect stored state.
	got.PushQuery("local mutation")
	if again := store.Context("alice"); again.LastQuery != "price of btc" {
		t.Fatalf("stored context mutated through snapshot: %+v", again)
	}
}

func TestContext_ExpiresLazilyOnRead(t *testing.T) {
	store, clock := newStore()
	store.PutContext("alice", &memory.ConversationContext{LastQuery: "hello"})

	clock.advance(25 * time.Hour)
	if got := store.Context("alice"); got != nil {
		t.Fatalf("expected context expired after 25h, got %+v", got)
	}
}

func TestContext_SurvivesWithinTTL(t *testing.T) {
	store, clock := newStore()
	store.PutContext("alice", &memory.ConversationContext{LastQuery: "hello"})

	clock.advance(23 * time.Hour)
	if got := store.Context("alice"); got == nil {
		t.Fatal("expected context to survive within 24h TTL")
	}
}

func TestPushQuery_BoundedNewestFirst(t *testing.T) {
	c := &memory.ConversationContext{}
	for i := 1; i <= 7; i++ {
		c.PushQuery(fmt.Sprintf("q%d", i))
	}
	if len(c.RecentQueries) != memory.MaxRecentQueries {
		t.Fatalf("expected %d recent queries, got %d", memory.MaxRecentQueries, len(c.RecentQueries))
	}
	if c.RecentQueries[0] != "q7" || c.RecentQueries[4] != "q3" {
		t.Fatalf("unexpected order: %v", c.RecentQueries)
	}
}

func TestAppendStep_BoundedAtTen(t *testing.T) {
	c := &memory.ConversationContext{}
	for i := 1; i <= 14; i++ {
		c.AppendStep(memory.ConversationStep{Query: fmt.Sprintf("q%d", i)})
	}
	if len(c.ConversationFlow) != memory.MaxConversationFlow {
		t.Fatalf("expected flow bounded at %d, got %d", memory.MaxConversationFlow, len(c.ConversationFlow))
	}
	if c.ConversationFlow[0].Query != "q5" || c.LastStep().Query != "q14" {
		t.Fatalf("unexpected flow window: first=%q last=%q",
			c.ConversationFlow[0].Query, c.LastStep().Query)
	}
}

func TestPreferences_MergedNotReplaced(t *testing.T) {
	store, _ := newStore()

	if got := store.Preferences("bob"); got != nil {
		t.Fatalf("expected nil preferences for fresh user, got %+v", got)
	}

	store.MergePreferences("bob", memory.UserPreferences{
		FavoriteTokens: []string{"BTC"},
		RiskTolerance:  "low",
	})
	store.MergePreferences("bob", memory.UserPreferences{
		FavoriteTokens: []string{"ETH", "BTC"},
		AnalysisDepth:  "detailed",
	})

	got := store.Preferences("bob")
	if got == nil {
		t.Fatal("expected preferences after merge")
	}
	if len(got.FavoriteTokens) != 2 {
		t.Fatalf("expected deduplicated favorites, got %v", got.FavoriteTokens)
	}
	if got.RiskTolerance != "low" {
		t.Fatalf("merge dropped risk tolerance: %+v", got)
	}
	if got.AnalysisDepth != "detailed" {
		t.Fatalf("merge missed analysis depth: %+v", got)
	}
	if !got.IsFavorite("ETH") || got.IsFavorite("SOL") {
		t.Fatalf("unexpected favorites: %v", got.FavoriteTokens)
	}
}

func TestSession_CountersAndBoundedErrors(t *testing.T) {
	store, _ := newStore()

	store.RecordQuery("s1")
	store.RecordQuery("s1")
	store.RecordAPICall("s1")
	for i := 0; i < memory.MaxSessionErrors+5; i++ {
		store.RecordError("s1", fmt.Sprintf("boom %d", i))
	}

	sd := store.Session("s1")
	if sd == nil {
		t.Fatal("expected session data")
	}
	if sd.QueryCount != 2 || sd.APICalls != 1 {
		t.Fatalf("unexpected counters: %+v", sd)
	}
	if len(sd.Errors) != memory.MaxSessionErrors {
		t.Fatalf("expected error log bounded at %d, got %d", memory.MaxSessionErrors, len(sd.Errors))
	}
	if sd.Errors[len(sd.Errors)-1].Message != fmt.Sprintf("boom %d", memory.MaxSessionErrors+4) {
		t.Fatalf("expected newest error retained, got %q", sd.Errors[len(sd.Errors)-1].Message)
	}
}

func TestSweep_RemovesOnlyExpiredEntries(t *testing.T) {
	store, clock := newStore()

	store.PutContext("old", &memory.ConversationContext{LastQuery: "stale"})
	store.RecordQuery("old-session")

	clock.advance(2 * time.Hour)
	store.PutContext("fresh", &memory.ConversationContext{LastQuery: "fresh"})
	store.RecordQuery("fresh-session")

	// Context TTL is 24h, session idle TTL is 1h: at +2h only the old
	// session qualifies.
	contexts, sessions := store.Sweep(clock.now())
	if contexts != 0 || sessions != 1 {
		t.Fatalf("expected 0 contexts / 1 session evicted, got %d / %d", contexts, sessions)
	}
	if store.Session("old-session") != nil {
		t.Fatal("expected old session gone")
	}
	if store.Session("fresh-session") == nil {
		t.Fatal("expected fresh session kept")
	}

	clock.advance(23 * time.Hour)
	contexts, _ = store.Sweep(clock.now())
	if contexts != 1 {
		t.Fatalf("expected the stale context evicted at +25h, got %d", contexts)
	}
	if store.Context("fresh") == nil {
		t.Fatal("expected fresh context kept (updated 23h ago)")
	}
}

func TestSweeper_Lifecycle(t *testing.T) {
	store, _ := newStore()
	sweeper := memory.NewSweeper(store, 5*time.Millisecond)
	sweeper.Start()
	time.Sleep(20 * time.Millisecond)
	sweeper.Stop()
	// Stop must be idempotent and must not panic or hang.
	sweeper.Stop()
}
