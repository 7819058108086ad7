package dispatch_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/avelnar/tokensage/internal/tokensage/dispatch"
	"github.com/avelnar/tokensage/internal/tokensage/memory"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// stubOperation is a scriptable Operation: each Execute call pops the next
// error (nil means success) and records the runtime handle it saw.
type stubOperation struct {
	name        string
	validateOK  bool
	validateErr error
	errs        []error
	payload     any
	calls       int
	seenRuntime any
}

func (s *stubOperation) Name() string { return s.name }

func (s *stubOperation) Validate(_ context.Context, _ any, _ *dispatch.Message) (bool, error) {
	return s.validateOK, s.validateErr
}

func (s *stubOperation) Execute(_ context.Context, runtime any, _ *dispatch.Message) (any, error) {
	s.seenRuntime = runtime
	var err error
	if s.calls < len(s.errs) {
		err = s.errs[s.calls]
	}
	s.calls++
	if err != nil {
		return nil, err
	}
	return s.payload, nil
}

func newDispatcher(op *stubOperation) (*dispatch.Dispatcher, *memory.InMemoryStore) {
	reg := dispatch.NewRegistry()
	reg.Bind(op.name, op)
	store := memory.NewInMemoryStore()
	d := dispatch.NewDispatcher(reg, store, dispatch.Config{
		MaxAttempts: 2,
		BaseDelay:   time.Millisecond,
	})
	return d, store
}

func msg() *dispatch.Message {
	return &dispatch.Message{Content: dispatch.Content{Text: "price of btc"}}
}

// ---------------------------------------------------------------------------
// Routing and preconditions
// ---------------------------------------------------------------------------

func TestDispatch_OperationNotFound(t *testing.T) {
	d, store := newDispatcher(&stubOperation{name: "price", validateOK: true})

	res := d.Dispatch(context.Background(), "no-such-op", nil, msg(), "s1")
	if res.Success {
		t.Fatal("expected failure for unbound intent")
	}
	if dispatch.Classify(res.Err) != dispatch.KindNotFound {
		t.Fatalf("expected not_found kind, got %v", res.Err)
	}
	sd := store.Session("s1")
	if sd == nil || len(sd.Errors) != 1 {
		t.Fatalf("expected routing failure in session error log, got %+v", sd)
	}
}

func TestDispatch_ValidationRejectsBeforeExecution(t *testing.T) {
	op := &stubOperation{name: "price", validateOK: false}
	d, _ := newDispatcher(op)

	res := d.Dispatch(context.Background(), "price", nil, msg(), "s1")
	if res.Success {
		t.Fatal("expected failure")
	}
	if dispatch.Classify(res.Err) != dispatch.KindValidation {
		t.Fatalf("expected validation kind, got %v", res.Err)
	}
	if op.calls != 0 {
		t.Fatalf("execute must not run after precondition rejection, got %d calls", op.calls)
	}
}

// ---------------------------------------------------------------------------
// Retry policy
// ---------------------------------------------------------------------------

func TestDispatch_RetriesTransientThenSucceeds(t *testing.T) {
	op := &stubOperation{
		name:       "price",
		validateOK: true,
		errs:       []error{errors.New("connection reset")},
		payload:    map[string]any{"price": 97000.0},
	}
	d, store := newDispatcher(op)

	res := d.Dispatch(context.Background(), "price", nil, msg(), "s1")
	if !res.Success {
		t.Fatalf("expected success after retry, got %v", res.Err)
	}
	if res.Attempts != 2 || op.calls != 2 {
		t.Fatalf("expected 2 attempts, got result=%d op=%d", res.Attempts, op.calls)
	}

	sd := store.Session("s1")
	if sd.APICalls != 2 {
		t.Fatalf("expected both attempts counted as API calls, got %d", sd.APICalls)
	}
	if len(sd.Errors) != 1 {
		t.Fatalf("expected one error log entry for the failed attempt, got %d", len(sd.Errors))
	}
}

func TestDispatch_AuthErrorNeverRetried(t *testing.T) {
	op := &stubOperation{
		name:       "price",
		validateOK: true,
		errs:       []error{errors.New("API key invalid"), errors.New("API key invalid")},
	}
	d, store := newDispatcher(op)

	res := d.Dispatch(context.Background(), "price", nil, msg(), "s1")
	if res.Success {
		t.Fatal("expected failure")
	}
	if res.Attempts != 1 || op.calls != 1 {
		t.Fatalf("auth failure must abort after exactly 1 attempt, got %d", op.calls)
	}
	if dispatch.Classify(res.Err) != dispatch.KindAuth {
		t.Fatalf("expected auth kind, got %v", res.Err)
	}
	if sd := store.Session("s1"); sd.APICalls != 1 {
		t.Fatalf("expected 1 API call recorded, got %d", sd.APICalls)
	}
}

func TestDispatch_ValidationMessageNeverRetried(t *testing.T) {
	op := &stubOperation{
		name:       "price",
		validateOK: true,
		errs:       []error{errors.New("parameter validation error: bad symbol")},
	}
	d, _ := newDispatcher(op)

	res := d.Dispatch(context.Background(), "price", nil, msg(), "s1")
	if res.Attempts != 1 || op.calls != 1 {
		t.Fatalf("validation-classified failure must not retry, got %d calls", op.calls)
	}
}

func TestDispatch_ExhaustsAttemptsOnPersistentTransient(t *testing.T) {
	op := &stubOperation{
		name:       "price",
		validateOK: true,
		errs:       []error{errors.New("timeout"), errors.New("timeout"), errors.New("timeout")},
	}
	d, _ := newDispatcher(op)

	res := d.Dispatch(context.Background(), "price", nil, msg(), "s1")
	if res.Success {
		t.Fatal("expected exhaustion failure")
	}
	if res.Attempts != 2 || op.calls != 2 {
		t.Fatalf("expected exactly maxAttempts=2 attempts, got %d", op.calls)
	}
	if dispatch.Classify(res.Err) != dispatch.KindTransient {
		t.Fatalf("expected transient kind, got %v", res.Err)
	}
}

func TestDispatch_PassesRuntimeHandleThrough(t *testing.T) {
	op := &stubOperation{name: "price", validateOK: true, payload: "ok"}
	d, _ := newDispatcher(op)

	handle := &struct{ name string }{name: "host-runtime"}
	res := d.Dispatch(context.Background(), "price", handle, msg(), "s1")
	if !res.Success {
		t.Fatalf("unexpected failure: %v", res.Err)
	}
	if op.seenRuntime != handle {
		t.Fatal("runtime handle was not passed through untouched")
	}
}

// ---------------------------------------------------------------------------
// Error classification
// ---------------------------------------------------------------------------

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want dispatch.ErrorKind
	}{
		{&dispatch.OperationError{Kind: dispatch.KindAuth, Err: errors.New("x")}, dispatch.KindAuth},
		{dispatch.ErrOperationNotFound, dispatch.KindNotFound},
		{dispatch.ErrValidationFailed, dispatch.KindValidation},
		{errors.New("request validation failed"), dispatch.KindValidation},
		{errors.New("invalid API key supplied"), dispatch.KindAuth},
		{errors.New("connection refused"), dispatch.KindTransient},
	}
	for _, tc := range cases {
		if got := dispatch.Classify(tc.err); got != tc.want {
			t.Errorf("Classify(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestOperationError_Message(t *testing.T) {
	err := &dispatch.OperationError{Kind: dispatch.KindAuth, Op: "price", Err: errors.New("API key invalid")}
	if !strings.Contains(err.Error(), "price") || !strings.Contains(err.Error(), "auth") {
		t.Fatalf("unexpected message: %q", err.Error())
	}
	if !errors.Is(err, err.Err) {
		t.Fatal("expected Unwrap to expose the cause")
	}
}
