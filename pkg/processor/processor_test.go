package processor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/conwaychriscosmo/feedbackforge/pkg/transport"
)

// stubExecutor resolves references via a configurable function and tracks
// call and concurrency statistics.
type stubExecutor struct {
	mu    sync.Mutex
	calls []string

	inFlight int32
	peak     int32

	delay time.Duration
	fn    func(ref string) (*transport.ProcessResult, error)
}

func (s *stubExecutor) Execute(ctx context.Context, ref string) (*transport.ProcessResult, error) {
	cur := atomic.AddInt32(&s.inFlight, 1)
	for {
		old := atomic.LoadInt32(&s.peak)
		if cur <= old || atomic.CompareAndSwapInt32(&s.peak, old, cur) {
			break
		}
	}
	defer atomic.AddInt32(&s.inFlight, -1)

	s.mu.Lock()
	s.calls = append(s.calls, ref)
	s.mu.Unlock()

	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
		}
	}

	if s.fn != nil {
		return s.fn(ref)
	}
	return &transport.ProcessResult{Status: "processed"}, nil
}

func (s *stubExecutor) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func newProcessor(t *testing.T, cfg Config) *Processor {
	t.Helper()
	p, err := New(cfg)
	if err != nil {
		t.Fatalf("Failed to create processor: %v", err)
	}
	return p
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("Expected error for missing executor")
	}

	p := newProcessor(t, Config{Executor: &stubExecutor{}})
	if p.concurrency != DefaultConcurrency {
		t.Errorf("Expected default concurrency %d, got %d", DefaultConcurrency, p.concurrency)
	}
}

func TestProcessBatch_AllSucceed(t *testing.T) {
	exec := &stubExecutor{}
	p := newProcessor(t, Config{Executor: exec, Concurrency: 2})

	refs := []string{"a", "b", "c"}
	outcomes, err := p.ProcessBatch(context.Background(), refs)
	if err != nil {
		t.Fatalf("ProcessBatch failed: %v", err)
	}

	if len(outcomes) != 3 {
		t.Fatalf("Expected 3 outcomes, got %d", len(outcomes))
	}
	for _, o := range outcomes {
		if o.State != StateSucceeded {
			t.Errorf("Expected %s to succeed, got %s (%s)", o.Reference, o.State, o.FailureReason)
		}
		if o.Payload == nil {
			t.Errorf("Expected payload for %s", o.Reference)
		}
		if o.CompletedAt.IsZero() {
			t.Errorf("Expected completion timestamp for %s", o.Reference)
		}
	}
}

func TestProcessBatch_FailureIsolation(t *testing.T) {
	exec := &stubExecutor{fn: func(ref string) (*transport.ProcessResult, error) {
		if ref == "b" {
			return nil, &transport.TransportError{Class: transport.ErrorClassClient, StatusCode: 422, Message: "422 Unprocessable Entity"}
		}
		return &transport.ProcessResult{Status: "processed"}, nil
	}}
	p := newProcessor(t, Config{Executor: exec, Concurrency: 2})

	outcomes, err := p.ProcessBatch(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("ProcessBatch failed: %v", err)
	}

	byRef := make(map[string]Outcome, len(outcomes))
	for _, o := range outcomes {
		byRef[o.Reference] = o
	}

	if byRef["a"].State != StateSucceeded || byRef["c"].State != StateSucceeded {
		t.Error("Expected a and c to succeed despite b failing")
	}

	failed := byRef["b"]
	if failed.State != StateFailed {
		t.Fatalf("Expected b to fail, got %s", failed.State)
	}
	if failed.Payload != nil {
		t.Error("Expected no payload for a failed item")
	}
	if !strings.Contains(failed.FailureReason, "422") {
		t.Errorf("Expected failure reason to carry the cause, got %q", failed.FailureReason)
	}
}

func TestProcessBatch_EmptyBatch(t *testing.T) {
	exec := &stubExecutor{}
	p := newProcessor(t, Config{Executor: exec})

	outcomes, err := p.ProcessBatch(context.Background(), nil)

	if !errors.Is(err, ErrEmptyBatch) {
		t.Errorf("Expected ErrEmptyBatch, got %v", err)
	}
	if outcomes != nil {
		t.Errorf("Expected no outcomes, got %d", len(outcomes))
	}
	if exec.callCount() != 0 {
		t.Errorf("Expected no submissions for an empty batch, got %d", exec.callCount())
	}
}

func TestProcessBatch_OneOutcomePerReference(t *testing.T) {
	exec := &stubExecutor{fn: func(ref string) (*transport.ProcessResult, error) {
		// Mix of failures and successes.
		if strings.HasSuffix(ref, "3") || strings.HasSuffix(ref, "7") {
			return nil, errors.New("boom")
		}
		return &transport.ProcessResult{Status: "processed"}, nil
	}}
	p := newProcessor(t, Config{Executor: exec, Concurrency: 4})

	refs := make([]string, 20)
	for i := range refs {
		refs[i] = fmt.Sprintf("https://docs.example.com/%d.pdf", i)
	}

	outcomes, err := p.ProcessBatch(context.Background(), refs)
	if err != nil {
		t.Fatalf("ProcessBatch failed: %v", err)
	}

	if len(outcomes) != len(refs) {
		t.Fatalf("Expected %d outcomes, got %d", len(refs), len(outcomes))
	}

	seen := make(map[string]int, len(refs))
	for _, o := range outcomes {
		seen[o.Reference]++
	}
	for _, ref := range refs {
		if seen[ref] != 1 {
			t.Errorf("Expected exactly 1 outcome for %s, got %d", ref, seen[ref])
		}
	}
}

func TestProcessBatch_DuplicateReferences(t *testing.T) {
	exec := &stubExecutor{}
	p := newProcessor(t, Config{Executor: exec, Concurrency: 2})

	// The same reference twice is two work items.
	outcomes, err := p.ProcessBatch(context.Background(), []string{"a", "a"})
	if err != nil {
		t.Fatalf("ProcessBatch failed: %v", err)
	}

	if len(outcomes) != 2 {
		t.Errorf("Expected 2 outcomes for duplicated reference, got %d", len(outcomes))
	}
	if exec.callCount() != 2 {
		t.Errorf("Expected 2 submissions, got %d", exec.callCount())
	}
}

func TestProcessBatch_BoundedConcurrency(t *testing.T) {
	exec := &stubExecutor{delay: 20 * time.Millisecond}
	p := newProcessor(t, Config{Executor: exec, Concurrency: 3})

	refs := make([]string, 12)
	for i := range refs {
		refs[i] = fmt.Sprintf("doc-%d", i)
	}

	outcomes, err := p.ProcessBatch(context.Background(), refs)
	if err != nil {
		t.Fatalf("ProcessBatch failed: %v", err)
	}

	if len(outcomes) != 12 {
		t.Errorf("Expected 12 outcomes, got %d", len(outcomes))
	}
	if peak := atomic.LoadInt32(&exec.peak); peak > 3 {
		t.Errorf("Expected at most 3 concurrent submissions, observed %d", peak)
	}
	if exec.callCount() != 12 {
		t.Errorf("Expected every reference submitted, got %d", exec.callCount())
	}
}

func TestProcessBatch_ProgressStream(t *testing.T) {
	exec := &stubExecutor{}

	type tick struct{ completed, total int }
	var ticks []tick // appended on the collector goroutine only

	p := newProcessor(t, Config{
		Executor:    exec,
		Concurrency: 3,
		OnProgress: func(completed, total int) {
			ticks = append(ticks, tick{completed, total})
		},
	})

	refs := []string{"a", "b", "c", "d", "e"}
	if _, err := p.ProcessBatch(context.Background(), refs); err != nil {
		t.Fatalf("ProcessBatch failed: %v", err)
	}

	if len(ticks) != len(refs) {
		t.Fatalf("Expected %d progress calls, got %d", len(refs), len(ticks))
	}
	for i, tk := range ticks {
		if tk.completed != i+1 {
			t.Errorf("Progress call %d reported completed=%d, want %d", i, tk.completed, i+1)
		}
		if tk.total != len(refs) {
			t.Errorf("Progress call %d reported total=%d, want %d", i, tk.total, len(refs))
		}
	}
	last := ticks[len(ticks)-1]
	if last.completed != last.total {
		t.Errorf("Final progress call = (%d, %d), want equal", last.completed, last.total)
	}
}

func TestProcessBatch_Cancellation(t *testing.T) {
	exec := &stubExecutor{delay: 80 * time.Millisecond}
	p := newProcessor(t, Config{Executor: exec, Concurrency: 1})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	outcomes, err := p.ProcessBatch(ctx, []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("ProcessBatch failed: %v", err)
	}

	// The result set stays complete.
	if len(outcomes) != 3 {
		t.Fatalf("Expected 3 outcomes after cancellation, got %d", len(outcomes))
	}

	byRef := make(map[string]Outcome, len(outcomes))
	for _, o := range outcomes {
		byRef[o.Reference] = o
	}

	// "a" was in flight when the batch was cancelled and ran to completion.
	if byRef["a"].State != StateSucceeded {
		t.Errorf("Expected in-flight item to finish, got %s", byRef["a"].State)
	}

	// "b" and "c" were never dispatched.
	for _, ref := range []string{"b", "c"} {
		o := byRef[ref]
		if o.State != StateCancelled {
			t.Errorf("Expected %s to be cancelled, got %s", ref, o.State)
		}
		if !strings.Contains(o.FailureReason, "cancelled") {
			t.Errorf("Expected cancellation reason for %s, got %q", ref, o.FailureReason)
		}
		if o.CompletedAt.IsZero() {
			t.Errorf("Expected completion timestamp for cancelled %s", ref)
		}
	}

	if exec.callCount() != 1 {
		t.Errorf("Expected only the in-flight item to be submitted, got %d", exec.callCount())
	}
}

func TestProcessBatch_CompletionOrder(t *testing.T) {
	// "slow" is dispatched first but finishes last; the outcome slice is in
	// completion order, not input order.
	exec := &stubExecutor{fn: func(ref string) (*transport.ProcessResult, error) {
		if ref == "slow" {
			time.Sleep(60 * time.Millisecond)
		}
		return &transport.ProcessResult{Status: "processed"}, nil
	}}
	p := newProcessor(t, Config{Executor: exec, Concurrency: 2})

	outcomes, err := p.ProcessBatch(context.Background(), []string{"slow", "fast"})
	if err != nil {
		t.Fatalf("ProcessBatch failed: %v", err)
	}

	if len(outcomes) != 2 {
		t.Fatalf("Expected 2 outcomes, got %d", len(outcomes))
	}
	if outcomes[0].Reference != "fast" {
		t.Errorf("Expected fast to finish first, got %s", outcomes[0].Reference)
	}
	if !outcomes[0].CompletedAt.Before(outcomes[1].CompletedAt) {
		t.Error("Expected completion timestamps to be ordered")
	}
}

func TestSummarize(t *testing.T) {
	outcomes := []Outcome{
		{State: StateSucceeded},
		{State: StateSucceeded},
		{State: StateFailed},
		{State: StateCancelled},
	}

	s := Summarize(outcomes)
	if s.Succeeded != 2 || s.Failed != 1 || s.Cancelled != 1 {
		t.Errorf("Summarize = %+v, want {2 1 1}", s)
	}
}

func TestOutcomeSucceeded(t *testing.T) {
	if !(Outcome{State: StateSucceeded}).Succeeded() {
		t.Error("Expected succeeded outcome to report Succeeded")
	}
	if (Outcome{State: StateFailed}).Succeeded() {
		t.Error("Expected failed outcome to not report Succeeded")
	}
}
