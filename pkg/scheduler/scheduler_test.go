package scheduler

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestRegister(t *testing.T) {
	r := New()

	err := r.Register("daily-batch", "0 18 * * *", func(ctx context.Context) error { return nil })
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	labels := r.Labels()
	if len(labels) != 1 || labels[0] != "daily-batch" {
		t.Errorf("Expected labels [daily-batch], got %v", labels)
	}

	if _, ok := r.Next("daily-batch"); !ok {
		t.Error("Expected Next to find registered label")
	}
}

func TestRegisterDefaultSpec(t *testing.T) {
	r := New()

	err := r.Register("daily-batch", "", func(ctx context.Context) error { return nil })
	if err != nil {
		t.Fatalf("Expected empty spec to fall back to default, got %v", err)
	}

	if len(r.cron.Entries()) != 1 {
		t.Errorf("Expected 1 cron entry, got %d", len(r.cron.Entries()))
	}
}

func TestRegisterInvalidSpec(t *testing.T) {
	r := New()

	err := r.Register("daily-batch", "not a cron spec", func(ctx context.Context) error { return nil })
	if err == nil {
		t.Fatal("Expected error for invalid spec, got nil")
	}

	var schedErr *SchedulingError
	if !errors.As(err, &schedErr) {
		t.Fatalf("Expected SchedulingError, got %T", err)
	}
	if schedErr.Label != "daily-batch" {
		t.Errorf("Expected label daily-batch, got %s", schedErr.Label)
	}
	if schedErr.Spec != "not a cron spec" {
		t.Errorf("Expected spec preserved in error, got %s", schedErr.Spec)
	}

	if len(r.Labels()) != 0 {
		t.Errorf("Expected no registration after invalid spec, got %v", r.Labels())
	}
}

func TestRegisterValidation(t *testing.T) {
	r := New()

	if err := r.Register("", "@daily", func(ctx context.Context) error { return nil }); err == nil {
		t.Error("Expected error for empty label, got nil")
	}
	if err := r.Register("daily-batch", "@daily", nil); err == nil {
		t.Error("Expected error for nil job, got nil")
	}
}

func TestRegisterReplacesExisting(t *testing.T) {
	r := New()
	job := func(ctx context.Context) error { return nil }

	if err := r.Register("daily-batch", "0 18 * * *", job); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if err := r.Register("daily-batch", "0 6 * * *", job); err != nil {
		t.Fatalf("Expected no error on re-registration, got %v", err)
	}

	if got := len(r.cron.Entries()); got != 1 {
		t.Errorf("Expected 1 cron entry after replacement, got %d", got)
	}
	if got := len(r.Labels()); got != 1 {
		t.Errorf("Expected 1 label after replacement, got %d", got)
	}
}

func TestRegisterInvalidSpecKeepsExisting(t *testing.T) {
	r := New()
	job := func(ctx context.Context) error { return nil }

	if err := r.Register("daily-batch", "0 18 * * *", job); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if err := r.Register("daily-batch", "garbage", job); err == nil {
		t.Fatal("Expected error for invalid spec, got nil")
	}

	if got := len(r.cron.Entries()); got != 1 {
		t.Errorf("Expected original schedule to survive, got %d entries", got)
	}
}

func TestUnregister(t *testing.T) {
	r := New()

	if err := r.Register("daily-batch", "@daily", func(ctx context.Context) error { return nil }); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if !r.Unregister("daily-batch") {
		t.Error("Expected Unregister to report true for existing label")
	}
	if r.Unregister("daily-batch") {
		t.Error("Expected Unregister to report false for removed label")
	}
	if len(r.cron.Entries()) != 0 {
		t.Errorf("Expected no cron entries after unregister, got %d", len(r.cron.Entries()))
	}
}

func TestLabelsSorted(t *testing.T) {
	r := New()
	job := func(ctx context.Context) error { return nil }

	for _, label := range []string{"weekly", "daily", "monthly"} {
		if err := r.Register(label, "@daily", job); err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
	}

	labels := r.Labels()
	want := []string{"daily", "monthly", "weekly"}
	for i, label := range want {
		if labels[i] != label {
			t.Errorf("Expected labels %v, got %v", want, labels)
			break
		}
	}
}

func TestJobFires(t *testing.T) {
	r := New()
	fired := make(chan struct{}, 1)

	err := r.Register("fast", "@every 10ms", func(ctx context.Context) error {
		select {
		case fired <- struct{}{}:
		default:
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	r.Start(context.Background())
	defer r.Stop(context.Background())

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("Expected job to fire within 2s")
	}
}

func TestStopWaitsForRunningJob(t *testing.T) {
	r := New()
	started := make(chan struct{})
	var completed atomic.Bool

	err := r.Register("slow", "@every 10ms", func(ctx context.Context) error {
		close(started)
		time.Sleep(50 * time.Millisecond)
		completed.Store(true)
		return nil
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	r.Start(context.Background())
	<-started

	if err := r.Stop(context.Background()); err != nil {
		t.Fatalf("Expected clean stop, got %v", err)
	}
	if !completed.Load() {
		t.Error("Expected Stop to wait for the running job")
	}
}

func TestStopAborted(t *testing.T) {
	r := New()
	started := make(chan struct{})

	err := r.Register("stuck", "@every 10ms", func(ctx context.Context) error {
		close(started)
		time.Sleep(500 * time.Millisecond)
		return nil
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	r.Start(context.Background())
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := r.Stop(ctx); err == nil {
		t.Error("Expected Stop to abort when ctx expires before the job finishes")
	}
}

func TestStopWithoutStart(t *testing.T) {
	r := New()
	if err := r.Stop(context.Background()); err != nil {
		t.Errorf("Expected Stop on unstarted registrar to be a no-op, got %v", err)
	}
}

func TestStartIdempotent(t *testing.T) {
	r := New()
	r.Start(context.Background())
	r.Start(context.Background())
	if err := r.Stop(context.Background()); err != nil {
		t.Errorf("Expected clean stop, got %v", err)
	}
}

func TestCommandJob(t *testing.T) {
	job := CommandJob("exit 0")
	if err := job(context.Background()); err != nil {
		t.Errorf("Expected no error for successful command, got %v", err)
	}

	job = CommandJob("echo broken; exit 3")
	err := job(context.Background())
	if err == nil {
		t.Fatal("Expected error for failing command, got nil")
	}
	if !strings.Contains(err.Error(), "broken") {
		t.Errorf("Expected command output in error, got %v", err)
	}
}

func TestSchedulingErrorMessage(t *testing.T) {
	err := &SchedulingError{
		Label: "daily-batch",
		Spec:  "bad",
		Err:   errors.New("unparseable"),
	}

	msg := err.Error()
	if !strings.Contains(msg, "daily-batch") || !strings.Contains(msg, "bad") {
		t.Errorf("Expected label and spec in message, got %s", msg)
	}
	if !errors.Is(err, err.Err) {
		t.Error("Expected Unwrap to expose the cause")
	}
}
