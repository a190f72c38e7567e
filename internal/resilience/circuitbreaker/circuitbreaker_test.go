package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
)

func testConfig() Config {
	return Config{
		Name:             "test-circuit",
		MaxRequests:      1,
		Interval:         10 * time.Second,
		Timeout:          100 * time.Millisecond,
		FailureThreshold: 0.6,
		MinRequests:      3,
	}
}

func TestCircuitBreaker_TripsAfterThreshold(t *testing.T) {
	cb := New(testConfig())
	upstreamErr := errors.New("upstream 503")

	for i := 0; i < 3; i++ {
		if _, err := cb.Execute(func() (interface{}, error) { return nil, upstreamErr }); !errors.Is(err, upstreamErr) {
			t.Fatalf("call %d: err=%v", i, err)
		}
	}

	if !cb.IsOpen() {
		t.Fatalf("expected open, got %v", cb.State())
	}

	called := false
	_, err := cb.Execute(func() (interface{}, error) {
		called = true
		return nil, nil
	})
	if called {
		t.Error("function must not run while open")
	}
	if !errors.Is(err, ErrOpenState) {
		t.Errorf("err=%v, want ErrOpenState", err)
	}
}

func TestCircuitBreaker_MinRequestsGuard(t *testing.T) {
	cb := New(testConfig())

	for i := 0; i < 2; i++ {
		_, _ = cb.Execute(func() (interface{}, error) { return nil, errors.New("boom") })
	}

	if cb.State() != gobreaker.StateClosed {
		t.Fatalf("two failures are below MinRequests, got %v", cb.State())
	}
}

func TestCircuitBreaker_RecoversThroughHalfOpen(t *testing.T) {
	cb := New(testConfig())
	for i := 0; i < 3; i++ {
		_, _ = cb.Execute(func() (interface{}, error) { return nil, errors.New("boom") })
	}
	if !cb.IsOpen() {
		t.Fatal("expected open")
	}

	time.Sleep(150 * time.Millisecond)

	if _, err := cb.Execute(func() (interface{}, error) { return "ok", nil }); err != nil {
		t.Fatalf("half-open probe failed: %v", err)
	}
	if cb.State() != gobreaker.StateClosed {
		t.Fatalf("expected closed after successful probe, got %v", cb.State())
	}
}

func TestDo(t *testing.T) {
	cb := New(testConfig())

	got, err := Do(cb, func() (string, error) { return "summary", nil })
	if err != nil || got != "summary" {
		t.Fatalf("got=%q err=%v", got, err)
	}

	n, err := Do(cb, func() (int, error) { return 7, errors.New("nope") })
	if err == nil || n != 0 {
		t.Fatalf("expected zero value and error, got %d %v", n, err)
	}

	var nilErr error
	e, err := Do(cb, func() (error, error) { return nilErr, nil })
	if err != nil || e != nil {
		t.Fatalf("nil interface result should not panic: %v %v", e, err)
	}
}

func TestPresets(t *testing.T) {
	tests := []struct {
		cfg  Config
		name string
	}{
		{SearchAPIConfig(), "search-api"},
		{LLMConfig("claude-api"), "claude-api"},
		{MailConfig(), "mail-api"},
		{ContentFetchConfig(), "content-fetch"},
		{DefaultConfig("x"), "x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.cfg.Name != tt.name {
				t.Errorf("Name=%q", tt.cfg.Name)
			}
			if tt.cfg.FailureThreshold <= 0 || tt.cfg.FailureThreshold > 1 {
				t.Errorf("FailureThreshold=%v out of range", tt.cfg.FailureThreshold)
			}
			if tt.cfg.MinRequests == 0 || tt.cfg.MaxRequests == 0 || tt.cfg.Timeout <= 0 {
				t.Errorf("incomplete preset %+v", tt.cfg)
			}
			if New(tt.cfg).Name() != tt.name {
				t.Error("Name() mismatch")
			}
		})
	}
}
