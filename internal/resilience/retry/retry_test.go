package retry

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"testing"
	"time"

	"github.com/sony/gobreaker"
)

func fastConfig(attempts int) Config {
	return Config{
		MaxAttempts:    attempts,
		InitialDelay:   5 * time.Millisecond,
		MaxDelay:       20 * time.Millisecond,
		Multiplier:     2.0,
		JitterFraction: 0.1,
	}
}

type flakyErr struct{ retry bool }

func (e flakyErr) Error() string   { return "flaky" }
func (e flakyErr) Retryable() bool { return e.retry }

func TestWithBackoff(t *testing.T) {
	tests := []struct {
		name         string
		failures     int
		err          error
		wantAttempts int
		wantErr      bool
	}{
		{name: "first try", failures: 0, wantAttempts: 1},
		{name: "succeeds on third", failures: 2, err: &HTTPError{StatusCode: 503}, wantAttempts: 3},
		{name: "exhausted", failures: 10, err: &HTTPError{StatusCode: 500}, wantAttempts: 3, wantErr: true},
		{name: "client error not retried", failures: 10, err: &HTTPError{StatusCode: 401}, wantAttempts: 1, wantErr: true},
		{name: "self-declared transient", failures: 1, err: flakyErr{retry: true}, wantAttempts: 2},
		{name: "self-declared permanent", failures: 10, err: flakyErr{retry: false}, wantAttempts: 1, wantErr: true},
		{name: "breaker open not retried", failures: 10, err: gobreaker.ErrOpenState, wantAttempts: 1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attempts := 0
			err := WithBackoff(context.Background(), fastConfig(3), func() error {
				attempts++
				if attempts <= tt.failures {
					return tt.err
				}
				return nil
			})

			if attempts != tt.wantAttempts {
				t.Errorf("attempts=%d, want %d", attempts, tt.wantAttempts)
			}
			if (err != nil) != tt.wantErr {
				t.Errorf("err=%v, wantErr=%v", err, tt.wantErr)
			}
		})
	}
}

func TestWithBackoff_ContextCancelledDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := fastConfig(5)
	cfg.InitialDelay = time.Second

	attempts := 0
	err := WithBackoff(ctx, cfg, func() error {
		attempts++
		cancel()
		return &HTTPError{StatusCode: 502}
	})

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v, want context.Canceled", err)
	}
	if attempts != 1 {
		t.Fatalf("attempts=%d", attempts)
	}
}

func TestDo(t *testing.T) {
	calls := 0
	got, err := Do(context.Background(), fastConfig(3), func() (string, error) {
		calls++
		if calls == 1 {
			return "", syscall.ECONNRESET
		}
		return "ok", nil
	})
	if err != nil || got != "ok" || calls != 2 {
		t.Fatalf("got=%q err=%v calls=%d", got, err, calls)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{context.DeadlineExceeded, false},
		{fmt.Errorf("wrap: %w", context.Canceled), false},
		{syscall.ECONNREFUSED, true},
		{&HTTPError{StatusCode: 429}, true},
		{&HTTPError{StatusCode: 408}, true},
		{&HTTPError{StatusCode: 404}, false},
		{errors.New("plain"), false},
	}
	for _, tt := range tests {
		if got := IsRetryable(tt.err); got != tt.want {
			t.Errorf("IsRetryable(%v)=%v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestAddJitter(t *testing.T) {
	base := 100 * time.Millisecond
	if got := addJitter(base, 0); got != base {
		t.Errorf("zero jitter changed duration: %v", got)
	}
	for i := 0; i < 20; i++ {
		got := addJitter(base, 2.0)
		if got < base || got > 2*base {
			t.Fatalf("jitter out of range: %v", got)
		}
	}
}
