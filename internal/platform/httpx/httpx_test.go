package httpx

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

type statusErr int

func (e statusErr) Error() string       { return "status" }
func (e statusErr) HTTPStatusCode() int { return int(e) }

func TestIsRetryableError(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{context.Canceled, false},
		{context.DeadlineExceeded, true},
		{statusErr(429), true},
		{statusErr(503), true},
		{statusErr(400), false},
		{errors.New("plain"), false},
	}
	for _, tc := range cases {
		if got := IsRetryableError(tc.err); got != tc.want {
			t.Fatalf("IsRetryableError(%v): want=%v got=%v", tc.err, tc.want, got)
		}
	}
}

func TestBackoffDelay(t *testing.T) {
	b := Backoff{Base: 100 * time.Millisecond, Max: time.Second}
	if got := b.Delay(0, nil); got != 100*time.Millisecond {
		t.Fatalf("attempt 0: %s", got)
	}
	if got := b.Delay(2, nil); got != 400*time.Millisecond {
		t.Fatalf("attempt 2: %s", got)
	}
	if got := b.Delay(10, nil); got != time.Second {
		t.Fatalf("cap: %s", got)
	}

	resp := &http.Response{Header: http.Header{}}
	resp.Header.Set("Retry-After", "3")
	if got := b.Delay(0, resp); got != time.Second {
		t.Fatalf("retry-after capped: %s", got)
	}
	if got := (Backoff{Base: time.Millisecond, Max: 5 * time.Second}).Delay(0, resp); got != 3*time.Second {
		t.Fatalf("retry-after: %s", got)
	}

	j := Backoff{Base: time.Second, Jitter: 0.2}
	for i := 0; i < 20; i++ {
		if got := j.Delay(0, nil); got < 800*time.Millisecond || got > 1200*time.Millisecond {
			t.Fatalf("jitter out of range: %s", got)
		}
	}
}

func TestRetryStopsOnFinalError(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), 3, Backoff{}, nil, func() (*http.Response, error) {
		calls++
		if calls < 3 {
			return nil, statusErr(503)
		}
		return nil, statusErr(400)
	})
	if calls != 3 || !errors.Is(err, statusErr(400)) {
		t.Fatalf("calls=%d err=%v", calls, err)
	}

	calls = 0
	var waits []int
	err = Retry(context.Background(), 2, Backoff{}, func(attempt int, _ time.Duration, _ error) {
		waits = append(waits, attempt)
	}, func() (*http.Response, error) {
		calls++
		return nil, statusErr(502)
	})
	if calls != 3 || len(waits) != 2 || !errors.Is(err, statusErr(502)) {
		t.Fatalf("calls=%d waits=%v err=%v", calls, waits, err)
	}
}
