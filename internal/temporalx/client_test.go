package temporalx

import (
	"context"
	"errors"
	"testing"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestClampBackoff(t *testing.T) {
	cases := []struct {
		base, max time.Duration
		attempt   int
		want      time.Duration
	}{
		{250 * time.Millisecond, 5 * time.Second, 1, 250 * time.Millisecond},
		{250 * time.Millisecond, 5 * time.Second, 3, time.Second},
		{250 * time.Millisecond, 5 * time.Second, 10, 5 * time.Second},
		{0, 0, 2, 500 * time.Millisecond},
	}
	for _, tc := range cases {
		if got := clampBackoff(tc.base, tc.max, tc.attempt); got != tc.want {
			t.Fatalf("clampBackoff(%s,%s,%d): want=%s got=%s", tc.base, tc.max, tc.attempt, tc.want, got)
		}
	}
}

func TestIsRetryableRPC(t *testing.T) {
	if !isRetryableRPC(status.Error(codes.Unavailable, "down")) {
		t.Fatalf("unavailable should be retryable")
	}
	if isRetryableRPC(status.Error(codes.PermissionDenied, "no")) {
		t.Fatalf("permission denied should not be retryable")
	}
	if !isRetryableRPC(context.DeadlineExceeded) {
		t.Fatalf("deadline exceeded should be retryable")
	}
	if isRetryableRPC(errors.New("boom")) {
		t.Fatalf("plain errors should not be retryable")
	}
}

func TestDisabledClientIsNil(t *testing.T) {
	c, err := NewClient(context.Background(), nil, Config{})
	if err != nil || c != nil {
		t.Fatalf("want nil client without address, got %v, %v", c, err)
	}
}

func TestRetentionDaysBounds(t *testing.T) {
	for in, want := range map[int]int{0: 7, 30: 30, 1000: 365} {
		if got := (Config{NamespaceRetentionDays: in}).retentionDays(); got != want {
			t.Fatalf("retentionDays(%d): want=%d got=%d", in, want, got)
		}
	}
}
