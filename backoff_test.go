package automation

import (
	"testing"
	"time"
)

func TestRetryBackoffDoublesUntilCeiling(t *testing.T) {
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 10 * time.Second},
		{5, 10 * time.Second},
		{20, 10 * time.Second},
	}
	for _, c := range cases {
		if got := retryBackoff(c.attempt); got != c.want {
			t.Errorf("retryBackoff(%d) = %s, want %s", c.attempt, got, c.want)
		}
	}
}
