package automation

import "time"

// retryBackoff returns the sleep duration before the given retry attempt
// (1-indexed), computed as min(2^attempt, 10) seconds per the engine's
// documented retry policy.
func retryBackoff(attempt int) time.Duration {
	const ceiling = 10
	seconds := 1
	for i := 0; i < attempt; i++ {
		seconds *= 2
		if seconds >= ceiling {
			seconds = ceiling
			break
		}
	}
	return time.Duration(seconds) * time.Second
}
