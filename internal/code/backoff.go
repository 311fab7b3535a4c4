package code

import "time"

const (
	// MaxPollAttempts bounds how many times a submission is polled.
	MaxPollAttempts = 10

	initialPollDelay = time.Second
	maxPollDelay     = 8 * time.Second
)

// PollDelay returns the wait that follows the zero-based poll attempt:
// 1s, doubling each attempt, capped at 8s.
func PollDelay(attempt int) time.Duration {
	d := initialPollDelay
	for i := 0; i < attempt && d < maxPollDelay; i++ {
		d *= 2
	}
	if d > maxPollDelay {
		d = maxPollDelay
	}
	return d
}
