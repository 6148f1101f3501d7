package outbox

import (
	"math/rand"
	"time"
	"unicode/utf8"
)

type retryPolicy struct {
	maxBackoff time.Duration
	jitterMax  time.Duration
	rand       *rand.Rand
}

func (p retryPolicy) delay(attempts int) time.Duration {
	return backoff(attempts, p.maxBackoff) + jitter(p.rand, p.jitterMax)
}

// backoff is one second doubled per earlier attempt, capped at ceiling.
func backoff(attempts int, ceiling time.Duration) time.Duration {
	if attempts <= 0 {
		return 0
	}
	if attempts > 31 {
		return ceiling
	}
	d := time.Second << (attempts - 1)
	if d > ceiling {
		return ceiling
	}
	return d
}

// jitter is uniform in [0, maxJitter].
func jitter(r *rand.Rand, maxJitter time.Duration) time.Duration {
	if r == nil || maxJitter <= 0 {
		return 0
	}
	return time.Duration(r.Int63n(int64(maxJitter) + 1)) //nolint:gosec
}

// truncateError cuts the message to at most limit bytes on a rune boundary.
func truncateError(err error, limit int) string {
	if err == nil || limit <= 0 {
		return ""
	}
	s := err.Error()
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
