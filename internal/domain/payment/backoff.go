package payment

import "time"

// maxBackoffShift caps the exponential retry window at base*2^6 so a
// misconfigured retry cap cannot push next_retry_at years out.
const maxBackoffShift = 6

// NextRetry returns when a failed payment becomes eligible for another
// automatic attempt: base doubled per prior attempt, counted from the
// failure time.
func NextRetry(from time.Time, base time.Duration, attempt int) time.Time {
	shift := attempt - 1
	if shift < 0 {
		shift = 0
	}
	if shift > maxBackoffShift {
		shift = maxBackoffShift
	}
	return from.Add(base << uint(shift))
}
