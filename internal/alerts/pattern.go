package alerts

import (
	"math"

	"github.com/vigil-dev/vigil/internal/models"
)

// IsFibonacci reports whether n is a Fibonacci number, using the identity
// that n is Fibonacci iff 5n²+4 or 5n²-4 is a perfect square. Returns
// false for n <= 0.
func IsFibonacci(n int) bool {
	if n <= 0 {
		return false
	}
	sq := 5 * n * n
	return isPerfectSquare(sq+4) || isPerfectSquare(sq-4)
}

func isPerfectSquare(n int) bool {
	if n < 0 {
		return false
	}
	root := int(math.Sqrt(float64(n)))
	// Guard against float truncation around large squares
	for _, r := range []int{root - 1, root, root + 1} {
		if r >= 0 && r*r == n {
			return true
		}
	}
	return false
}

// ShouldSendDownAlert decides whether a down alert fires at the monitor's
// current consecutive-failure count. Pattern "every" alerts on each
// confirmed failure; "fibonacci" only when the count is a Fibonacci
// number (1, 2, 3, 5, 8, 13, ...).
func ShouldSendDownAlert(m *models.Monitor) bool {
	switch m.PatternOrDefault() {
	case models.AlertPatternFibonacci:
		return IsFibonacci(m.ConsecutiveFailures)
	default:
		return true
	}
}

// ShouldSendRecoveryAlert decides whether a recovery alert fires for a
// closing incident. A recovery without a preceding down alert would only
// confuse, so it requires the incident's down alert to have been sent.
func ShouldSendRecoveryAlert(m *models.Monitor, incident *models.Incident) bool {
	if incident == nil {
		return false
	}
	return incident.DownAlertSent
}

// NextAlertAt returns the failure count at which the next fibonacci-
// pattern alert would fire: the smallest Fibonacci number greater than
// the current count. Used for dashboard hints.
func NextAlertAt(currentFailureCount int) int {
	if currentFailureCount < 1 {
		return 1
	}
	a, b := 1, 2
	for b <= currentFailureCount {
		a, b = b, a+b
	}
	return b
}
