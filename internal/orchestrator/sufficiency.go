package orchestrator

import "math"

// sufficient reports whether valid structured events make the model-assisted
// pass unnecessary. Without an expected count one valid event is enough.
func sufficient(valid, expected int, ratio float64) bool {
	if valid < 1 {
		return false
	}
	if expected <= 0 {
		return true
	}
	if ratio <= 0 {
		ratio = 1
	}
	return valid >= int(math.Ceil(float64(expected)*ratio))
}
