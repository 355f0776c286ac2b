package model

import (
	"fmt"
	"math"
)

const scoreEpsilon = 1e-6

// CheckScore validates a speech score against the tournament's grid:
// score = min + k*step for an integer k with min <= score <= max.
func (s *Settings) CheckScore(score float64, isReply bool, speaker string) error {
	lo, hi := s.SubstantiveSpeechMinSpeak, s.SubstantiveSpeechMaxSpeak
	if isReply {
		lo, hi = s.ReplySpeechMinSpeak, s.ReplySpeechMaxSpeak
	}
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return fmt.Errorf("%w: score for %s is not a number", ErrInvalidScore, speaker)
	}
	if score < lo-scoreEpsilon {
		return fmt.Errorf("%w: score of %g for %s is lower than the minimum permissible speak %g", ErrInvalidScore, score, speaker, lo)
	}
	if score > hi+scoreEpsilon {
		return fmt.Errorf("%w: score of %g for %s is greater than the maximum permissible speak %g", ErrInvalidScore, score, speaker, hi)
	}
	if step := s.SubstantiveSpeechStep; step > 0 {
		k := (score - lo) / step
		if math.Abs(k-math.Round(k)) > scoreEpsilon {
			return fmt.Errorf("%w: score of %g for %s is not a multiple of %g above %g", ErrInvalidScore, score, speaker, step, lo)
		}
	}
	return nil
}

// ScoresEqual compares two scores within tolerance.
func ScoresEqual(a, b float64) bool {
	return math.Abs(a-b) <= scoreEpsilon
}

// Round2 rounds half to even at two decimal places.
func Round2(v float64) float64 {
	return math.RoundToEven(v*100) / 100
}
