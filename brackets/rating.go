package brackets

import "math"

const (
	MinRating = 1.0
	MaxRating = 10.0

	// A player is provisional until this many rating records exist.
	ProvisionalRecordCount = 11

	baseUnitProvisional = 0.003
	baseUnitEstablished = 0.001
	weightProvisional   = 0.0009
	weightEstablished   = 0.0003
)

// RatingInput describes one player's view of a single rated match.
type RatingInput struct {
	// ScoreDiff is own score minus opponent score.
	ScoreDiff int
	// RatingGap is the opponent side's average rating minus the player's rating.
	RatingGap   float64
	Provisional bool
	TargetScore int
}

// IsProvisional reports whether a player with priorRecords rating records is still provisional.
func IsProvisional(priorRecords int) bool {
	return priorRecords < ProvisionalRecordCount
}

func marginBucket(scoreDiff, targetScore int) int {
	ratio := math.Abs(float64(scoreDiff)) / float64(max(targetScore, 1))
	switch {
	case ratio < 0.35:
		return 1
	case ratio < 0.70:
		return 2
	case ratio < 0.90:
		return 3
	default:
		return 4
	}
}

// winUnits favors upsets: the stronger the opponent, the larger the gain.
func winUnits(gap float64) float64 {
	switch {
	case gap < -2:
		return 0
	case gap < 1:
		return 1
	case gap < 2:
		return 2
	case gap < 3:
		return 3
	case gap < 4:
		return 4
	case gap < 5:
		return 5
	default:
		return 10
	}
}

// lossUnits punishes losing to weaker opponents.
func lossUnits(gap float64) float64 {
	switch {
	case gap < -2:
		return -10
	case gap < -1:
		return -5
	case gap < 0:
		return -3
	case gap < 1:
		return -2
	case gap < 4:
		return -1
	default:
		return 0
	}
}

// RatingDelta returns the unclamped rating change for one player after one match.
func RatingDelta(in RatingInput) float64 {
	base, weight := baseUnitEstablished, weightEstablished
	if in.Provisional {
		base, weight = baseUnitProvisional, weightProvisional
	}
	bucket := float64(marginBucket(in.ScoreDiff, in.TargetScore))

	if in.ScoreDiff >= 0 {
		delta := winUnits(in.RatingGap) * base
		if in.Provisional && in.RatingGap < -1 && bucket < 4 {
			return delta - (4-bucket)*weight
		}
		return delta + bucket*weight
	}
	return lossUnits(in.RatingGap)*base - bucket*weight
}

// ApplyRating clamps before+delta into [MinRating, MaxRating] and returns the new rating
// together with the delta actually applied.
func ApplyRating(before, delta float64) (after, applied float64) {
	if (before >= MaxRating && delta > 0) || (before <= MinRating && delta < 0) {
		return before, 0
	}
	after = math.Min(MaxRating, math.Max(MinRating, before+delta))
	return after, after - before
}
