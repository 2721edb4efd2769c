// Package rating implements the Elo-style rating math applied when a match
// finishes. Everything here is pure; persistence belongs to the caller.
package rating

import "math"

const (
	// KFactor scales how far a single match moves a rating.
	KFactor = 32
	// DefaultRating is assigned to players with no prior rating on record.
	DefaultRating = 1200
	// FloorRating is the minimum a rating can fall to.
	FloorRating = 100
)

// Match results from one player's perspective.
const (
	Loss = 0.0
	Draw = 0.5
	Win  = 1.0
)

// Delta returns the signed rating change for a player with the given result
// against an opponent, rounded to the nearest integer.
func Delta(playerRating, opponentRating int, result float64, kFactor int) int {
	expected := 1 / (1 + math.Pow(10, float64(opponentRating-playerRating)/400))
	return int(math.Round(float64(kFactor) * (result - expected)))
}

// Apply returns the new rating after a delta, floored at FloorRating.
func Apply(old, delta int) int {
	updated := old + delta
	if updated < FloorRating {
		return FloorRating
	}
	return updated
}

// Update carries the outcome of a rating computation for one player.
type Update struct {
	Before int
	After  int
	Change int
}

// Pair computes both players' updates simultaneously from pre-match ratings
// so neither computation sees the other's result. resultA is from player A's
// perspective; player B gets the complement.
func Pair(ratingA, ratingB int, resultA float64) (Update, Update) {
	deltaA := Delta(ratingA, ratingB, resultA, KFactor)
	deltaB := Delta(ratingB, ratingA, 1-resultA, KFactor)
	return Update{Before: ratingA, After: Apply(ratingA, deltaA), Change: deltaA},
		Update{Before: ratingB, After: Apply(ratingB, deltaB), Change: deltaB}
}
