package rating

import "testing"

func TestDeltaEqualRatingsWin(t *testing.T) {
	// Expected score is 0.5 on equal ratings, so a win moves K/2.
	if got := Delta(1200, 1200, Win, KFactor); got != 16 {
		t.Fatalf("expected +16, got %d", got)
	}
	if got := Delta(1200, 1200, Loss, KFactor); got != -16 {
		t.Fatalf("expected -16, got %d", got)
	}
}

func TestDeltaDrawMovesNothingOnEqualRatings(t *testing.T) {
	if got := Delta(1500, 1500, Draw, KFactor); got != 0 {
		t.Fatalf("expected 0 on equal draw, got %d", got)
	}
}

func TestDeltaUnderdogWinPaysMore(t *testing.T) {
	underdog := Delta(1000, 1400, Win, KFactor)
	favorite := Delta(1400, 1000, Win, KFactor)
	if underdog <= favorite {
		t.Fatalf("underdog win (%d) should exceed favorite win (%d)", underdog, favorite)
	}
	if underdog <= 16 {
		t.Fatalf("expected underdog gain above K/2, got %d", underdog)
	}
}

func TestPairSymmetricOnEqualRatings(t *testing.T) {
	winner, loser := Pair(1200, 1200, Win)
	if winner.Change != -loser.Change {
		t.Fatalf("expected equal-magnitude opposite deltas, got %d and %d", winner.Change, loser.Change)
	}
	if winner.After != 1216 || loser.After != 1184 {
		t.Fatalf("unexpected post-match ratings: %d, %d", winner.After, loser.After)
	}
}

func TestPairUsesPreMatchRatingsSimultaneously(t *testing.T) {
	a, b := Pair(1000, 1400, Win)
	// B's delta must be computed against A's pre-match 1000, not A's updated rating.
	wantB := Delta(1400, 1000, Loss, KFactor)
	if b.Change != wantB {
		t.Fatalf("expected B delta %d, got %d", wantB, b.Change)
	}
	if a.Before != 1000 || b.Before != 1400 {
		t.Fatalf("Before fields must hold pre-match ratings, got %d and %d", a.Before, b.Before)
	}
}

func TestApplyFloorsRating(t *testing.T) {
	if got := Apply(110, -50); got != FloorRating {
		t.Fatalf("expected floor %d, got %d", FloorRating, got)
	}
	if got := Apply(FloorRating, -1); got != FloorRating {
		t.Fatalf("rating must never fall below the floor, got %d", got)
	}
	if got := Apply(1200, -16); got != 1184 {
		t.Fatalf("expected 1184, got %d", got)
	}
}
