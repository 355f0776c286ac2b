package drawgen

import (
	"fmt"
	"math"
)

// MinPullupDistance is the least total pull-up distance of any draw without
// pull-downs: at every point boundary the teams below it that cannot fill
// whole rooms must cross it.
func MinPullupDistance(teams []Team, per int) int {
	if len(teams) == 0 {
		return 0
	}
	lo, hi := math.MaxInt, math.MinInt
	count := make(map[int]int)
	for _, t := range teams {
		count[t.Points]++
		lo = min(lo, t.Points)
		hi = max(hi, t.Points)
	}
	total, below := 0, 0
	for p := lo; p < hi; p++ {
		below += count[p]
		total += below % per
	}
	return total
}

// Check verifies a draw against its input: every team seated exactly once,
// every seat filled, no pull-downs, consistent pull-up flags and the least
// pull-up distance.
func Check(in *Input, d *Draw) error {
	tps := in.Settings.TeamsPerSide
	points := make(map[string]int, len(in.Teams))
	for _, t := range in.Teams {
		points[t.ID] = t.Points
	}
	seen := make(map[string]bool, len(in.Teams))
	distance := 0
	for i, r := range d.Rooms {
		if len(r.Props) != tps || len(r.Opps) != tps {
			return fmt.Errorf("%w: room %d has %d+%d teams", ErrInfeasible, i+1, len(r.Props), len(r.Opps))
		}
		pulled := make(map[string]bool, len(r.PulledUp))
		for _, id := range r.PulledUp {
			pulled[id] = true
		}
		for _, id := range seatsOf(r) {
			p, ok := points[id]
			switch {
			case !ok:
				return fmt.Errorf("%w: room %d seats unknown team %q", ErrInfeasible, i+1, id)
			case seen[id]:
				return fmt.Errorf("%w: team %s is seated twice", ErrInfeasible, id)
			case in.Elim:
			case p > r.Bracket:
				return fmt.Errorf("%w: team %s pulled down into the %d bracket", ErrInfeasible, id, r.Bracket)
			case pulled[id] != (p < r.Bracket):
				return fmt.Errorf("%w: pull-up flag of team %s is wrong", ErrInfeasible, id)
			}
			seen[id] = true
			if !in.Elim {
				distance += r.Bracket - p
			}
		}
	}
	if len(seen) != len(in.Teams) {
		return fmt.Errorf("%w: %d of %d teams seated", ErrInfeasible, len(seen), len(in.Teams))
	}
	if !in.Elim {
		if want := MinPullupDistance(in.Teams, in.Settings.TeamsPerDebate()); distance != want {
			return fmt.Errorf("%w: pull-up distance %d, least possible %d", ErrInfeasible, distance, want)
		}
	}
	return nil
}
