// Package drawgen pairs available teams into rooms and positions.
//
// The power-pairing part is solved exactly: bracket sizes carry the surplus
// of every point level upwards, which is the least total pull-up distance
// any feasible draw can have. Who gets pulled up, and who sits where, are
// then two assignment problems, followed by a swap pass that trades
// same-position teams between rooms of one bracket to avoid clashes.
package drawgen

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/okian/tabroom/internal/domain/model"
	"github.com/okian/tabroom/internal/domain/standings"
)

const (
	perturbation      = 0.1
	defaultSwapPasses = 16
)

// Team is an available team as the generator sees it.
type Team struct {
	ID            string
	InstitutionID string
	Points        int

	Rank               int
	Pullups            int
	// Seed orders an elimination round's teams, 1 being the top seed.
	Seed               int
	DrawStrengthByRank float64
	AverageSpeaks      float64

	// History counts previous debates per position index 2*seq+side.
	History []int
}

// Input is everything one draw depends on.
type Input struct {
	Settings *model.Settings
	Elim     bool
	Teams    []Team
	Meetings map[standings.Pair]int
}

// Room is one generated debate.
type Room struct {
	Bracket  int
	Props    []string
	Opps     []string
	PulledUp []string
}

// Draw is a complete assignment of teams to rooms.
type Draw struct {
	Rooms []Room
	// PullupDistance sums (bracket - points) over all teams.
	PullupDistance int
	// PositionCost sums each team's history at its new position.
	PositionCost int
	Seed         int64
}

// Generator produces draws.
type Generator struct {
	seed       int64
	swapPasses int
}

// New creates a Generator.
func New(opts ...Option) *Generator {
	g := &Generator{
		seed:       time.Now().UnixNano(),
		swapPasses: defaultSwapPasses,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

type bracket struct {
	points int
	size   int
}

// Generate builds a draw. It has no side effects.
func (g *Generator) Generate(in *Input) (d *Draw, err error) {
	defer func() {
		if r := recover(); r != nil {
			d, err = nil, fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()

	s := in.Settings
	per := s.TeamsPerDebate()
	n := len(in.Teams)
	if n == 0 || n%per != 0 {
		return nil, fmt.Errorf("%w: %d teams cannot fill rooms of %d", ErrInvalidTeamCount, n, per)
	}
	for _, m := range s.PullupMetrics {
		if _, err := model.ParsePullupMetric(string(m)); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
		}
	}
	for _, t := range in.Teams {
		if len(t.History) != 0 && len(t.History) != per {
			return nil, fmt.Errorf("%w: team %s has history for %d positions", ErrInvalidConfiguration, t.ID, len(t.History))
		}
	}

	rng := rand.New(rand.NewSource(g.seed))
	out := &Draw{Seed: g.seed}

	if in.Elim {
		for _, seats := range seedRooms(in, rng) {
			out.Rooms = append(out.Rooms, makeRoom(in, 0, seats))
		}
	} else {
		brackets := bracketSizes(in.Teams, per)
		of, err := placeInBrackets(in, brackets, rng)
		if err != nil {
			return nil, err
		}
		for b := len(brackets) - 1; b >= 0; b-- {
			var members []int
			for t := range in.Teams {
				if of[t] == b {
					members = append(members, t)
				}
			}
			if len(members) == 0 {
				continue
			}
			rooms := seat(in, members, rng)
			g.reduceClashes(in, rooms)
			for _, seats := range rooms {
				out.Rooms = append(out.Rooms, makeRoom(in, brackets[b].points, seats))
			}
		}
	}

	byID := make(map[string]Team, n)
	for _, t := range in.Teams {
		byID[t.ID] = t
	}
	for _, r := range out.Rooms {
		for p, id := range seatsOf(r) {
			t := byID[id]
			if !in.Elim {
				out.PullupDistance += r.Bracket - t.Points
			}
			if len(t.History) > 0 {
				out.PositionCost += t.History[p]
			}
		}
	}
	return out, nil
}

// bracketSizes carries each level's surplus up to the next integer level.
func bracketSizes(teams []Team, per int) []bracket {
	lo, hi := math.MaxInt, math.MinInt
	count := make(map[int]int)
	for _, t := range teams {
		count[t.Points]++
		lo = min(lo, t.Points)
		hi = max(hi, t.Points)
	}
	var out []bracket
	carry := 0
	for p := lo; p <= hi; p++ {
		pool := carry + count[p]
		carry = pool % per
		if size := pool - carry; size > 0 {
			out = append(out, bracket{points: p, size: size})
		}
	}
	return out
}

// placeInBrackets chooses which teams fill the pulled-up slots.
func placeInBrackets(in *Input, brackets []bracket, rng *rand.Rand) ([]int, error) {
	n := len(in.Teams)
	var slots []int
	for b, br := range brackets {
		for i := 0; i < br.size; i++ {
			slots = append(slots, b)
		}
	}
	pref := pullupPreference(in, rng)
	repeat := float64(in.Settings.RepeatPullupPenalty)

	cost := make([][]float64, n)
	for t, team := range in.Teams {
		eps := make([]float64, len(brackets))
		for b := range eps {
			eps[b] = rng.Float64() * perturbation
		}
		cost[t] = make([]float64, n)
		for j, b := range slots {
			s := brackets[b].points
			switch {
			case s < team.Points:
				cost[t][j] = forbidden
			case s == team.Points:
				cost[t][j] = eps[b]
			default:
				cost[t][j] = float64(s-team.Points) + pref[t] + repeat*float64(team.Pullups) + eps[b]
			}
		}
	}

	cols := assign(cost)
	of := make([]int, n)
	for t, j := range cols {
		if cost[t][j] >= forbidden {
			return nil, fmt.Errorf("%w: no bracket for team %s", ErrInfeasible, in.Teams[t].ID)
		}
		of[t] = slots[j]
	}
	return of, nil
}

// pullupPreference orders teams by the configured pull-up metrics and
// returns each team's place in that order, so 0 marks the team to pull up
// first. Teams equal on every metric share a place. Places are whole numbers
// and therefore outweigh the tie-breaking perturbation.
func pullupPreference(in *Input, rng *rand.Rand) []float64 {
	metrics := in.Settings.PullupMetrics
	keys := make([][]float64, len(in.Teams))
	for t, team := range in.Teams {
		keys[t] = make([]float64, len(metrics))
		for i, m := range metrics {
			switch m {
			case model.PullupLowestRank:
				keys[t][i] = -float64(team.Rank)
			case model.PullupHighestRank:
				keys[t][i] = float64(team.Rank)
			case model.PullupRandom:
				keys[t][i] = rng.Float64()
			case model.PullupFewerPreviousPullups:
				keys[t][i] = float64(team.Pullups)
			case model.PullupLowestDsRank:
				keys[t][i] = -team.DrawStrengthByRank
			case model.PullupLowestDsSpeaks:
				keys[t][i] = -team.AverageSpeaks
			}
		}
	}
	idx := make([]int, len(in.Teams))
	for i := range idx {
		idx[i] = i
	}
	less := func(a, b []float64) int {
		for i := range a {
			switch {
			case a[i] < b[i]:
				return -1
			case a[i] > b[i]:
				return 1
			}
		}
		return 0
	}
	sort.SliceStable(idx, func(i, j int) bool { return less(keys[idx[i]], keys[idx[j]]) < 0 })

	out := make([]float64, len(in.Teams))
	place := 0
	for i, t := range idx {
		if i > 0 && less(keys[idx[i-1]], keys[t]) != 0 {
			place++
		}
		out[t] = float64(place)
	}
	return out
}

// seedRooms folds the seed order across k rooms, so that room 1 meets seeds
// 1, 2k, 2k+1 and 4k in a four-team format. Positions within each room are
// then chosen on positional history.
func seedRooms(in *Input, rng *rand.Rand) [][]int {
	per := in.Settings.TeamsPerDebate()
	order := make([]int, len(in.Teams))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return in.Teams[order[a]].Seed < in.Teams[order[b]].Seed })

	k := len(order) / per
	rooms := make([][]int, k)
	for r := range rooms {
		members := make([]int, per)
		for g := range members {
			i := r
			if g%2 == 1 {
				i = k - 1 - r
			}
			members[g] = order[g*k+i]
		}
		rooms[r] = seat(in, members, rng)[0]
	}
	return rooms
}

// seat assigns a bracket's teams to (room, position) slots on positional history.
func seat(in *Input, members []int, rng *rand.Rand) [][]int {
	per := in.Settings.TeamsPerDebate()
	k := len(members)
	cost := make([][]float64, k)
	for i, t := range members {
		cost[i] = make([]float64, k)
		h := in.Teams[t].History
		for slot := 0; slot < k; slot++ {
			var c float64
			if len(h) > 0 {
				c = float64(h[slot%per])
			}
			cost[i][slot] = c + rng.Float64()*perturbation
		}
	}
	rooms := make([][]int, k/per)
	for r := range rooms {
		rooms[r] = make([]int, per)
	}
	for i, slot := range assign(cost) {
		rooms[slot/per][slot%per] = members[i]
	}
	return rooms
}

// reduceClashes swaps teams at the same position between rooms while that
// lowers institution and rematch penalties.
func (g *Generator) reduceClashes(in *Input, rooms [][]int) {
	if in.Settings.InstitutionPenalty == 0 && in.Settings.HistoryPenalty == 0 {
		return
	}
	for pass := 0; pass < g.swapPasses; pass++ {
		improved := false
		for a := 0; a < len(rooms); a++ {
			for b := a + 1; b < len(rooms); b++ {
				for p := range rooms[a] {
					before := in.clash(rooms[a]) + in.clash(rooms[b])
					rooms[a][p], rooms[b][p] = rooms[b][p], rooms[a][p]
					if in.clash(rooms[a])+in.clash(rooms[b]) < before {
						improved = true
						continue
					}
					rooms[a][p], rooms[b][p] = rooms[b][p], rooms[a][p]
				}
			}
		}
		if !improved {
			return
		}
	}
}

func (in *Input) clash(room []int) int {
	var c int
	for i := range room {
		for j := i + 1; j < len(room); j++ {
			a, b := in.Teams[room[i]], in.Teams[room[j]]
			if a.InstitutionID != "" && a.InstitutionID == b.InstitutionID {
				c += in.Settings.InstitutionPenalty
			}
			c += in.Settings.HistoryPenalty * in.Meetings[standings.NewPair(a.ID, b.ID)]
		}
	}
	return c
}

func makeRoom(in *Input, points int, seats []int) Room {
	tps := in.Settings.TeamsPerSide
	r := Room{Bracket: points, Props: make([]string, tps), Opps: make([]string, tps)}
	for p, t := range seats {
		team := in.Teams[t]
		if p%2 == 0 {
			r.Props[p/2] = team.ID
		} else {
			r.Opps[p/2] = team.ID
		}
		if !in.Elim && team.Points < points {
			r.PulledUp = append(r.PulledUp, team.ID)
		}
	}
	sort.Strings(r.PulledUp)
	return r
}

// seatsOf lists a room's teams by position index.
func seatsOf(r Room) []string {
	out := make([]string, 0, 2*len(r.Props))
	for i := range r.Props {
		out = append(out, r.Props[i], r.Opps[i])
	}
	return out
}
