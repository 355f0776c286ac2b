package standings

// History is what earlier rounds say about each team.
type History struct {
	// Positions counts debates per position index 2*seq+side.
	Positions map[string][]int
	// Meetings counts previous debates shared by a pair of teams.
	Meetings map[Pair]int
	// Pullups counts previous pull-ups.
	Pullups map[string]int
}

// Pair is an unordered pair of team ids.
type Pair struct{ A, B string }

// NewPair orders the ids so that Pair{x,y} == Pair{y,x}.
func NewPair(a, b string) Pair {
	if b < a {
		a, b = b, a
	}
	return Pair{A: a, B: b}
}

// HistoryBefore collects positions, meetings and pull-ups from rounds sequenced before seq.
func HistoryBefore(tab *Tab, seq int) *History {
	positions := tab.Settings.TeamsPerDebate()
	h := &History{
		Positions: make(map[string][]int, len(tab.Teams)),
		Meetings:  make(map[Pair]int),
		Pullups:   make(map[string]int),
	}
	for _, t := range tab.Teams {
		h.Positions[t.ID] = make([]int, positions)
	}

	before := make(map[string]bool, len(tab.Debates))
	rounds := make(map[string]int, len(tab.Rounds))
	for _, r := range tab.Rounds {
		rounds[r.ID] = r.Seq
	}
	for _, d := range tab.Debates {
		if s, ok := rounds[d.RoundID]; ok && s < seq {
			before[d.ID] = true
		}
	}

	byDebate := make(map[string][]string)
	for _, dt := range tab.DebateTeams {
		if !before[dt.DebateID] {
			continue
		}
		if p := 2*dt.Seq + dt.Side; p < positions {
			if counts, ok := h.Positions[dt.TeamID]; ok {
				counts[p]++
			}
		}
		if dt.PulledUp {
			h.Pullups[dt.TeamID]++
		}
		byDebate[dt.DebateID] = append(byDebate[dt.DebateID], dt.TeamID)
	}
	for _, teams := range byDebate {
		for i := range teams {
			for j := i + 1; j < len(teams); j++ {
				h.Meetings[NewPair(teams[i], teams[j])]++
			}
		}
	}
	return h
}
