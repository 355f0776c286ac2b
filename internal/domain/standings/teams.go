package standings

import (
	"fmt"
	"math"
	"sort"

	"github.com/okian/tabroom/internal/domain/model"
)

const epsilon = 1e-9

// TeamRow is one team's line in the standings.
type TeamRow struct {
	TeamID string
	// Values follows TeamStandings.Metrics.
	Values []float64
	Rank   int

	// Points is always computed; the draw brackets on it.
	Points int
	// Non-ranking values used to choose pull-ups.
	Pullups            int
	AverageSpeaks      float64
	DrawStrengthByRank float64
}

// TeamStandings is the ordered team ranking.
type TeamStandings struct {
	Metrics []model.TeamMetric
	Rows    []TeamRow
	// Bands groups team ids tied on every metric, best band first.
	Bands [][]string

	byTeam map[string]int
}

// Row returns the row of a team.
func (s *TeamStandings) Row(teamID string) (TeamRow, bool) {
	i, ok := s.byTeam[teamID]
	if !ok {
		return TeamRow{}, false
	}
	return s.Rows[i], true
}

// ValidateMetrics checks that every configured metric can be computed in order.
func ValidateMetrics(s *model.Settings) error {
	seen := make(map[model.TeamMetric]bool, len(s.TeamStandingsMetrics))
	for _, m := range s.TeamStandingsMetrics {
		if _, err := model.ParseTeamMetric(string(m)); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
		}
		if seen[m] {
			return fmt.Errorf("%w: %s listed twice", ErrInvalidConfiguration, m)
		}
		switch m {
		case model.MetricDrawStrengthByWins:
			if !seen[model.MetricWins] {
				return fmt.Errorf("%w: %s needs %s earlier in the list", ErrInvalidConfiguration, m, model.MetricWins)
			}
		case model.MetricDrawStrengthBySpeaks:
			if !seen[model.MetricAverageTotalSpeakerScore] {
				return fmt.Errorf("%w: %s needs %s earlier in the list", ErrInvalidConfiguration, m, model.MetricAverageTotalSpeakerScore)
			}
		case model.MetricBallots:
			if s.PoolBallotSetup != model.BallotIndividual {
				return fmt.Errorf("%w: %s needs individual prelim ballots", ErrInvalidConfiguration, m)
			}
		}
		seen[m] = true
	}
	for _, m := range s.PullupMetrics {
		if _, err := model.ParsePullupMetric(string(m)); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
		}
	}
	for _, m := range s.SpeakerStandingsMetrics {
		if _, err := model.ParseSpeakerMetric(string(m)); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
		}
	}
	return nil
}

// ComputeTeams ranks every team of the tab over its completed prelims.
func ComputeTeams(tab *Tab) (*TeamStandings, error) {
	if err := ValidateMetrics(tab.Settings); err != nil {
		return nil, err
	}
	ix := newIndex(tab)

	points := make(map[string]int, len(tab.Teams))
	achieved := make(map[string]map[int]int, len(tab.Teams))
	for _, r := range tab.TeamResults {
		if !ix.counted[r.DebateID] {
			continue
		}
		points[r.TeamID] += r.Points
		if achieved[r.TeamID] == nil {
			achieved[r.TeamID] = make(map[int]int)
		}
		achieved[r.TeamID][r.Points]++
	}

	tss := make(map[string]float64, len(tab.Teams))
	for _, r := range tab.SpeakerResults {
		if ix.speaksWithin[r.DebateID] {
			tss[r.TeamID] += r.Score
		}
	}
	atss := make(map[string]float64, len(tab.Teams))
	for _, t := range tab.Teams {
		if ix.speakRounds > 0 {
			atss[t.ID] = model.Round2(tss[t.ID] / float64(ix.speakRounds))
		}
	}

	votes := ballotsInFavour(tab, ix)
	opponents := ix.opponents(tab)

	pullups := make(map[string]int, len(tab.Teams))
	for _, dt := range tab.DebateTeams {
		if dt.PulledUp && ix.counted[dt.DebateID] {
			pullups[dt.TeamID]++
		}
	}

	metrics := tab.Settings.TeamStandingsMetrics
	rows := make([]TeamRow, 0, len(tab.Teams))
	numbers := make(map[string]int, len(tab.Teams))
	for _, t := range tab.Teams {
		numbers[t.ID] = t.Number
		row := TeamRow{
			TeamID:        t.ID,
			Values:        make([]float64, 0, len(metrics)),
			Points:        points[t.ID],
			Pullups:       pullups[t.ID],
			AverageSpeaks: atss[t.ID],
		}
		for _, m := range metrics {
			var v float64
			switch m {
			case model.MetricWins:
				v = float64(points[t.ID])
			case model.MetricBallots:
				v = float64(votes[t.ID])
			case model.MetricTotalSpeakerScore:
				v = tss[t.ID]
			case model.MetricAverageTotalSpeakerScore:
				v = atss[t.ID]
			case model.MetricDrawStrengthByWins:
				for _, o := range opponents[t.ID] {
					v += float64(points[o])
				}
			case model.MetricDrawStrengthBySpeaks:
				for _, o := range opponents[t.ID] {
					v += atss[o]
				}
				v = model.Round2(v)
			default:
				k, _ := m.Achieved()
				v = float64(achieved[t.ID][int(k)])
			}
			row.Values = append(row.Values, v)
		}
		rows = append(rows, row)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if c := compareDesc(rows[i].Values, rows[j].Values); c != 0 {
			return c < 0
		}
		return numbers[rows[i].TeamID] < numbers[rows[j].TeamID]
	})

	st := &TeamStandings{
		Metrics: metrics,
		Rows:    rows,
		byTeam:  make(map[string]int, len(rows)),
	}
	for i := range rows {
		if i == 0 || compareDesc(rows[i-1].Values, rows[i].Values) != 0 {
			st.Bands = append(st.Bands, nil)
			rows[i].Rank = i + 1
		} else {
			rows[i].Rank = rows[i-1].Rank
		}
		st.Bands[len(st.Bands)-1] = append(st.Bands[len(st.Bands)-1], rows[i].TeamID)
		st.byTeam[rows[i].TeamID] = i
	}

	for i := range rows {
		for _, o := range opponents[rows[i].TeamID] {
			if j, ok := st.byTeam[o]; ok {
				rows[i].DrawStrengthByRank += float64(rows[j].Rank)
			}
		}
	}
	return st, nil
}

// ballotsInFavour sums the points of canonical non-trainee ballots.
func ballotsInFavour(tab *Tab, ix *index) map[string]int {
	trainee := make(map[[2]string]bool)
	for _, dj := range tab.DebateJudges {
		if dj.Role == model.RoleTrainee {
			trainee[[2]string{dj.DebateID, dj.JudgeID}] = true
		}
	}
	canonical := make(map[string]bool)
	for _, b := range model.LatestBallots(tab.Ballots) {
		if ix.counted[b.DebateID] && !trainee[[2]string{b.DebateID, b.JudgeID}] {
			canonical[b.ID] = true
		}
	}
	out := make(map[string]int)
	for _, r := range tab.BallotRanks {
		if canonical[r.BallotID] {
			out[r.TeamID] += r.Points
		}
	}
	return out
}

// compareDesc orders metric tuples best first: -1 when a ranks above b.
func compareDesc(a, b []float64) int {
	for i := range a {
		if i >= len(b) {
			break
		}
		if math.Abs(a[i]-b[i]) <= epsilon {
			continue
		}
		if a[i] > b[i] {
			return -1
		}
		return 1
	}
	return 0
}
