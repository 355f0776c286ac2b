package standings

import (
	"math"
	"sort"

	"github.com/okian/tabroom/internal/domain/model"
)

// SpeakerRow is one speaker's line in the speaker tab.
type SpeakerRow struct {
	SpeakerID string
	TeamID    string
	Speeches  int
	Values    []float64
	Rank      int
}

// SpeakerStandings is the ordered speaker ranking.
type SpeakerStandings struct {
	Metrics []model.SpeakerMetric
	Rows    []SpeakerRow
}

// ComputeSpeakers ranks speakers on substantive speeches within the cutoff.
// Lower standard deviation ranks higher.
func ComputeSpeakers(tab *Tab) (*SpeakerStandings, error) {
	if err := ValidateMetrics(tab.Settings); err != nil {
		return nil, err
	}
	ix := newIndex(tab)
	reply := tab.Settings.ReplyPosition()

	scores := make(map[string][]float64, len(tab.Speakers))
	for _, r := range tab.SpeakerResults {
		if !ix.speaksWithin[r.DebateID] || r.Position == reply {
			continue
		}
		scores[r.SpeakerID] = append(scores[r.SpeakerID], r.Score)
	}

	metrics := tab.Settings.SpeakerStandingsMetrics
	rows := make([]SpeakerRow, 0, len(scores))
	for _, sp := range tab.Speakers {
		ss, ok := scores[sp.ID]
		if !ok {
			continue
		}
		total, mean, sd := describe(ss)
		row := SpeakerRow{SpeakerID: sp.ID, TeamID: sp.TeamID, Speeches: len(ss)}
		for _, m := range metrics {
			switch m {
			case model.SpeakerAvg:
				row.Values = append(row.Values, mean)
			case model.SpeakerTotal:
				row.Values = append(row.Values, total)
			case model.SpeakerStdDev:
				// negated so that the shared descending order prefers consistency
				row.Values = append(row.Values, -sd)
			}
		}
		rows = append(rows, row)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return compareDesc(rows[i].Values, rows[j].Values) < 0
	})
	for i := range rows {
		if i > 0 && compareDesc(rows[i-1].Values, rows[i].Values) == 0 {
			rows[i].Rank = rows[i-1].Rank
		} else {
			rows[i].Rank = i + 1
		}
	}
	for i := range rows {
		for j, m := range metrics {
			if m == model.SpeakerStdDev {
				rows[i].Values[j] = -rows[i].Values[j]
			}
		}
	}
	return &SpeakerStandings{Metrics: metrics, Rows: rows}, nil
}

func describe(xs []float64) (total, mean, sd float64) {
	for _, x := range xs {
		total += x
	}
	mean = total / float64(len(xs))
	for _, x := range xs {
		sd += (x - mean) * (x - mean)
	}
	sd = math.Sqrt(sd / float64(len(xs)))
	return total, model.Round2(mean), model.Round2(sd)
}
