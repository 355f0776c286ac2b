package simulate

import (
	"fmt"

	service "github.com/okian/tabroom/internal/app"
	"github.com/okian/tabroom/internal/domain/drawgen"
)

// verifyDraw checks a released pairing against the points the draw was made
// from: everyone seated once, full rooms, one team per position, and pulled-up
// flags that agree with the points in each room.
func verifyDraw(view *service.DrawView, points map[string]int) error {
	if want := len(points) / teamsPerRoom; len(view.Debates) != want {
		return fmt.Errorf("%w: %d rooms for %d teams", ErrDrawInvariant, len(view.Debates), len(points))
	}
	seen := make(map[string]bool, len(points))
	for _, d := range view.Debates {
		if len(d.Teams) != teamsPerRoom {
			return fmt.Errorf("%w: debate %d seats %d teams", ErrDrawInvariant, d.Number, len(d.Teams))
		}
		positions := make(map[int]bool, teamsPerRoom)
		native := -1
		for _, seat := range d.Teams {
			p, ok := points[seat.TeamID]
			switch {
			case !ok:
				return fmt.Errorf("%w: debate %d seats unknown team %s", ErrDrawInvariant, d.Number, seat.TeamID)
			case seen[seat.TeamID]:
				return fmt.Errorf("%w: team %s is seated twice", ErrDrawInvariant, seat.TeamID)
			case positions[2*seat.Seq+seat.Side]:
				return fmt.Errorf("%w: debate %d fills side %d seq %d twice", ErrDrawInvariant, d.Number, seat.Side, seat.Seq)
			}
			seen[seat.TeamID] = true
			positions[2*seat.Seq+seat.Side] = true
			if !seat.PulledUp {
				if native >= 0 && native != p {
					return fmt.Errorf("%w: debate %d mixes brackets %d and %d", ErrDrawInvariant, d.Number, native, p)
				}
				native = p
			}
		}
		for _, seat := range d.Teams {
			if seat.PulledUp && native >= 0 && points[seat.TeamID] >= native {
				return fmt.Errorf("%w: team %s is flagged pulled up without a lower score", ErrDrawInvariant, seat.TeamID)
			}
		}
	}
	return nil
}

// leastDistance is the pull-up distance an optimal draw over points reaches.
func leastDistance(points map[string]int) int {
	teams := make([]drawgen.Team, 0, len(points))
	for id, p := range points {
		teams = append(teams, drawgen.Team{ID: id, Points: p})
	}
	return drawgen.MinPullupDistance(teams, teamsPerRoom)
}

// verifyStandings checks the table is ordered and accounts for every point
// awarded over rounds complete rounds.
func verifyStandings(table *service.TeamTable, teams, rounds int) error {
	if len(table.Rows) != teams {
		return fmt.Errorf("%w: %d rows for %d teams", ErrStandings, len(table.Rows), teams)
	}
	perRoom := teamsPerRoom * (teamsPerRoom - 1) / 2
	want := rounds * (teams / teamsPerRoom) * perRoom
	total := 0
	for i, row := range table.Rows {
		total += row.Points
		if i == 0 {
			continue
		}
		prev := table.Rows[i-1]
		if row.Points > prev.Points {
			return fmt.Errorf("%w: %s (%d) ranked below %s (%d)", ErrStandings, row.Team, row.Points, prev.Team, prev.Points)
		}
		if row.Rank < prev.Rank {
			return fmt.Errorf("%w: rank %d follows rank %d", ErrStandings, row.Rank, prev.Rank)
		}
	}
	if total != want {
		return fmt.Errorf("%w: %d points awarded, expected %d", ErrStandings, total, want)
	}
	return nil
}
