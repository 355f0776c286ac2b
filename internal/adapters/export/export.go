// Package export renders standings as spreadsheets.
package export

import (
	"errors"
	"fmt"
	"io"

	"github.com/okian/tabroom/internal/domain/standings"
	"github.com/xuri/excelize/v2"
)

const (
	TeamSheet    = "Teams"
	SpeakerSheet = "Speakers"
)

var ErrNoStandings = errors.New("export: team standings are required")

// Standings writes an XLSX workbook with a team sheet and, when ss is not
// nil, a speaker sheet. Rows the tab cannot name show their ids.
func Standings(w io.Writer, tab *standings.Tab, ts *standings.TeamStandings, ss *standings.SpeakerStandings) error {
	if ts == nil {
		return ErrNoStandings
	}
	f := excelize.NewFile()
	defer f.Close()

	teams := make(map[string]string, len(tab.Teams))
	for _, t := range tab.Teams {
		teams[t.ID] = t.Name
	}

	if err := f.SetSheetName(f.GetSheetName(0), TeamSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	header := []any{"Rank", "Team"}
	for _, m := range ts.Metrics {
		header = append(header, string(m))
	}
	if err := f.SetSheetRow(TeamSheet, "A1", &header); err != nil {
		return fmt.Errorf("write team header: %w", err)
	}
	for i, row := range ts.Rows {
		cells := []any{row.Rank, nameOr(teams, row.TeamID)}
		for _, v := range row.Values {
			cells = append(cells, v)
		}
		if err := f.SetSheetRow(TeamSheet, cell(i+2), &cells); err != nil {
			return fmt.Errorf("write team row: %w", err)
		}
	}

	if ss != nil {
		if err := speakerSheet(f, tab, teams, ss); err != nil {
			return err
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func speakerSheet(f *excelize.File, tab *standings.Tab, teams map[string]string, ss *standings.SpeakerStandings) error {
	if _, err := f.NewSheet(SpeakerSheet); err != nil {
		return fmt.Errorf("add sheet: %w", err)
	}
	speakers := make(map[string]string, len(tab.Speakers))
	for _, s := range tab.Speakers {
		speakers[s.ID] = s.Name
	}
	header := []any{"Rank", "Speaker", "Team", "Speeches"}
	for _, m := range ss.Metrics {
		header = append(header, string(m))
	}
	if err := f.SetSheetRow(SpeakerSheet, "A1", &header); err != nil {
		return fmt.Errorf("write speaker header: %w", err)
	}
	for i, row := range ss.Rows {
		cells := []any{row.Rank, nameOr(speakers, row.SpeakerID), nameOr(teams, row.TeamID), row.Speeches}
		for _, v := range row.Values {
			cells = append(cells, v)
		}
		if err := f.SetSheetRow(SpeakerSheet, cell(i+2), &cells); err != nil {
			return fmt.Errorf("write speaker row: %w", err)
		}
	}
	return nil
}

func cell(row int) string {
	name, _ := excelize.CoordinatesToCellName(1, row)
	return name
}

func nameOr(names map[string]string, id string) string {
	if n, ok := names[id]; ok && n != "" {
		return n
	}
	return id
}
