package export_test

import (
	"bytes"
	"testing"

	"github.com/okian/tabroom/internal/adapters/export"
	"github.com/okian/tabroom/internal/domain/model"
	"github.com/okian/tabroom/internal/domain/standings"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/xuri/excelize/v2"
)

func TestStandings(t *testing.T) {
	Convey("Given team and speaker standings", t, func() {
		tab := &standings.Tab{
			Teams:    []model.Team{{ID: "t1", Name: "Alpha"}, {ID: "t2", Name: "Beta"}},
			Speakers: []model.Speaker{{ID: "s1", TeamID: "t1", Name: "Ada"}},
		}
		ts := &standings.TeamStandings{
			Metrics: []model.TeamMetric{model.MetricWins, model.MetricTotalSpeakerScore},
			Rows: []standings.TeamRow{
				{TeamID: "t1", Values: []float64{3, 152}, Rank: 1},
				{TeamID: "t2", Values: []float64{1, 149.5}, Rank: 2},
			},
		}
		ss := &standings.SpeakerStandings{
			Metrics: []model.SpeakerMetric{model.SpeakerAvg},
			Rows:    []standings.SpeakerRow{{SpeakerID: "s1", TeamID: "t1", Speeches: 2, Values: []float64{76}, Rank: 1}},
		}

		var buf bytes.Buffer
		err := export.Standings(&buf, tab, ts, ss)
		So(err, ShouldBeNil)

		f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
		So(err, ShouldBeNil)
		defer f.Close()

		Convey("Then the team sheet lists ranks, names and metrics", func() {
			rows, err := f.GetRows(export.TeamSheet)
			So(err, ShouldBeNil)
			So(rows, ShouldHaveLength, 3)
			So(rows[0], ShouldResemble, []string{"Rank", "Team", "wins", "total_speaker_score"})
			So(rows[1], ShouldResemble, []string{"1", "Alpha", "3", "152"})
			So(rows[2], ShouldResemble, []string{"2", "Beta", "1", "149.5"})
		})

		Convey("Then the speaker sheet carries team names", func() {
			rows, err := f.GetRows(export.SpeakerSheet)
			So(err, ShouldBeNil)
			So(rows, ShouldHaveLength, 2)
			So(rows[1], ShouldResemble, []string{"1", "Ada", "Alpha", "2", "76"})
		})
	})

	Convey("Given no team standings", t, func() {
		var buf bytes.Buffer
		So(export.Standings(&buf, &standings.Tab{}, nil, nil), ShouldEqual, export.ErrNoStandings)
	})
}
