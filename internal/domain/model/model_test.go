package model_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/okian/tabroom/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestTeamMetricText(t *testing.T) {
	convey.Convey("Given every n_times_achieved metric", t, func() {
		convey.Convey("Then each k in [0, 255] survives a text round trip", func() {
			for k := 0; k <= 255; k++ {
				m := model.NTimesAchieved(uint8(k))
				b, err := m.MarshalText()
				convey.So(err, convey.ShouldBeNil)
				var back model.TeamMetric
				convey.So(back.UnmarshalText(b), convey.ShouldBeNil)
				convey.So(back, convey.ShouldEqual, m)
				got, ok := back.Achieved()
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(got, convey.ShouldEqual, uint8(k))
			}
		})
	})

	convey.Convey("Given malformed metric strings", t, func() {
		for _, s := range []string{"", "win", "n_times_achieved:", "n_times_achieved:256", "n_times_achieved:01", "n_times_achieved:-1"} {
			_, err := model.ParseTeamMetric(s)
			convey.So(errors.Is(err, model.ErrUnknownMetric), convey.ShouldBeTrue)
		}
	})

	convey.Convey("Given a metric list in JSON", t, func() {
		var ms []model.TeamMetric
		err := json.Unmarshal([]byte(`["wins","n_times_achieved:3","draw_strength_by_wins"]`), &ms)

		convey.Convey("Then it decodes through the text unmarshaler", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(ms, convey.ShouldResemble, []model.TeamMetric{model.MetricWins, model.NTimesAchieved(3), model.MetricDrawStrengthByWins})
		})

		convey.Convey("Then unknown metrics are rejected", func() {
			convey.So(json.Unmarshal([]byte(`["speed"]`), &ms), convey.ShouldNotBeNil)
			var ps []model.PullupMetric
			convey.So(json.Unmarshal([]byte(`["random","lowest_ds_speaks"]`), &ps), convey.ShouldBeNil)
			convey.So(json.Unmarshal([]byte(`["lowest"]`), &ps), convey.ShouldNotBeNil)
			var ss []model.SpeakerMetric
			convey.So(json.Unmarshal([]byte(`["avg","stddev"]`), &ss), convey.ShouldBeNil)
		})
	})
}

func TestDrawStatus(t *testing.T) {
	convey.Convey("Given the draw lifecycle", t, func() {
		convey.So(model.DrawReleasedFull.AtLeast(model.DrawConfirmed), convey.ShouldBeTrue)
		convey.So(model.DrawDraft.AtLeast(model.DrawConfirmed), convey.ShouldBeFalse)
		convey.So(model.DrawReleasedTeamsOnly.Released(), convey.ShouldBeTrue)
		convey.So(model.DrawConfirmed.Released(), convey.ShouldBeFalse)
		convey.So(model.DrawStatus("X").Valid(), convey.ShouldBeFalse)
		convey.So(model.DrawDraft.CanMoveTo(model.DrawConfirmed), convey.ShouldBeTrue)
		convey.So(model.DrawDraft.CanMoveTo(model.DrawReleasedFull), convey.ShouldBeFalse)
		convey.So(model.DrawReleasedFull.CanMoveTo(model.DrawConfirmed), convey.ShouldBeTrue)
		convey.So(model.DrawConfirmed.CanMoveTo(model.DrawReleasedTeamsOnly), convey.ShouldBeTrue)
		convey.So(model.DrawNotStarted.CanMoveTo(model.DrawConfirmed), convey.ShouldBeFalse)
		convey.So(model.DrawConfirmed.CanMoveTo(model.DrawDraft), convey.ShouldBeFalse)
	})
}

func TestSettings(t *testing.T) {
	convey.Convey("Given the default settings", t, func() {
		s := model.DefaultSettings()
		convey.So(s.Validate(), convey.ShouldBeNil)
		convey.So(s.TeamsPerDebate(), convey.ShouldEqual, 4)
		convey.So(s.ReplyPosition(), convey.ShouldEqual, -1)

		convey.Convey("When checking scores on the substantive grid", func() {
			convey.So(s.CheckScore(75, false, "A"), convey.ShouldBeNil)
			convey.So(errors.Is(s.CheckScore(49, false, "A"), model.ErrInvalidScore), convey.ShouldBeTrue)
			convey.So(errors.Is(s.CheckScore(101, false, "A"), model.ErrInvalidScore), convey.ShouldBeTrue)
			convey.So(errors.Is(s.CheckScore(75.5, false, "A"), model.ErrInvalidScore), convey.ShouldBeTrue)
		})

		convey.Convey("When a half-point step and reply speeches are configured", func() {
			s.SubstantiveSpeechStep = 0.5
			s.ReplySpeakers = true
			convey.So(s.CheckScore(75.5, false, "A"), convey.ShouldBeNil)
			convey.So(s.CheckScore(37.5, true, "A"), convey.ShouldBeNil)
			convey.So(s.CheckScore(60, true, "A"), convey.ShouldNotBeNil)
			convey.So(s.ReplyPosition(), convey.ShouldEqual, 2)
			convey.So(s.SpeakersPerTeam(), convey.ShouldEqual, 3)
		})

		convey.Convey("When individual ballots are used with four teams", func() {
			s.PoolBallotSetup = model.BallotIndividual
			convey.So(errors.Is(s.Validate(), model.ErrInvalidSettings), convey.ShouldBeTrue)
		})

		convey.Convey("When the reply index is outside the substantive speeches", func() {
			idx := 2
			s.MaxSubstantiveSpeechIndexForReply = &idx
			convey.So(s.Validate(), convey.ShouldNotBeNil)
		})
	})

	convey.Convey("Given prelim and elim rounds", t, func() {
		s := model.DefaultSettings()
		prelim := &model.Round{Kind: model.RoundPrelim}
		elim := &model.Round{Kind: model.RoundElim}
		convey.So(s.RequiresSpeaks(prelim), convey.ShouldBeTrue)
		convey.So(s.RequiresSpeaks(elim), convey.ShouldBeFalse)
		convey.So(s.TotalPoints(prelim, 0), convey.ShouldEqual, 6)
		convey.So(s.TotalPoints(elim, 2), convey.ShouldEqual, 2)
	})
}

func TestPositionNames(t *testing.T) {
	convey.Convey("Given a BP tournament", t, func() {
		s := model.DefaultSettings()
		convey.So(model.SpeakerPositionName(&s, 0, 0, 0), convey.ShouldEqual, "PM")
		convey.So(model.SpeakerPositionName(&s, 1, 1, 1), convey.ShouldEqual, "OW")
		convey.So(model.SideName(&s, 0, 1, false), convey.ShouldEqual, "Closing Government")
	})

	convey.Convey("Given a two-team format with replies", t, func() {
		s := model.DefaultSettings()
		s.TeamsPerSide = 1
		s.SubstantiveSpeakers = 3
		s.ReplySpeakers = true
		convey.So(model.SpeakerPositionName(&s, 0, 0, 1), convey.ShouldEqual, "Gov 2")
		convey.So(model.SpeakerPositionName(&s, 1, 0, 3), convey.ShouldEqual, "Opp Reply")
	})
}

func TestRound2(t *testing.T) {
	convey.Convey("Given averages needing rounding", t, func() {
		convey.So(model.Round2(72.125), convey.ShouldEqual, 72.12)
		convey.So(model.Round2(72.375), convey.ShouldEqual, 72.38)
		convey.So(model.Round2(70), convey.ShouldEqual, 70)
	})
}
