package simulate

import (
	"fmt"
	"strings"

	"github.com/brianvoe/gofakeit/v7"
	service "github.com/okian/tabroom/internal/app"
	"github.com/okian/tabroom/internal/domain/ballots"
	"github.com/okian/tabroom/internal/domain/model"
)

// Room shape of the default British Parliamentary format.
const (
	teamsPerRoom    = 4
	speakersPerTeam = 2
	baseScoreMin    = 68
	baseScoreMax    = 76
)

// generator produces deterministic names and scores from a seed.
type generator struct {
	faker *gofakeit.Faker
}

func newGenerator(seed int64) *generator {
	return &generator{faker: gofakeit.New(uint64(seed))}
}

func (g *generator) team(i int) service.TeamInput {
	in := service.TeamInput{Name: fmt.Sprintf("%s %d", g.faker.Company(), i+1)}
	for range speakersPerTeam {
		in.Speakers = append(in.Speakers, service.SpeakerInput{Name: g.faker.Name(), Email: g.faker.Email()})
	}
	return in
}

func (g *generator) judge() service.JudgeInput {
	return service.JudgeInput{Name: g.faker.Name()}
}

func (g *generator) motion() service.MotionInput {
	return service.MotionInput{Text: fmt.Sprintf("This House would ban %s %s", strings.ToLower(g.faker.Adjective()), strings.ToLower(g.faker.Noun()))}
}

// sheet fills a consensus ballot for d. Seats get a shuffled rank and every
// speaker on a seat scores the same, so team totals never tie.
func (g *generator) sheet(d service.DebateView, motionID string, speakers map[string][]model.Speaker) ballots.Submission {
	ranks := make([]int, len(d.Teams))
	for i := range ranks {
		ranks[i] = i
	}
	g.faker.ShuffleInts(ranks)
	base := g.faker.IntRange(baseScoreMin, baseScoreMax)

	sub := ballots.Submission{MotionID: motionID}
	for i, seat := range d.Teams {
		te := ballots.TeamEntry{Side: seat.Side, Seq: seat.Seq}
		for _, sp := range speakers[seat.TeamID] {
			te.Speeches = append(te.Speeches, ballots.Speech{SpeakerID: sp.ID, Score: float64(base + 2*ranks[i])})
		}
		sub.Teams = append(sub.Teams, te)
	}
	return sub
}
