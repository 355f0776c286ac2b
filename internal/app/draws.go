package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/okian/tabroom/internal/adapters/broadcast"
	"github.com/okian/tabroom/internal/adapters/mq/queue"
	"github.com/okian/tabroom/internal/adapters/repository"
	"github.com/okian/tabroom/internal/domain/access"
	"github.com/okian/tabroom/internal/domain/drawgen"
	"github.com/okian/tabroom/internal/domain/model"
	"github.com/okian/tabroom/internal/domain/standings"
	"github.com/okian/tabroom/internal/domain/ticket"
	"github.com/okian/tabroom/pkg/logger"
	"github.com/okian/tabroom/pkg/metrics"
	"github.com/uptrace/bun"
)

// DrawResult reports a draw attempt. Running means the generator had not
// finished within the wait; the attempt still commits or fails on its own.
type DrawResult struct {
	Running        bool        `json:"running"`
	Draw           *model.Draw `json:"draw,omitempty"`
	Rooms          int         `json:"rooms"`
	PullupDistance int         `json:"pullup_distance"`
	PositionCost   int         `json:"position_cost"`
	Seed           int64       `json:"seed"`
}

// DrawView is a round's current pairing as a viewer may see it.
type DrawView struct {
	Round   model.Round  `json:"round"`
	Draw    *model.Draw  `json:"draw"`
	Debates []DebateView `json:"debates"`
}

// DebateView is one room of a DrawView.
type DebateView struct {
	model.Debate
	Teams  []model.DebateTeam  `json:"teams"`
	Judges []model.DebateJudge `json:"judges,omitempty"`
}

// drawAttempt is a held ticket plus what the attempt was asked to do.
type drawAttempt struct {
	tournamentID string
	round        model.Round
	ticket       *model.RoundTicket
	force        bool
}

// drawPlan is a generated draw together with the inputs it was generated from.
type drawPlan struct {
	draw      *drawgen.Draw
	available []string
	solve     time.Duration
}

// CreateDraw generates and commits a draft draw for a round. Without force
// it fails while another attempt holds the round's ticket or when the round
// already has debates; with force it preempts the holder and replaces them.
func (s *Service) CreateDraw(ctx context.Context, user *model.User, tournamentID, roundID string, force bool) (*DrawResult, error) {
	var result *DrawResult
	err := s.withTelemetry(ctx, "create_draw", tournamentID, func(ctx context.Context) error {
		att, err := s.acquireDraw(ctx, user, tournamentID, roundID, force)
		if err != nil {
			return err
		}

		var out *DrawResult
		job := queue.NewJob("draw "+roundID, func(ctx context.Context) error {
			res, err := s.runDraw(ctx, att)
			if err != nil {
				s.logger.Warn(ctx, "draw attempt failed",
					logger.String("round_id", roundID),
					logger.Int("ticket_seq", att.ticket.Seq),
					logger.Error(err),
				)
				return err
			}
			out = res
			return nil
		}).WithDrop(func(err error) {
			// A job dropped from the queue never reaches runDraw.
			s.logger.Warn(ctx, "queued draw dropped",
				logger.String("round_id", roundID),
				logger.Int("ticket_seq", att.ticket.Seq),
				logger.Error(err),
			)
			s.releaseTicket(ctx, att.ticket)
		})
		if err := s.submit(ctx, job); err != nil {
			s.releaseTicket(ctx, att.ticket)
			return err
		}

		timer := time.NewTimer(s.drawWait)
		defer timer.Stop()
		select {
		case err := <-job.Done():
			if err != nil {
				return err
			}
			result = out
		case <-timer.C:
			s.logger.Info(ctx, "draw still running", logger.String("round_id", roundID))
			result = &DrawResult{Running: true}
		case <-ctx.Done():
			return ctx.Err()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// submit hands job to the draw worker pool.
func (s *Service) submit(ctx context.Context, job *queue.Job) error {
	s.mu.Lock()
	pool, started := s.pool, s.started
	s.mu.Unlock()
	if !started {
		return fmt.Errorf("%w: draw workers are not running", ErrInternal)
	}
	return pool.SubmitJob(ctx, job)
}

// acquireDraw takes the round's draw ticket.
func (s *Service) acquireDraw(ctx context.Context, user *model.User, tournamentID, roundID string, force bool) (*drawAttempt, error) {
	att := &drawAttempt{tournamentID: tournamentID, force: force}
	err := s.store.RunInTx(ctx, "acquire draw ticket", func(ctx context.Context, tx bun.Tx) error {
		if _, _, err := s.authorize(ctx, tx, user, tournamentID, access.Admin); err != nil {
			return err
		}
		round, err := repository.Round(ctx, tx, tournamentID, roundID)
		if err != nil {
			return err
		}
		if round.Completed {
			return badRequest("round %s is completed", round.Name)
		}
		if !force {
			n, err := repository.CountDebates(ctx, tx, roundID)
			if err != nil {
				return err
			}
			if n > 0 {
				return fmt.Errorf("%w: round %s already has a draw", ErrConflict, round.Name)
			}
		}
		att.round = *round

		rows, err := repository.Tickets(ctx, tx, roundID, model.TicketKindDraw)
		if err != nil {
			return err
		}
		grant, err := ticket.Acquire(rows, force)
		if err != nil {
			return err
		}
		if grant.CollectReleased {
			if err := repository.CollectReleasedTickets(ctx, tx, roundID, model.TicketKindDraw); err != nil {
				return err
			}
		}
		att.ticket = &model.RoundTicket{
			ID:           model.NewID(),
			TournamentID: tournamentID,
			RoundID:      roundID,
			Seq:          grant.Seq,
			Kind:         model.TicketKindDraw,
			AcquiredAt:   s.store.Now(),
		}
		return repository.InsertTicket(ctx, tx, att.ticket)
	})
	switch {
	case err == nil:
		metrics.RecordTicketAcquire("ok")
	case errors.Is(err, ticket.ErrAlreadyInProgress):
		metrics.RecordTicketAcquire("in_progress")
	case errors.Is(err, repository.ErrDuplicate):
		// A concurrent attempt inserted the same seq first.
		metrics.RecordTicketAcquire("in_progress")
		err = fmt.Errorf("%w: %w", ticket.ErrAlreadyInProgress, err)
	default:
		metrics.RecordTicketAcquire("error")
	}
	if err != nil {
		return nil, err
	}
	s.logger.Debug(ctx, "draw ticket acquired",
		logger.String("round_id", roundID),
		logger.Int("seq", att.ticket.Seq),
		logger.Bool("force", force),
	)
	return att, nil
}

// runDraw generates and commits the draw of a held ticket. The ticket is
// released on every path.
func (s *Service) runDraw(ctx context.Context, att *drawAttempt) (*DrawResult, error) {
	plan, err := s.planDraw(ctx, att)
	if err != nil {
		metrics.RecordDrawGeneration(drawOutcome(err))
		s.releaseTicket(ctx, att.ticket)
		return nil, err
	}
	d, err := s.commitDraw(ctx, att, plan)
	if err != nil {
		metrics.RecordDrawGeneration(drawOutcome(err))
		s.releaseTicket(ctx, att.ticket)
		return nil, err
	}
	metrics.RecordDrawGeneration("ok")
	pullups := 0
	for _, r := range plan.draw.Rooms {
		pullups += len(r.PulledUp)
	}
	metrics.RecordDrawShape(len(plan.draw.Rooms), pullups)
	s.publish(ctx, broadcast.Draw(att.tournamentID, att.round.ID))
	s.logger.Info(ctx, "draw committed",
		logger.String("round_id", att.round.ID),
		logger.Int("version", d.Version),
		logger.Int("rooms", len(plan.draw.Rooms)),
		logger.Int("pullup_distance", plan.draw.PullupDistance),
		logger.Duration("solve", plan.solve),
	)
	return &DrawResult{
		Draw:           d,
		Rooms:          len(plan.draw.Rooms),
		PullupDistance: plan.draw.PullupDistance,
		PositionCost:   plan.draw.PositionCost,
		Seed:           plan.draw.Seed,
	}, nil
}

func drawOutcome(err error) string {
	switch {
	case errors.Is(err, ticket.ErrExpired), errors.Is(err, ticket.ErrNotHeld):
		return "expired"
	case errors.Is(err, drawgen.ErrInvalidTeamCount):
		return "invalid_team_count"
	case errors.Is(err, drawgen.ErrInvalidConfiguration), errors.Is(err, standings.ErrInvalidConfiguration):
		return "invalid_configuration"
	case errors.Is(err, drawgen.ErrPanic):
		return "panic"
	case errors.Is(err, ErrConflict):
		return "conflict"
	}
	return "error"
}

// planDraw reads a consistent view of the tab and runs the generator on it.
func (s *Service) planDraw(ctx context.Context, att *drawAttempt) (*drawPlan, error) {
	var in *drawgen.Input
	plan := &drawPlan{}
	err := s.store.RunInTx(ctx, "prepare draw", func(ctx context.Context, tx bun.Tx) error {
		t, err := repository.Tournament(ctx, tx, att.tournamentID)
		if err != nil {
			return err
		}
		tab, err := repository.LoadTab(ctx, tx, t)
		if err != nil {
			return err
		}
		if plan.available, err = drawTeams(ctx, tx, tab, &att.round); err != nil {
			return err
		}
		in, err = drawInput(tab, &att.round, plan.available)
		return err
	})
	if err != nil {
		return nil, err
	}

	gen := drawgen.New(drawgen.WithSeed(s.drawSeed))
	start := time.Now()
	d, err := gen.Generate(in)
	plan.solve = time.Since(start)
	metrics.RecordDrawSolveLatency(float64(plan.solve.Milliseconds()))
	if err != nil {
		return nil, err
	}
	if err := drawgen.Check(in, d); err != nil {
		return nil, fmt.Errorf("%w: generated draw failed its checks: %w", ErrInternal, err)
	}
	plan.draw = d
	return plan, nil
}

// drawInput turns the standings and history before round into generator input.
func drawInput(tab *standings.Tab, round *model.Round, available []string) (*drawgen.Input, error) {
	ts, err := standings.ComputeTeams(tab)
	if err != nil {
		return nil, err
	}
	h := standings.HistoryBefore(tab, round.Seq)
	seed := seeds(ts)
	byID := make(map[string]model.Team, len(tab.Teams))
	for _, t := range tab.Teams {
		byID[t.ID] = t
	}

	in := &drawgen.Input{
		Settings: tab.Settings,
		Elim:     round.IsElim(),
		Meetings: h.Meetings,
	}
	for _, id := range available {
		team, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: available team %s is unknown", ErrInternal, id)
		}
		row, _ := ts.Row(id)
		dt := drawgen.Team{
			ID:                 id,
			Points:             row.Points,
			Rank:               row.Rank,
			Pullups:            h.Pullups[id],
			Seed:               seed[id],
			DrawStrengthByRank: row.DrawStrengthByRank,
			AverageSpeaks:      row.AverageSpeaks,
			History:            h.Positions[id],
		}
		if team.InstitutionID != nil {
			dt.InstitutionID = *team.InstitutionID
		}
		in.Teams = append(in.Teams, dt)
	}
	return in, nil
}

// commitDraw persists plan if att still holds the newest ticket and the
// available teams are unchanged.
func (s *Service) commitDraw(ctx context.Context, att *drawAttempt, plan *drawPlan) (*model.Draw, error) {
	var d *model.Draw
	err := s.store.RunInTx(ctx, "commit draw", func(ctx context.Context, tx bun.Tx) error {
		rows, err := repository.Tickets(ctx, tx, att.round.ID, model.TicketKindDraw)
		if err != nil {
			return err
		}
		if err := ticket.CheckCommit(rows, att.ticket); err != nil {
			return err
		}

		var tab *standings.Tab
		if att.round.IsElim() {
			t, err := repository.Tournament(ctx, tx, att.tournamentID)
			if err != nil {
				return err
			}
			if tab, err = repository.LoadTab(ctx, tx, t); err != nil {
				return err
			}
		}
		available, err := drawTeams(ctx, tx, tab, &att.round)
		if err != nil {
			return err
		}
		if !sameSet(available, plan.available) {
			return fmt.Errorf("%w: the teams of round %s changed while the draw was generated", ErrConflict, att.round.Name)
		}

		round, err := repository.Round(ctx, tx, att.tournamentID, att.round.ID)
		if err != nil {
			return err
		}
		n, err := repository.CountDebates(ctx, tx, round.ID)
		if err != nil {
			return err
		}
		if n > 0 {
			if !att.force {
				return fmt.Errorf("%w: round %s already has a draw", ErrConflict, round.Name)
			}
			if err := repository.ClearRoundDebates(ctx, tx, round.ID); err != nil {
				return err
			}
		}

		version, err := repository.NextDrawVersion(ctx, tx, round.ID)
		if err != nil {
			return err
		}
		d = &model.Draw{
			ID:           model.NewID(),
			TournamentID: att.tournamentID,
			RoundID:      round.ID,
			Status:       model.DrawDraft,
			Version:      version,
			CreatedAt:    s.store.Now(),
		}
		debates, seats := drawRows(d, plan.draw)
		if err := repository.SaveDraw(ctx, tx, d, debates, seats); err != nil {
			return err
		}

		round.DrawStatus = model.DrawDraft
		round.DrawReleasedAt = nil
		if err := repository.UpdateRound(ctx, tx, round, "draw_status", "draw_released_at"); err != nil {
			return err
		}
		if err := repository.ReleaseTicket(ctx, tx, att.ticket.ID); err != nil {
			return err
		}
		_, err = s.store.TakeSnapshot(ctx, tx, att.tournamentID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

// drawRows numbers the generated rooms and seats their teams.
func drawRows(d *model.Draw, gen *drawgen.Draw) ([]model.Debate, []model.DebateTeam) {
	debates := make([]model.Debate, 0, len(gen.Rooms))
	var seats []model.DebateTeam
	for i, room := range gen.Rooms {
		debate := model.Debate{
			ID:           model.NewID(),
			TournamentID: d.TournamentID,
			DrawID:       d.ID,
			RoundID:      d.RoundID,
			Number:       i + 1,
			Status:       model.DebateIncomplete,
		}
		debates = append(debates, debate)
		for side, teams := range [][]string{room.Props, room.Opps} {
			for seq, id := range teams {
				seats = append(seats, model.DebateTeam{
					ID:           model.NewID(),
					TournamentID: d.TournamentID,
					DebateID:     debate.ID,
					TeamID:       id,
					Side:         side,
					Seq:          seq,
					PulledUp:     slices.Contains(room.PulledUp, id),
				})
			}
		}
	}
	return debates, seats
}

// releaseTicket marks a failed attempt's ticket released in its own
// transaction so the round can be drawn again.
func (s *Service) releaseTicket(ctx context.Context, t *model.RoundTicket) {
	err := s.store.RunInTx(context.WithoutCancel(ctx), "release draw ticket", func(ctx context.Context, tx bun.Tx) error {
		return repository.ReleaseTicket(ctx, tx, t.ID)
	})
	if err != nil {
		s.logger.Error(ctx, "failed to release draw ticket",
			logger.String("ticket_id", t.ID),
			logger.Error(err),
		)
	}
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	x, y := slices.Clone(a), slices.Clone(b)
	slices.Sort(x)
	slices.Sort(y)
	return slices.Equal(x, y)
}

// ConfirmDraw moves a draft draw to confirmed.
func (s *Service) ConfirmDraw(ctx context.Context, user *model.User, tournamentID, roundID string) (*model.Round, error) {
	return s.moveDraw(ctx, "confirm_draw", user, tournamentID, roundID, model.DrawConfirmed, func(r *model.Round) error {
		if r.DrawStatus != model.DrawDraft {
			return badRequest("only a draft draw can be confirmed; round %s is %s", r.Name, r.DrawStatus)
		}
		return nil
	})
}

// SetReleased moves a confirmed draw between confirmed, released to teams
// only and fully released.
func (s *Service) SetReleased(ctx context.Context, user *model.User, tournamentID, roundID string, to model.DrawStatus) (*model.Round, error) {
	return s.moveDraw(ctx, "set_released", user, tournamentID, roundID, to, func(r *model.Round) error {
		switch to {
		case model.DrawConfirmed, model.DrawReleasedTeamsOnly, model.DrawReleasedFull:
		default:
			return badRequest("draw status %q cannot be set here", to)
		}
		if !r.DrawStatus.AtLeast(model.DrawConfirmed) {
			return badRequest("round %s is %s; confirm its draw first", r.Name, r.DrawStatus)
		}
		return nil
	})
}

func (s *Service) moveDraw(ctx context.Context, op string, user *model.User, tournamentID, roundID string, to model.DrawStatus, check func(*model.Round) error) (*model.Round, error) {
	var round *model.Round
	err := s.withTelemetry(ctx, op, tournamentID, func(ctx context.Context) error {
		return s.mutate(ctx, op, user, tournamentID, func(ctx context.Context, tx bun.Tx, _ *model.Tournament) error {
			var err error
			if round, err = repository.Round(ctx, tx, tournamentID, roundID); err != nil {
				return err
			}
			if err := check(round); err != nil {
				return err
			}
			if !round.DrawStatus.CanMoveTo(to) {
				return badRequest("draw of round %s cannot move from %s to %s", round.Name, round.DrawStatus, to)
			}
			rd, err := repository.LoadRoundDraw(ctx, tx, roundID)
			if err != nil {
				return err
			}
			if to == model.DrawReleasedFull {
				if problems := chairProblems(rd); len(problems) > 0 {
					return &ValidationError{Reasons: problems}
				}
			}

			round.DrawStatus = to
			if !to.Released() {
				round.DrawReleasedAt = nil
			} else if round.DrawReleasedAt == nil {
				now := s.store.Now()
				round.DrawReleasedAt = &now
			}
			if err := repository.UpdateRound(ctx, tx, round, "draw_status", "draw_released_at"); err != nil {
				return err
			}
			rd.Draw.Status = round.DrawStatus
			rd.Draw.ReleasedAt = round.DrawReleasedAt
			return repository.UpdateDraw(ctx, tx, rd.Draw, "status", "released_at")
		})
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, broadcast.Draw(tournamentID, roundID))
	return round, nil
}

// chairProblems names every debate without exactly one chair.
func chairProblems(rd *repository.RoundDraw) []string {
	chairs := make(map[string]int, len(rd.Debates))
	for _, j := range rd.Judges {
		if j.Role == model.RoleChair {
			chairs[j.DebateID]++
		}
	}
	var out []string
	for _, d := range rd.Debates {
		if n := chairs[d.ID]; n != 1 {
			out = append(out, fmt.Sprintf("debate %d has %d chairs", d.Number, n))
		}
	}
	return out
}

// AssignJudge seats a judge on a debate. A new chair demotes the previous
// chair to panellist.
func (s *Service) AssignJudge(ctx context.Context, user *model.User, tournamentID, debateID, judgeID string, role model.JudgeRole) (*model.DebateJudge, error) {
	row := &model.DebateJudge{
		ID:           model.NewID(),
		TournamentID: tournamentID,
		DebateID:     debateID,
		JudgeID:      judgeID,
		Role:         role,
	}
	var roundID string
	err := s.withTelemetry(ctx, "assign_judge", tournamentID, func(ctx context.Context) error {
		switch role {
		case model.RoleChair, model.RolePanelist, model.RoleTrainee:
		default:
			return badRequest("unknown judge role %q", role)
		}
		return s.mutate(ctx, "assign judge", user, tournamentID, func(ctx context.Context, tx bun.Tx, t *model.Tournament) error {
			debate, err := repository.Debate(ctx, tx, tournamentID, debateID)
			if err != nil {
				return err
			}
			roundID = debate.RoundID
			if _, err := repository.Judge(ctx, tx, tournamentID, judgeID); err != nil {
				return err
			}
			other, err := repository.DebateOfJudge(ctx, tx, debate.RoundID, judgeID)
			switch {
			case err == nil && other.ID != debateID:
				return badRequest("judge already sits on debate %d of this round", other.Number)
			case err != nil && !errors.Is(err, repository.ErrNotFound):
				return err
			}
			if role == model.RoleChair {
				panel, err := repository.DebatePanel(ctx, tx, debateID)
				if err != nil {
					return err
				}
				for _, j := range panel {
					if j.Role != model.RoleChair || j.JudgeID == judgeID {
						continue
					}
					j.ID = model.NewID()
					j.Role = model.RolePanelist
					if err := repository.AssignJudge(ctx, tx, &j); err != nil {
						return err
					}
				}
			}
			if err := repository.AssignJudge(ctx, tx, row); err != nil {
				return err
			}
			// The voting panel changed, so ballots already in may no longer
			// form a complete set.
			round, err := repository.Round(ctx, tx, tournamentID, debate.RoundID)
			if err != nil {
				return err
			}
			_, err = s.settleDebate(ctx, tx, &t.Settings, round, debate)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, broadcast.Draw(tournamentID, roundID))
	return row, nil
}

// RoundDraw returns the current pairing of a round. Unreleased draws are
// visible to members only; a teams-only release hides the panels.
func (s *Service) RoundDraw(ctx context.Context, user *model.User, tournamentID, roundID string) (*DrawView, error) {
	var view *DrawView
	err := s.withTelemetry(ctx, "round_draw", tournamentID, func(ctx context.Context) error {
		return s.view(ctx, "round draw", user, tournamentID, access.Read, func(ctx context.Context, tx bun.Tx, _ *model.Tournament, g access.Grant) error {
			round, err := repository.Round(ctx, tx, tournamentID, roundID)
			if err != nil {
				return err
			}
			if !round.DrawStatus.Released() && !g.Member {
				if g.UserID == "" {
					return access.ErrUnauthenticated
				}
				return access.ErrForbidden
			}
			rd, err := repository.LoadRoundDraw(ctx, tx, roundID)
			if err != nil {
				return err
			}
			showJudges := g.Member || round.DrawStatus == model.DrawReleasedFull
			view = buildDrawView(round, rd, showJudges)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

func buildDrawView(round *model.Round, rd *repository.RoundDraw, showJudges bool) *DrawView {
	view := &DrawView{Round: *round, Draw: rd.Draw}
	at := make(map[string]int, len(rd.Debates))
	for i, d := range rd.Debates {
		at[d.ID] = i
		view.Debates = append(view.Debates, DebateView{Debate: d})
	}
	for _, t := range rd.Teams {
		if i, ok := at[t.DebateID]; ok {
			view.Debates[i].Teams = append(view.Debates[i].Teams, t)
		}
	}
	if showJudges {
		for _, j := range rd.Judges {
			if i, ok := at[j.DebateID]; ok {
				view.Debates[i].Judges = append(view.Debates[i].Judges, j)
			}
		}
	}
	return view
}
