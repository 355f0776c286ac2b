package api

import (
	"net/http"

	"github.com/okian/tabroom/internal/domain/model"
)

type createDrawRequest struct {
	Force bool `json:"force"`
}

type setReleasedRequest struct {
	Status model.DrawStatus `json:"status"`
}

type assignJudgeRequest struct {
	JudgeID string          `json:"judge_id"`
	Role    model.JudgeRole `json:"role"`
}

// createDraw answers 202 when the generator outlives the request's wait.
func (s *Server) createDraw(w http.ResponseWriter, r *http.Request) error {
	var in createDrawRequest
	if err := decode(r, &in); err != nil {
		return err
	}
	res, err := s.deps.CreateDraw(r.Context(), userFrom(r.Context()), param(r, "tid"), param(r, "rid"), in.Force)
	if err != nil {
		return err
	}
	status := http.StatusOK
	if res.Running {
		status = http.StatusAccepted
	}
	writeJSON(w, status, res)
	return nil
}

func (s *Server) confirmDraw(w http.ResponseWriter, r *http.Request) error {
	round, err := s.deps.ConfirmDraw(r.Context(), userFrom(r.Context()), param(r, "tid"), param(r, "rid"))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, round)
	return nil
}

func (s *Server) setReleased(w http.ResponseWriter, r *http.Request) error {
	var in setReleasedRequest
	if err := decode(r, &in); err != nil {
		return err
	}
	round, err := s.deps.SetReleased(r.Context(), userFrom(r.Context()), param(r, "tid"), param(r, "rid"), in.Status)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, round)
	return nil
}

func (s *Server) roundDraw(w http.ResponseWriter, r *http.Request) error {
	view, err := s.deps.RoundDraw(r.Context(), userFrom(r.Context()), param(r, "tid"), param(r, "rid"))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, view)
	return nil
}

func (s *Server) assignJudge(w http.ResponseWriter, r *http.Request) error {
	var in assignJudgeRequest
	if err := decode(r, &in); err != nil {
		return err
	}
	dj, err := s.deps.AssignJudge(r.Context(), userFrom(r.Context()), param(r, "tid"), param(r, "did"), in.JudgeID, in.Role)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, dj)
	return nil
}
