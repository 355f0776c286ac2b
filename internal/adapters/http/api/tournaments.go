package api

import (
	"net/http"

	service "github.com/okian/tabroom/internal/app"
	"github.com/okian/tabroom/internal/domain/model"
)

type nameRequest struct {
	Name string `json:"name"`
}

type breakCategoryRequest struct {
	Name string `json:"name"`
	Size int    `json:"size"`
}

type teamResponse struct {
	Team     *model.Team     `json:"team"`
	Speakers []model.Speaker `json:"speakers"`
}

type availabilityRequest struct {
	Available bool `json:"available"`
}

func (s *Server) createTournament(w http.ResponseWriter, r *http.Request) error {
	var in service.TournamentInput
	if err := decode(r, &in); err != nil {
		return err
	}
	t, err := s.deps.CreateTournament(r.Context(), userFrom(r.Context()), in)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, t)
	return nil
}

func (s *Server) tournament(w http.ResponseWriter, r *http.Request) error {
	t, err := s.deps.Tournament(r.Context(), userFrom(r.Context()), param(r, "tid"))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, t)
	return nil
}

func (s *Server) participants(w http.ResponseWriter, r *http.Request) error {
	p, err := s.deps.Participants(r.Context(), userFrom(r.Context()), param(r, "tid"))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, p)
	return nil
}

func (s *Server) addInstitution(w http.ResponseWriter, r *http.Request) error {
	var in nameRequest
	if err := decode(r, &in); err != nil {
		return err
	}
	inst, err := s.deps.AddInstitution(r.Context(), userFrom(r.Context()), param(r, "tid"), in.Name)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, inst)
	return nil
}

func (s *Server) addTeam(w http.ResponseWriter, r *http.Request) error {
	var in service.TeamInput
	if err := decode(r, &in); err != nil {
		return err
	}
	team, speakers, err := s.deps.AddTeam(r.Context(), userFrom(r.Context()), param(r, "tid"), in)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, teamResponse{Team: team, Speakers: speakers})
	return nil
}

func (s *Server) addSpeaker(w http.ResponseWriter, r *http.Request) error {
	var in service.SpeakerInput
	if err := decode(r, &in); err != nil {
		return err
	}
	sp, err := s.deps.AddSpeaker(r.Context(), userFrom(r.Context()), param(r, "tid"), param(r, "teamID"), in)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, sp)
	return nil
}

func (s *Server) addJudge(w http.ResponseWriter, r *http.Request) error {
	var in service.JudgeInput
	if err := decode(r, &in); err != nil {
		return err
	}
	j, err := s.deps.AddJudge(r.Context(), userFrom(r.Context()), param(r, "tid"), in)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, j)
	return nil
}

func (s *Server) addBreakCategory(w http.ResponseWriter, r *http.Request) error {
	var in breakCategoryRequest
	if err := decode(r, &in); err != nil {
		return err
	}
	bc, err := s.deps.AddBreakCategory(r.Context(), userFrom(r.Context()), param(r, "tid"), in.Name, in.Size)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, bc)
	return nil
}

func (s *Server) rounds(w http.ResponseWriter, r *http.Request) error {
	rounds, err := s.deps.Rounds(r.Context(), userFrom(r.Context()), param(r, "tid"))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, rounds)
	return nil
}

func (s *Server) createRound(w http.ResponseWriter, r *http.Request) error {
	var in service.RoundInput
	if err := decode(r, &in); err != nil {
		return err
	}
	round, err := s.deps.CreateRound(r.Context(), userFrom(r.Context()), param(r, "tid"), in)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, round)
	return nil
}

func (s *Server) addMotion(w http.ResponseWriter, r *http.Request) error {
	var in service.MotionInput
	if err := decode(r, &in); err != nil {
		return err
	}
	m, err := s.deps.AddMotion(r.Context(), userFrom(r.Context()), param(r, "tid"), param(r, "rid"), in)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, m)
	return nil
}

func (s *Server) availability(w http.ResponseWriter, r *http.Request) error {
	a, err := s.deps.RoundAvailability(r.Context(), userFrom(r.Context()), param(r, "tid"), param(r, "rid"))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, a)
	return nil
}

func (s *Server) teamAvailability(w http.ResponseWriter, r *http.Request) error {
	in := availabilityRequest{Available: true}
	if err := decode(r, &in); err != nil {
		return err
	}
	err := s.deps.SetTeamAvailability(r.Context(), userFrom(r.Context()), param(r, "tid"), param(r, "rid"), param(r, "teamID"), in.Available)
	if err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (s *Server) judgeAvailability(w http.ResponseWriter, r *http.Request) error {
	in := availabilityRequest{Available: true}
	if err := decode(r, &in); err != nil {
		return err
	}
	err := s.deps.SetJudgeAvailability(r.Context(), userFrom(r.Context()), param(r, "tid"), param(r, "rid"), param(r, "judgeID"), in.Available)
	if err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}
