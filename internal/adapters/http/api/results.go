package api

import (
	"bytes"
	"net/http"

	"github.com/okian/tabroom/internal/domain/ballots"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type completeRequest struct {
	Completed bool `json:"completed"`
}

// submitBallot accepts a judge's ballot. A signed-in administrator may
// submit on the judge's behalf and is recorded as the editor.
func (s *Server) submitBallot(w http.ResponseWriter, r *http.Request) error {
	var sub ballots.Submission
	if err := decode(r, &sub); err != nil {
		return err
	}
	out, err := s.deps.SubmitBallot(r.Context(), userFrom(r.Context()), param(r, "tid"), param(r, "url"), param(r, "rid"), sub)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, out)
	return nil
}

func (s *Server) debateBallots(w http.ResponseWriter, r *http.Request) error {
	out, err := s.deps.DebateBallots(r.Context(), userFrom(r.Context()), param(r, "tid"), param(r, "did"))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, out)
	return nil
}

func (s *Server) aggregateDebate(w http.ResponseWriter, r *http.Request) error {
	out, err := s.deps.AggregateDebate(r.Context(), userFrom(r.Context()), param(r, "tid"), param(r, "did"))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, out)
	return nil
}

// completeRound marks a round complete; {"completed": false} reopens it.
func (s *Server) completeRound(w http.ResponseWriter, r *http.Request) error {
	in := completeRequest{Completed: true}
	if err := decode(r, &in); err != nil {
		return err
	}
	round, err := s.deps.CompleteRound(r.Context(), userFrom(r.Context()), param(r, "tid"), param(r, "rid"), in.Completed)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, round)
	return nil
}

func (s *Server) publishResults(w http.ResponseWriter, r *http.Request) error {
	round, err := s.deps.PublishResults(r.Context(), userFrom(r.Context()), param(r, "tid"), param(r, "rid"))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, round)
	return nil
}

func (s *Server) teamStandings(w http.ResponseWriter, r *http.Request) error {
	t, err := s.deps.TeamStandings(r.Context(), userFrom(r.Context()), param(r, "tid"))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, t)
	return nil
}

func (s *Server) speakerStandings(w http.ResponseWriter, r *http.Request) error {
	t, err := s.deps.SpeakerStandings(r.Context(), userFrom(r.Context()), param(r, "tid"))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, t)
	return nil
}

// exportStandings buffers the workbook so a failure still gets a JSON error.
func (s *Server) exportStandings(w http.ResponseWriter, r *http.Request) error {
	var buf bytes.Buffer
	if err := s.deps.ExportStandings(r.Context(), userFrom(r.Context()), param(r, "tid"), &buf); err != nil {
		return err
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="standings.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
	return nil
}

func (s *Server) snapshots(w http.ResponseWriter, r *http.Request) error {
	limit, err := intQuery(r, "limit", 0)
	if err != nil {
		return err
	}
	out, err := s.deps.Snapshots(r.Context(), userFrom(r.Context()), param(r, "tid"), limit)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, out)
	return nil
}

func (s *Server) snapshot(w http.ResponseWriter, r *http.Request) error {
	out, err := s.deps.Snapshot(r.Context(), userFrom(r.Context()), param(r, "tid"), param(r, "sid"))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, out)
	return nil
}
