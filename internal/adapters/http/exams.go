package httpadapter

import (
	"context"
	"errors"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/oapi-codegen/runtime"

	"gradekey/internal/adapters/parquet"
	"gradekey/internal/domain"
	"gradekey/internal/ports"
	"gradekey/internal/services/keys"
	"gradekey/internal/workers/regrader"
)

type createExamRequest struct {
	ID         string            `json:"id,omitempty"`
	Title      string            `json:"title"`
	GradingKey domain.GradingKey `json:"gradingKey"`
}

func (s *Server) postExam(w http.ResponseWriter, r *http.Request) error {
	var req createExamRequest
	if err := decode(r, &req); err != nil {
		return err
	}
	if req.Title == "" {
		return badRequest("title is required")
	}
	if v := s.engine.ValidateGradingKey(req.GradingKey); !v.Valid {
		writeJSON(w, http.StatusUnprocessableEntity, v)
		return nil
	}
	exam := domain.Exam{ID: req.ID, Title: req.Title, GradingKey: req.GradingKey}
	if exam.ID == "" {
		exam.ID = s.newID()
	}
	if exam.GradingKey.ID == "" {
		exam.GradingKey.ID = s.newID()
	}
	if exam.GradingKey.Version == 0 {
		exam.GradingKey.Version = 1
	}
	if err := s.exams.Create(r.Context(), exam); err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, exam)
	return nil
}

func (s *Server) getExam(w http.ResponseWriter, r *http.Request) error {
	exam, err := s.findExam(r)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, exam)
	return nil
}

type boundariesRequest struct {
	GradeBoundaries []domain.GradeBoundary `json:"gradeBoundaries"`
	Reason          *string                `json:"reason,omitempty"`
	ChangedBy       *string                `json:"changedBy,omitempty"`
}

type previewResponse struct {
	Validation keys.Validation  `json:"validation"`
	Impact     keys.BatchResult `json:"impact"`
}

// postGradingKeyPreview reports the grade changes a new boundary set would
// cause without recording or persisting anything.
func (s *Server) postGradingKeyPreview(w http.ResponseWriter, r *http.Request) error {
	exam, err := s.findExam(r)
	if err != nil {
		return err
	}
	var req boundariesRequest
	if err := decode(r, &req); err != nil {
		return err
	}
	proposed := exam.GradingKey.Clone()
	proposed.GradeBoundaries = req.GradeBoundaries
	entries, err := s.entries.ListByExam(r.Context(), exam.ID)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, previewResponse{
		Validation: s.engine.ValidateGradingKey(proposed),
		Impact:     s.engine.RecalculateGradesForBatch(entries, exam.GradingKey, proposed),
	})
	return nil
}

type modifyKeyResponse struct {
	GradingKey domain.GradingKey `json:"gradingKey"`
	Impact     keys.BatchResult  `json:"impact"`
	JobID      string            `json:"jobId"`
	JobStatus  string            `json:"jobStatus"`
}

// putGradingKey replaces the boundaries of an exam's key after correction:
// the change is audited, persisted and a regrade job is queued. With
// ?wait=true the regrade runs inline before responding.
func (s *Server) putGradingKey(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	exam, err := s.findExam(r)
	if err != nil {
		return err
	}
	var wait *bool
	if err := runtime.BindQueryParameter("form", true, false, "wait", r.URL.Query(), &wait); err != nil {
		return badRequest("invalid format for parameter wait: %v", err)
	}
	var timeout *int
	if err := runtime.BindQueryParameter("form", true, false, "timeout", r.URL.Query(), &timeout); err != nil {
		return badRequest("invalid format for parameter timeout: %v", err)
	}
	var req boundariesRequest
	if err := decode(r, &req); err != nil {
		return err
	}

	proposed := exam.GradingKey.Clone()
	proposed.GradeBoundaries = req.GradeBoundaries
	if v := s.engine.ValidateGradingKey(proposed); !v.Valid {
		writeJSON(w, http.StatusUnprocessableEntity, v)
		return nil
	}
	entries, err := s.entries.ListByExam(ctx, exam.ID)
	if err != nil {
		return err
	}
	impact := s.engine.RecalculateGradesForBatch(entries, exam.GradingKey, proposed)

	newKey, err := s.engine.ModifyExamGradingKey(ctx, s.exams, exam.ID, exam.GradingKey, req.GradeBoundaries, req.Reason, req.ChangedBy)
	if err != nil {
		return err
	}
	jobID, err := s.jobs.Enqueue(ctx, exam.ID)
	if err != nil {
		return err
	}

	resp := modifyKeyResponse{GradingKey: newKey, Impact: impact, JobID: jobID, JobStatus: ports.JobQueued}
	if wait == nil || !*wait {
		writeJSON(w, http.StatusAccepted, resp)
		return nil
	}

	secs := 30
	if timeout != nil && *timeout > 0 {
		secs = *timeout
	}
	ctx2, cancel := context.WithTimeout(ctx, time.Duration(secs)*time.Second)
	defer cancel()
	code := http.StatusOK
	err = regrader.ProcessInline(ctx2, s.jobs, s.processor, ports.RegradeJob{ID: jobID, ExamID: exam.ID})
	switch {
	case errors.Is(err, domain.ErrConflict):
		// a background worker claimed the job first
		code = http.StatusAccepted
	case err != nil:
		return err
	}
	if resp.JobStatus, err = s.jobs.Status(ctx2, jobID); err != nil {
		return err
	}
	writeJSON(w, code, resp)
	return nil
}

// getSuggestions accepts an optional target distribution as repeated
// ?target=<grade>:<share> parameters.
func (s *Server) getSuggestions(w http.ResponseWriter, r *http.Request) error {
	exam, err := s.findExam(r)
	if err != nil {
		return err
	}
	var pairs *[]string
	if err := runtime.BindQueryParameter("form", true, false, "target", r.URL.Query(), &pairs); err != nil {
		return badRequest("invalid format for parameter target: %v", err)
	}
	var target map[domain.Grade]float64
	if pairs != nil {
		if target, err = parseTarget(*pairs); err != nil {
			return err
		}
	}
	entries, err := s.entries.ListByExam(r.Context(), exam.ID)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, s.engine.SuggestGradingKeyAdjustments(entries, exam.GradingKey, target))
	return nil
}

func parseTarget(pairs []string) (map[domain.Grade]float64, error) {
	target := make(map[domain.Grade]float64, len(pairs))
	for _, p := range pairs {
		i := strings.LastIndex(p, ":")
		if i <= 0 {
			return nil, badRequest("target %q is not <grade>:<share>", p)
		}
		share, err := strconv.ParseFloat(p[i+1:], 64)
		if err != nil || share < 0 || share > 1 {
			return nil, badRequest("target %q needs a share between 0 and 1", p)
		}
		target[domain.Grade(p[:i])] = share
	}
	return target, nil
}

// getExport streams the exam's corrections as a Parquet file.
func (s *Server) getExport(w http.ResponseWriter, r *http.Request) error {
	exam, err := s.findExam(r)
	if err != nil {
		return err
	}
	entries, err := s.entries.ListByExam(r.Context(), exam.ID)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/vnd.apache.parquet")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": exam.ID + ".parquet"}))
	return parquet.WriteCorrections(w, parquet.Rows(exam, entries))
}

type jobResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// postRegrade queues a regrade of every stored correction of the exam.
func (s *Server) postRegrade(w http.ResponseWriter, r *http.Request) error {
	exam, err := s.findExam(r)
	if err != nil {
		return err
	}
	id, err := s.jobs.Enqueue(r.Context(), exam.ID)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusAccepted, jobResponse{ID: id, Status: ports.JobQueued})
	return nil
}

func (s *Server) getRegrade(w http.ResponseWriter, r *http.Request) error {
	jobID, err := pathParam(r, "jobId")
	if err != nil {
		return err
	}
	status, err := s.jobs.Status(r.Context(), jobID)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, jobResponse{ID: jobID, Status: status})
	return nil
}

func (s *Server) findExam(r *http.Request) (domain.Exam, error) {
	examID, err := pathParam(r, "examId")
	if err != nil {
		return domain.Exam{}, err
	}
	exam, found, err := s.exams.FindByID(r.Context(), examID)
	if err != nil {
		return domain.Exam{}, err
	}
	if !found {
		return domain.Exam{}, &runtimeError{code: http.StatusNotFound, msg: "exam " + examID + " not found"}
	}
	return exam, nil
}
