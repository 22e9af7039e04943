package httpadapter

import (
	"net/http"

	"gradekey/internal/domain"
	"gradekey/internal/services/keys"
)

type calculateRequest struct {
	Points     float64           `json:"points"`
	GradingKey domain.GradingKey `json:"gradingKey"`
}

type calculateResponse struct {
	Grade             domain.Grade `json:"grade"`
	Percentage        float64      `json:"percentage"`
	PointsToNextGrade float64      `json:"pointsToNextGrade"`
}

func (s *Server) postCalculateGrade(w http.ResponseWriter, r *http.Request) error {
	var req calculateRequest
	if err := decode(r, &req); err != nil {
		return err
	}
	res := s.engine.Resolver().CalculateGrade(req.Points, req.GradingKey)
	writeJSON(w, http.StatusOK, calculateResponse{
		Grade:             res.Grade,
		Percentage:        res.Percentage,
		PointsToNextGrade: s.engine.Resolver().PointsToNextGrade(req.Points, req.GradingKey),
	})
	return nil
}

type errorPointsRequest struct {
	TotalPoints float64           `json:"totalPoints"`
	ErrorPoints float64           `json:"errorPoints"`
	MaxPoints   float64           `json:"maxPoints"`
	GradingKey  domain.GradingKey `json:"gradingKey"`
}

func (s *Server) postErrorPoints(w http.ResponseWriter, r *http.Request) error {
	var req errorPointsRequest
	if err := decode(r, &req); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, s.engine.ConvertErrorPointsToGrade(req.TotalPoints, req.ErrorPoints, req.MaxPoints, req.GradingKey))
	return nil
}

type createKeyRequest struct {
	Name            string                 `json:"name"`
	TotalPoints     float64                `json:"totalPoints"`
	GradeBoundaries []domain.GradeBoundary `json:"gradeBoundaries"`
	RoundingRule    *domain.RoundingRule   `json:"roundingRule,omitempty"`
}

func (s *Server) postKey(w http.ResponseWriter, r *http.Request) error {
	var req createKeyRequest
	if err := decode(r, &req); err != nil {
		return err
	}
	if req.Name == "" {
		return badRequest("name is required")
	}
	key := s.engine.CreateCustomGradingKey(req.Name, req.TotalPoints, req.GradeBoundaries, req.RoundingRule)
	writeJSON(w, http.StatusCreated, key)
	return nil
}

func (s *Server) postValidateKey(w http.ResponseWriter, r *http.Request) error {
	var key domain.GradingKey
	if err := decode(r, &key); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, s.engine.ValidateGradingKey(key))
	return nil
}

type convertRequest struct {
	GradingKey  domain.GradingKey `json:"gradingKey"`
	TotalPoints float64           `json:"totalPoints"`
}

func (s *Server) postConvertKey(w http.ResponseWriter, r *http.Request) error {
	var req convertRequest
	if err := decode(r, &req); err != nil {
		return err
	}
	if req.TotalPoints <= 0 {
		return badRequest("totalPoints must be greater than 0")
	}
	writeJSON(w, http.StatusOK, s.engine.ConvertToPointsBased(req.GradingKey, req.TotalPoints))
	return nil
}

type compareRequest struct {
	A domain.GradingKey `json:"a"`
	B domain.GradingKey `json:"b"`
}

func (s *Server) postCompareKeys(w http.ResponseWriter, r *http.Request) error {
	var req compareRequest
	if err := decode(r, &req); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, s.engine.CompareGradingKeys(req.A, req.B))
	return nil
}

type cloneRequest struct {
	GradingKey domain.GradingKey `json:"gradingKey"`
	Patch      keys.KeyPatch     `json:"patch"`
}

func (s *Server) postCloneKey(w http.ResponseWriter, r *http.Request) error {
	var req cloneRequest
	if err := decode(r, &req); err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, s.engine.CloneWithModifications(req.GradingKey, req.Patch))
	return nil
}

// getKeyHistory returns the plain-text change report of a key.
func (s *Server) getKeyHistory(w http.ResponseWriter, r *http.Request) error {
	keyID, err := pathParam(r, "keyId")
	if err != nil {
		return err
	}
	report, err := s.engine.ExportChangeHistory(r.Context(), keyID)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(report))
	return nil
}
