package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/mchmarny/fragility/pkg/data"
	"github.com/mchmarny/fragility/pkg/household"
	"github.com/mchmarny/fragility/pkg/risk"
	"github.com/mchmarny/fragility/pkg/score"
)

const statusHealthy = "healthy"

// PredictResponse is the batch response shape.
type PredictResponse struct {
	Predictions []*score.Result `json:"predictions"`
}

// ExplainResponse is a scored household with the reasons behind its score.
type ExplainResponse struct {
	FragilityScore  float64   `json:"fragility_score"`
	RiskBand        risk.Band `json:"risk_band"`
	Summary         string    `json:"summary"`
	Reasons         []string  `json:"reasons"`
	Recommendations []string  `json:"recommendations"`
}

// SimulateRequest names the shocked member and the shock. An empty shock type
// is a member loss.
type SimulateRequest struct {
	Household      *household.Graph `json:"household"`
	AffectedMember string           `json:"affected_member"`
	ShockType      string           `json:"shock_type,omitempty"`
}

// LoanResponse is a scored household with its loan evaluation.
type LoanResponse struct {
	FragilityScore float64 `json:"fragility_score"`
	*score.LoanEvaluation
}

func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": statusHealthy})
}

func (s *Server) analyzeHandler(w http.ResponseWriter, r *http.Request) {
	g, ok := s.parseGraph(w, r)
	if !ok {
		return
	}

	res, err := s.scorer.Analyze(r.Context(), g)
	if err != nil {
		s.serverError(w, r, err)
		return
	}

	s.record(r, res)
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) predictHandler(w http.ResponseWriter, r *http.Request) {
	batch, err := household.ParseBatch(http.MaxBytesReader(w, r.Body, s.maxBody))
	if err != nil {
		writeDecodeError(w, err)
		return
	}

	results, err := s.scorer.AnalyzeBatch(r.Context(), batch.Instances)
	if err != nil {
		s.serverError(w, r, err)
		return
	}

	s.record(r, results...)
	writeJSON(w, http.StatusOK, PredictResponse{Predictions: results})
}

func (s *Server) explainHandler(w http.ResponseWriter, r *http.Request) {
	g, ok := s.parseGraph(w, r)
	if !ok {
		return
	}

	res, err := s.scorer.Analyze(r.Context(), g)
	if err != nil {
		s.serverError(w, r, err)
		return
	}

	e := score.Explain(g, res.Vector())
	writeJSON(w, http.StatusOK, ExplainResponse{
		FragilityScore:  res.FragilityScore,
		RiskBand:        res.RiskBand,
		Summary:         res.RiskBand.Summary(),
		Reasons:         e.Reasons,
		Recommendations: e.Recommendations,
	})
}

func (s *Server) weakLinksHandler(w http.ResponseWriter, r *http.Request) {
	g, ok := s.parseGraph(w, r)
	if !ok {
		return
	}
	m, err := household.ComputeMetrics(r.Context(), g)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) loanHandler(w http.ResponseWriter, r *http.Request) {
	g, ok := s.parseGraph(w, r)
	if !ok {
		return
	}

	res, e, err := s.scorer.EvaluateLoan(r.Context(), g)
	if err != nil {
		s.serverError(w, r, err)
		return
	}

	s.record(r, res)
	writeJSON(w, http.StatusOK, LoanResponse{
		FragilityScore: res.FragilityScore,
		LoanEvaluation: e,
	})
}

func (s *Server) simulateHandler(w http.ResponseWriter, r *http.Request) {
	var req SimulateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.maxBody)).Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "empty request body")
			return
		}
		writeDecodeError(w, err)
		return
	}
	if req.Household == nil {
		writeError(w, http.StatusBadRequest, "household required")
		return
	}
	if req.AffectedMember == "" {
		writeError(w, http.StatusBadRequest, "affected_member required")
		return
	}

	sim, err := s.scorer.Simulate(r.Context(), req.Household, req.AffectedMember, req.ShockType)
	if err != nil {
		if errors.Is(err, score.ErrMemberNotFound) || errors.Is(err, household.ErrUnknownShock) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sim)
}

func (s *Server) parseGraph(w http.ResponseWriter, r *http.Request) (*household.Graph, bool) {
	g, err := household.Parse(http.MaxBytesReader(w, r.Body, s.maxBody))
	if err != nil {
		writeDecodeError(w, err)
		return nil, false
	}
	return g, true
}

// record appends results to the audit log. Failures are logged, not returned.
func (s *Server) record(r *http.Request, results ...*score.Result) {
	list := make([]*data.Analysis, 0, len(results))
	for _, res := range results {
		s.metrics.observeScore(res.FragilityScore, res.RiskBand)
		list = append(list, &data.Analysis{
			Source:             sourceHTTP,
			Model:              s.modelName,
			FragilityScore:     res.FragilityScore,
			RiskBand:           string(res.RiskBand),
			DependencyRatio:    res.Features.DependencyRatio,
			SinglePointFailure: res.Features.SinglePointFailure,
			ShockAmplification: res.Features.ShockAmplification,
		})
	}

	if s.recorder == nil {
		return
	}
	if err := s.recorder.SaveAnalysis(r.Context(), list...); err != nil {
		s.metrics.storeErrs.Inc()
		s.logger.Warn("failed to record analysis", "id", RequestID(r.Context()), "error", err)
	}
}

func (s *Server) serverError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Error("scoring failed", "id", RequestID(r.Context()), "error", err)
	writeError(w, http.StatusInternalServerError, "scoring failed")
}

func writeDecodeError(w http.ResponseWriter, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("request body exceeds %d bytes", maxErr.Limit))
		return
	}
	writeError(w, http.StatusBadRequest, err.Error())
}
