package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/naffles/nft-staking-rewards/internal/services"
)

const monthLayout = "2006-01"

type DistributeRequest struct {
	PositionIDs []string `json:"positionIds"`
}

type UnstakeRequest struct {
	Proof  string `json:"proof"`
	Reason string `json:"reason"`
}

// decodeBody decodes an optional JSON body; an empty body leaves v untouched
func decodeBody(r *http.Request, v any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func (s *Server) handleHealthcheck(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "database is unreachable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDistribute(w http.ResponseWriter, r *http.Request) {
	var req DistributeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	summary, err := s.service.RunBatch(r.Context(), req.PositionIDs)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	summary, err := s.service.RunReconciliation(r.Context())
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleDistributionStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.service.GetDistributionStatus(r.Context())
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleUserRewards(w http.ResponseWriter, r *http.Request) {
	rewards, err := s.service.GetUserRewards(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, rewards)
}

func (s *Server) handleContractPerformance(w http.ResponseWriter, r *http.Request) {
	performance, err := s.service.GetContractPerformance(r.Context(), chi.URLParam(r, "contractId"))
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, performance)
}

// handleMonthlySummary serves ?from=YYYY-MM&to=YYYY-MM, both months included
func (s *Server) handleMonthlySummary(w http.ResponseWriter, r *http.Request) {
	from, err := time.Parse(monthLayout, r.URL.Query().Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "from must be a month formatted as YYYY-MM")
		return
	}
	to, err := time.Parse(monthLayout, r.URL.Query().Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "to must be a month formatted as YYYY-MM")
		return
	}
	if to.Before(from) {
		writeError(w, http.StatusBadRequest, "to must not be before from")
		return
	}

	summary, err := s.service.GetMonthlySummary(r.Context(), from, to.AddDate(0, 1, 0))
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleAnomalies(w http.ResponseWriter, r *http.Request) {
	report, err := s.service.DetectAnomalies(r.Context())
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleStake(w http.ResponseWriter, r *http.Request) {
	var req services.StakeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	position, err := s.service.Stake(r.Context(), req)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusCreated, position)
}

func (s *Server) handleVerifyPosition(w http.ResponseWriter, r *http.Request) {
	result, err := s.service.VerifyPosition(r.Context(), chi.URLParam(r, "positionId"))
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleUnstake(w http.ResponseWriter, r *http.Request) {
	var req UnstakeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	position, err := s.service.Unstake(r.Context(), chi.URLParam(r, "positionId"), req.Proof, req.Reason)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, position)
}
