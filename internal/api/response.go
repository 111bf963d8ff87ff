package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/naffles/nft-staking-rewards/internal/db"
	"github.com/naffles/nft-staking-rewards/internal/db/model"
	"github.com/naffles/nft-staking-rewards/internal/services"
	"github.com/naffles/nft-staking-rewards/internal/types"
	"github.com/rs/zerolog/log"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("failed to encode JSON response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeServiceError maps an error returned by the service layer to a status
// code. Unknown errors are logged and hidden behind a generic message.
func writeServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		log.Ctx(ctx).Error().Err(err).Msg("request failed")
		writeJSON(w, status, errorResponse{Error: "internal error", Code: types.ErrCodeInternal})
		return
	}

	writeJSON(w, status, errorResponse{Error: err.Error(), Code: types.ErrorCode(err)})
}

func statusOf(err error) int {
	var (
		unsupported   *types.UnsupportedDurationError
		inactive      *types.ContractInactiveError
		notUnstakable *types.PositionNotUnstakableError
		locked        *types.PositionLockedError
		notEligible   *types.PositionNotEligibleError
	)

	switch {
	case db.IsNotFoundError(err):
		return http.StatusNotFound
	case errors.Is(err, services.ErrBatchInProgress),
		db.IsLeaseHeldError(err),
		errors.Is(err, services.ErrNFTAlreadyStaked),
		errors.As(err, &notUnstakable),
		errors.As(err, &locked):
		return http.StatusConflict
	case errors.As(err, &unsupported),
		errors.As(err, &inactive),
		errors.As(err, &notEligible),
		errors.Is(err, model.ErrInvalidPosition),
		errors.Is(err, types.ErrEarlyUnstakeReasonRequired):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
