package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/keiba-predict/engine/models"
)

// ErrorCode is one of the mandatory machine-readable error codes.
type ErrorCode string

const (
	CodeRaceNotFound       ErrorCode = "RACE_NOT_FOUND"
	CodeHorseNotFound      ErrorCode = "HORSE_NOT_FOUND"
	CodePredictionNotFound ErrorCode = "PREDICTION_NOT_FOUND"
	CodeRateLimitExceeded  ErrorCode = "RATE_LIMIT_EXCEEDED"
	CodeDatabaseError      ErrorCode = "DATABASE_ERROR"
	CodePredictionTimeout  ErrorCode = "PREDICTION_TIMEOUT"
	CodeInvalidRequest     ErrorCode = "INVALID_REQUEST"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message, details string) {
	writeJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: message, Details: details}})
}

// translateError maps a lower-layer error to the HTTP envelope: input
// errors are 4xx with a stable code, store errors are 5xx DATABASE_ERROR,
// a context deadline is PREDICTION_TIMEOUT. Only this, the outermost
// layer, produces HTTP-shaped errors.
func translateError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, CodePredictionTimeout, "prediction timed out", err.Error())
	case errors.Is(err, models.ErrRaceNotFound):
		writeError(w, http.StatusNotFound, CodeRaceNotFound, "race not found", err.Error())
	case errors.Is(err, models.ErrHorseNotFound):
		writeError(w, http.StatusNotFound, CodeHorseNotFound, "horse not found", err.Error())
	case errors.Is(err, models.ErrPredictionNotFound):
		writeError(w, http.StatusNotFound, CodePredictionNotFound, "prediction not found", err.Error())
	case errors.Is(err, models.ErrInvalidRequest), errors.Is(err, models.ErrNoStarters):
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "invalid request", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, CodeDatabaseError, "internal error", err.Error())
	}
}
