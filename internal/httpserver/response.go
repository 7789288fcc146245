package httpserver

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"estimator/internal/apperr"
	"estimator/internal/middleware"
)

const maxBodyBytes = 1 << 20

type errorEnvelope struct {
	Success   bool      `json:"success"`
	Error     errorBody `json:"error"`
	RequestID string    `json:"request_id,omitempty"`
}

type errorBody struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

// WriteJSON отдаёт v как JSON с кодом status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteJSONError возвращает ошибку в едином формате.
func WriteJSONError(w http.ResponseWriter, r *http.Request, status int, code, message string, details []string) {
	WriteJSON(w, status, errorEnvelope{
		Success: false,
		Error: errorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
		RequestID: middleware.GetRequestID(r.Context()),
	})
}

// WriteError переводит ошибку конвейера в HTTP-ответ по её виду.
func WriteError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	kind := apperr.KindOf(err)
	status := apperr.HTTPStatus(kind)

	if d := apperr.RetryAfterOf(err); d > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(d.Seconds()))))
	}
	if logger != nil && status >= 500 {
		logger.Warn("request failed",
			slog.String("kind", string(kind)),
			slog.String("error", err.Error()),
			slog.String("request_id", middleware.GetRequestID(r.Context())))
	}
	WriteJSONError(w, r, status, string(kind), apperr.MessageOf(err), apperr.DetailsOf(err))
}

// decodeJSON читает тело запроса в dst. Любая ошибка — ValidationError.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	const op = "httpserver.decode"
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return apperr.Validation(op, "request body exceeds %d bytes", maxBodyBytes)
		case errors.Is(err, io.EOF):
			return apperr.Validation(op, "request body is empty")
		default:
			return &apperr.Error{Kind: apperr.KindValidation, Op: op, Message: "request body is not valid JSON", Err: err}
		}
	}
	if dec.More() {
		return apperr.Validation(op, "request body must contain a single JSON object")
	}
	return nil
}
