package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hitoshi/storefront/internal/model"
)

// ErrorResponseBody はAPIエラーのJSON表現。
type ErrorResponseBody struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

func newErrorResponseBody(apiErr *model.APIError) ErrorResponseBody {
	return ErrorResponseBody{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	}
}

// WriteErrorResponse はAPIErrorをJSONで書き込み、エラーコードをログに残す。
// 5xxはWarn、それ以外はDebugで記録する。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	level := slog.LevelDebug
	if statusCode >= http.StatusInternalServerError {
		level = slog.LevelWarn
	}
	slog.Log(context.Background(), level, "api error response",
		slog.String("code", apiErr.Code),
		slog.Int("status", statusCode),
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(newErrorResponseBody(apiErr)); err != nil {
		slog.Warn("failed to write error response",
			slog.String("code", apiErr.Code),
			slog.String("error", err.Error()),
		)
	}
}

// WriteInternalServerError はINTERNAL_ERRORを500で書き込む。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, model.NewInternalError())
}
