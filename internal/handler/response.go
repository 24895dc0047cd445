package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/storefront/internal/middleware"
	"github.com/hitoshi/storefront/internal/model"
)

// maxBodyBytes はリクエストボディの上限。
const maxBodyBytes = 64 << 10

// writeJSON はvをJSONとして書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// decodeJSON はリクエストボディをvにデコードする。
// 不正なJSONや未知のフィールドはINVALID_REQUESTとして返す。
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return model.NewInvalidRequestError("cuerpo vacío")
		}
		return model.NewInvalidRequestError(fmt.Sprintf("JSON inválido: %v", err))
	}
	return nil
}

// requireFields は空白のみの値を含む必須フィールドを検査する。
// 欠けているフィールド名をまとめて1つのINVALID_REQUESTにする。
func requireFields(fields map[string]string, order ...string) error {
	var missing []string
	for _, name := range order {
		if strings.TrimSpace(fields[name]) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return model.NewInvalidRequestError("campos obligatorios: " + strings.Join(missing, ", "))
	}
	return nil
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeDuplicateEmail, model.ErrCodeDuplicateUsername:
		return http.StatusConflict
	case model.ErrCodeInvalidCredentials, model.ErrCodeNotLoggedIn:
		return http.StatusUnauthorized
	case model.ErrCodeCodeMismatch:
		return http.StatusUnprocessableEntity
	case model.ErrCodeUserNotFound, model.ErrCodeProductNotFound, model.ErrCodeItemNotFound:
		return http.StatusNotFound
	case model.ErrCodeEmptyCart, model.ErrCodeInvalidTransition, model.ErrCodeInsufficientStock:
		return http.StatusConflict
	case model.ErrCodeWeakPassword, model.ErrCodeInvalidQuantity,
		model.ErrCodeInvalidLocation, model.ErrCodeInvalidRequest:
		return http.StatusBadRequest
	default:
		return http.StatusBadRequest
	}
}

// currentUserID はRequireSessionが注入したユーザーIDを返す。
// 取得できない場合はNOT_LOGGED_INを書き込みfalseを返す。
func currentUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewNotLoggedInError())
		return "", false
	}
	return userID, true
}
