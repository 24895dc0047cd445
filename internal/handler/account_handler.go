package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/storefront/internal/account"
	"github.com/hitoshi/storefront/internal/model"
)

// AccountServiceInterface はアカウントハンドラーが必要とするサービスインターフェース。
type AccountServiceInterface interface {
	Register(ctx context.Context, in account.RegisterInput) (*account.RegisterResult, error)
	ResendCode(ctx context.Context, email string) (string, error)
	Verify(ctx context.Context, email, code string) error
	Login(ctx context.Context, email, password string) (*model.User, error)
	Logout(ctx context.Context) error
	CurrentUser(ctx context.Context) (*model.User, error)
}

// AccountHandler はアカウント登録・確認・ログインのHTTPハンドラー。
type AccountHandler struct {
	service AccountServiceInterface
}

// NewAccountHandler はAccountHandlerを生成する。
func NewAccountHandler(service AccountServiceInterface) *AccountHandler {
	return &AccountHandler{service: service}
}

// --- リクエスト・レスポンス型 ---

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone"`
	FullName string `json:"fullName"`
	Username string `json:"username"`
}

// registerResponse は登録結果。メール送信のない構成では画面に確認コードを表示する。
type registerResponse struct {
	User             model.PublicUser `json:"user"`
	VerificationCode string           `json:"verificationCode"`
}

type verifyRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type resendRequest struct {
	Email string `json:"email"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register はアカウントを登録する。
// POST /api/account/register
func (h *AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, err)
		return
	}
	if err := requireFields(map[string]string{
		"email":    req.Email,
		"password": req.Password,
		"phone":    req.Phone,
		"fullName": req.FullName,
		"username": req.Username,
	}, "email", "password", "phone", "fullName", "username"); err != nil {
		handleServiceError(w, err)
		return
	}

	result, err := h.service.Register(r.Context(), account.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Phone:    req.Phone,
		FullName: req.FullName,
		Username: req.Username,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, registerResponse{
		User:             result.User.Public(),
		VerificationCode: result.VerificationCode,
	})
}

// Verify は確認コードを照合する。
// POST /api/account/verify
func (h *AccountHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, err)
		return
	}
	if err := requireFields(map[string]string{"email": req.Email}, "email"); err != nil {
		handleServiceError(w, err)
		return
	}

	if err := h.service.Verify(r.Context(), req.Email, req.Code); err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"verified": true})
}

// ResendCode は確認コードを再発行する。
// POST /api/account/resend
func (h *AccountHandler) ResendCode(w http.ResponseWriter, r *http.Request) {
	var req resendRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, err)
		return
	}
	if err := requireFields(map[string]string{"email": req.Email}, "email"); err != nil {
		handleServiceError(w, err)
		return
	}

	code, err := h.service.ResendCode(r.Context(), req.Email)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"verificationCode": code})
}

// Login はログインしてセッションを開始する。
// POST /api/account/login
func (h *AccountHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, err)
		return
	}
	if err := requireFields(map[string]string{
		"email":    req.Email,
		"password": req.Password,
	}, "email", "password"); err != nil {
		handleServiceError(w, err)
		return
	}

	user, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user.Public())
}

// Logout はセッションを終了する。未ログインでも204を返す。
// POST /api/account/logout
func (h *AccountHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Logout(r.Context()); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Me はログイン中のユーザーを返す。
// GET /api/account/me
func (h *AccountHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.CurrentUser(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if user == nil {
		handleServiceError(w, model.NewNotLoggedInError())
		return
	}
	writeJSON(w, http.StatusOK, user.Public())
}
