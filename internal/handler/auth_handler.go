package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/hitoshi/serverinv/internal/auth"
	"github.com/hitoshi/serverinv/internal/middleware"
	"github.com/hitoshi/serverinv/internal/model"
)

// AccountServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AccountServiceInterface interface {
	Register(ctx context.Context, in auth.RegisterInput, requester *model.User) (*model.User, error)
	Login(ctx context.Context, in auth.LoginInput) (*auth.LoginResult, error)
}

// AuthHandler はユーザー登録とログインのHTTPハンドラー。
type AuthHandler struct {
	service AccountServiceInterface
	checker middleware.RoleChecker
}

// NewAuthHandler はAuthHandlerを生成する。
// checkerはトークン付きの登録リクエストで呼び出し元を解決するために使う。
func NewAuthHandler(service AccountServiceInterface, checker middleware.RoleChecker) *AuthHandler {
	return &AuthHandler{service: service, checker: checker}
}

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type registerResponse struct {
	Message  string `json:"message"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
	Username    string    `json:"username"`
	Role        string    `json:"role"`
}

// Register はユーザー登録を処理する。
// POST /api/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	// トークン付きの場合のみ呼び出し元を解決する（管理者による admin 作成）
	var requester *model.User
	if username, ok := middleware.UsernameFromContext(r.Context()); ok {
		user, err := h.checker.Check(r.Context(), username, model.RoleAny)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		requester = user
	}

	user, err := h.service.Register(r.Context(), auth.RegisterInput{
		Username:   req.Username,
		Password:   req.Password,
		Role:       req.Role,
		SourceAddr: middleware.ClientAddrFromContext(r.Context()),
	}, requester)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, registerResponse{
		Message:  "User created successfully",
		Username: user.Username,
		Role:     string(user.Role),
	})
}

// Login はログインを処理し、アクセストークンを返す。
// POST /api/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	result, err := h.service.Login(r.Context(), auth.LoginInput{
		Username:   req.Username,
		Password:   req.Password,
		SourceAddr: middleware.ClientAddrFromContext(r.Context()),
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken: result.Token,
		TokenType:   "Bearer",
		ExpiresAt:   result.ExpiresAt,
		Username:    result.Username,
		Role:        string(result.Role),
	})
}
