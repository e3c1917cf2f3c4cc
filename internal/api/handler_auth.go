package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/ryanbastic/go-sheetcms/internal/auth"
	"github.com/ryanbastic/go-sheetcms/internal/metrics"
)

// --- Huma Input/Output types ---

type LoginInput struct {
	Body struct {
		Email    string `json:"email" doc:"Account email" minLength:"1"`
		Password string `json:"password" doc:"Account password" minLength:"1"`
	}
}

type LoginResponse struct {
	Token     string            `json:"token" doc:"Bearer token"`
	ExpiresAt time.Time         `json:"expires_at" doc:"Token expiry"`
	User      map[string]string `json:"user" doc:"Signed-in user"`
}

type LoginOutput struct {
	Body LoginResponse
}

type RegisterUserBody struct {
	Username string `json:"username" doc:"Unique username" minLength:"3" maxLength:"50"`
	Email    string `json:"email" doc:"Unique email" format:"email"`
	Password string `json:"password" doc:"At least 8 characters" minLength:"8"`
	Role     string `json:"role,omitempty" doc:"Role" enum:"viewer,editor,admin,super_admin"`
}

type RegisterUserInput struct {
	Body RegisterUserBody
}

type MeInput struct{}

type VerifyOutput struct {
	Body struct {
		Valid bool              `json:"valid"`
		User  map[string]string `json:"user"`
	}
}

type ChangePasswordInput struct {
	Body struct {
		CurrentPassword string `json:"current_password" minLength:"1"`
		NewPassword     string `json:"new_password" minLength:"8"`
	}
}

type MessageOutput struct {
	Body struct {
		Message string `json:"message"`
	}
}

func message(msg string) *MessageOutput {
	out := &MessageOutput{}
	out.Body.Message = msg
	return out
}

// --- Handler ---

type AuthHandler struct {
	accounts *auth.Accounts
	issuer   *auth.Issuer
	guard    *guard
	logger   *slog.Logger
}

func NewAuthHandler(accounts *auth.Accounts, issuer *auth.Issuer, g *guard, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{accounts: accounts, issuer: issuer, guard: g, logger: logger}
}

func registerAuthRoutes(api huma.API, h *AuthHandler) {
	tags := []string{"auth"}

	huma.Register(api, huma.Operation{
		OperationID: "login",
		Method:      http.MethodPost,
		Path:        "/api/auth/login",
		Summary:     "Exchange credentials for a bearer token",
		Tags:        tags,
	}, h.Login)

	huma.Register(api, huma.Operation{
		OperationID:   "register-user",
		Method:        http.MethodPost,
		Path:          "/api/auth/register",
		Summary:       "Create an admin user",
		Tags:          tags,
		DefaultStatus: http.StatusCreated,
		Middlewares:   h.guard.require(auth.RoleSuperAdmin),
		Security:      bearer,
	}, h.Register)

	huma.Register(api, huma.Operation{
		OperationID: "me",
		Method:      http.MethodGet,
		Path:        "/api/auth/me",
		Summary:     "Current user",
		Tags:        tags,
		Middlewares: h.guard.require(auth.RoleViewer),
		Security:    bearer,
	}, h.Me)

	huma.Register(api, huma.Operation{
		OperationID: "verify-token",
		Method:      http.MethodGet,
		Path:        "/api/auth/verify",
		Summary:     "Check a bearer token",
		Tags:        tags,
		Middlewares: h.guard.require(auth.RoleViewer),
		Security:    bearer,
	}, h.Verify)

	huma.Register(api, huma.Operation{
		OperationID: "change-password",
		Method:      http.MethodPut,
		Path:        "/api/auth/change-password",
		Summary:     "Change the current user's password",
		Tags:        tags,
		Middlewares: h.guard.require(auth.RoleViewer),
		Security:    bearer,
	}, h.ChangePassword)

	huma.Register(api, huma.Operation{
		OperationID: "logout",
		Method:      http.MethodPost,
		Path:        "/api/auth/logout",
		Summary:     "Sign out; clients discard their token",
		Tags:        tags,
	}, h.Logout)
}

func (h *AuthHandler) Login(ctx context.Context, in *LoginInput) (*LoginOutput, error) {
	user, err := h.accounts.Authenticate(ctx, in.Body.Email, in.Body.Password)
	switch {
	case err == nil:
		metrics.Login("ok")
	case errors.Is(err, auth.ErrWrongPassword):
		metrics.Login("rejected")
	case errors.Is(err, auth.ErrAccountDisabled):
		metrics.Login("disabled")
	default:
		metrics.Login("error")
	}
	if err != nil {
		return nil, failure(h.logger, "login", err)
	}
	token, exp, err := h.issuer.Issue(auth.IdentityOf(user))
	if err != nil {
		return nil, failure(h.logger, "login", err)
	}
	h.logger.Info("user logged in", "user_id", user.ID())
	return &LoginOutput{Body: LoginResponse{
		Token:     token,
		ExpiresAt: exp,
		User:      auth.Public(user).Fields,
	}}, nil
}

func (h *AuthHandler) Register(ctx context.Context, in *RegisterUserInput) (*RecordOutput, error) {
	user, err := h.accounts.Create(ctx, auth.NewAccount{
		Username: in.Body.Username,
		Email:    in.Body.Email,
		Password: in.Body.Password,
		Role:     auth.Role(in.Body.Role),
	})
	if err != nil {
		return nil, failure(h.logger, "register user", err)
	}
	h.logger.Info("user registered", "user_id", user.ID(), "role", user.Get("role"))
	return recordOut(auth.Public(user)), nil
}

func (h *AuthHandler) Me(ctx context.Context, _ *MeInput) (*RecordOutput, error) {
	id, _ := caller(ctx)
	user, err := h.accounts.Get(ctx, id.UserID)
	if err != nil {
		return nil, failure(h.logger, "me", err)
	}
	return recordOut(auth.Public(user)), nil
}

// Verify checks the token and the account behind it, so a token for a
// disabled or deleted account is reported even before it expires.
func (h *AuthHandler) Verify(ctx context.Context, _ *MeInput) (*VerifyOutput, error) {
	claimed, _ := caller(ctx)
	user, err := h.accounts.Active(ctx, claimed.UserID)
	if errors.Is(err, auth.ErrAccountNotFound) {
		err = auth.ErrInvalidToken
	}
	if err != nil {
		return nil, failure(h.logger, "verify", err)
	}
	id := auth.IdentityOf(user)
	out := &VerifyOutput{}
	out.Body.Valid = true
	out.Body.User = map[string]string{
		"id":       id.UserID,
		"email":    id.Email,
		"username": id.Username,
		"role":     string(id.Role),
	}
	return out, nil
}

func (h *AuthHandler) ChangePassword(ctx context.Context, in *ChangePasswordInput) (*MessageOutput, error) {
	id, _ := caller(ctx)
	err := h.accounts.ChangePassword(ctx, id.UserID, in.Body.CurrentPassword, in.Body.NewPassword)
	if errors.Is(err, auth.ErrWrongPassword) {
		return nil, huma.Error400BadRequest("current password is incorrect")
	}
	if err != nil {
		return nil, failure(h.logger, "change password", err)
	}
	return message("password changed"), nil
}

func (h *AuthHandler) Logout(context.Context, *MeInput) (*MessageOutput, error) {
	return message("logged out"), nil
}
