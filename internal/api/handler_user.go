package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/ryanbastic/go-sheetcms/internal/auth"
	"github.com/ryanbastic/go-sheetcms/internal/record"
	"github.com/ryanbastic/go-sheetcms/internal/repository"
	"github.com/ryanbastic/go-sheetcms/internal/schema"
)

type ListUsersInput struct {
	ListParams
	Role   string `query:"role" doc:"Exact role"`
	Status string `query:"status" doc:"Exact status"`
}

type UpdateUserInput struct {
	ID   string `path:"id" doc:"User id"`
	Body struct {
		Username string `json:"username,omitempty" minLength:"3" maxLength:"50"`
		Email    string `json:"email,omitempty" format:"email"`
		Password string `json:"password,omitempty" minLength:"8"`
		Role     string `json:"role,omitempty" enum:"viewer,editor,admin,super_admin"`
	}
}

type SetUserStatusInput struct {
	ID   string `path:"id" doc:"User id"`
	Body struct {
		Status string `json:"status" enum:"active,inactive"`
	}
}

// UserHandler manages admin users. Callers cannot grant or touch a role
// above their own and cannot delete or deactivate themselves.
type UserHandler struct {
	repo     *repository.Repository
	accounts *auth.Accounts
	logger   *slog.Logger
}

func NewUserHandler(repo *repository.Repository, accounts *auth.Accounts, logger *slog.Logger) *UserHandler {
	return &UserHandler{repo: repo, accounts: accounts, logger: logger}
}

func registerUserRoutes(api huma.API, h *UserHandler, g *guard) {
	admin := g.require(auth.RoleAdmin)
	tags := []string{"users"}

	huma.Register(api, huma.Operation{
		OperationID: "list-users",
		Method:      http.MethodGet,
		Path:        "/api/users",
		Summary:     "List admin users",
		Tags:        tags,
		Middlewares: admin,
		Security:    bearer,
	}, h.List)

	huma.Register(api, huma.Operation{
		OperationID: "get-user",
		Method:      http.MethodGet,
		Path:        "/api/users/{id}",
		Summary:     "Get an admin user",
		Tags:        tags,
		Middlewares: admin,
		Security:    bearer,
	}, h.Get)

	huma.Register(api, huma.Operation{
		OperationID:   "create-user",
		Method:        http.MethodPost,
		Path:          "/api/users",
		Summary:       "Create an admin user",
		Tags:          tags,
		DefaultStatus: http.StatusCreated,
		Middlewares:   admin,
		Security:      bearer,
	}, h.Create)

	huma.Register(api, huma.Operation{
		OperationID: "update-user",
		Method:      http.MethodPut,
		Path:        "/api/users/{id}",
		Summary:     "Update an admin user",
		Tags:        tags,
		Middlewares: admin,
		Security:    bearer,
	}, h.Update)

	huma.Register(api, huma.Operation{
		OperationID: "set-user-status",
		Method:      http.MethodPut,
		Path:        "/api/users/{id}/status",
		Summary:     "Activate or deactivate an admin user",
		Tags:        tags,
		Middlewares: admin,
		Security:    bearer,
	}, h.SetStatus)

	huma.Register(api, huma.Operation{
		OperationID: "delete-user",
		Method:      http.MethodDelete,
		Path:        "/api/users/{id}",
		Summary:     "Delete an admin user",
		Tags:        tags,
		Middlewares: admin,
		Security:    bearer,
	}, h.Delete)
}

func (h *UserHandler) List(ctx context.Context, in *ListUsersInput) (*PageOutput, error) {
	s, err := h.repo.Registry().Lookup(schema.AdminUsers)
	if err != nil {
		return nil, failure(h.logger, "list users", err)
	}
	q, err := in.query(s, schema.FieldCreatedAt, record.Desc)
	if err != nil {
		return nil, failure(h.logger, "list users", err)
	}
	q.Exact = map[string]string{"role": in.Role, "status": in.Status}
	q.TextFields = []string{"username", "email"}
	page, err := h.repo.Query(ctx, schema.AdminUsers, q)
	if err != nil {
		return nil, failure(h.logger, "list users", err)
	}
	return pageOut(page, "password_hash"), nil
}

func (h *UserHandler) Get(ctx context.Context, in *RecordIDInput) (*RecordOutput, error) {
	user, err := h.accounts.Get(ctx, in.ID)
	if err != nil {
		return nil, failure(h.logger, "get user", err)
	}
	return recordOut(auth.Public(user)), nil
}

func (h *UserHandler) Create(ctx context.Context, in *RegisterUserInput) (*RecordOutput, error) {
	actor, _ := caller(ctx)
	role := auth.Role(in.Body.Role)
	if role != "" && !actor.Role.AtLeast(role) {
		return nil, huma.Error403Forbidden("cannot grant a role above your own")
	}
	user, err := h.accounts.Create(ctx, auth.NewAccount{
		Username: in.Body.Username,
		Email:    in.Body.Email,
		Password: in.Body.Password,
		Role:     role,
	})
	if err != nil {
		return nil, failure(h.logger, "create user", err)
	}
	h.logger.Info("user created", "user_id", user.ID(), "by", actor.UserID)
	return recordOut(auth.Public(user)), nil
}

// target loads a user the caller is allowed to manage.
func (h *UserHandler) target(ctx context.Context, op, id string) (auth.Identity, error) {
	actor, _ := caller(ctx)
	user, err := h.accounts.Get(ctx, id)
	if err != nil {
		return auth.Identity{}, failure(h.logger, op, err)
	}
	if !actor.Role.AtLeast(auth.Role(user.Get("role"))) {
		return auth.Identity{}, huma.Error403Forbidden("cannot manage a user above your role")
	}
	return auth.IdentityOf(user), nil
}

func (h *UserHandler) Update(ctx context.Context, in *UpdateUserInput) (*RecordOutput, error) {
	actor, _ := caller(ctx)
	if _, err := h.target(ctx, "update user", in.ID); err != nil {
		return nil, err
	}
	role := auth.Role(in.Body.Role)
	if role != "" && !actor.Role.AtLeast(role) {
		return nil, huma.Error403Forbidden("cannot grant a role above your own")
	}
	user, err := h.accounts.Update(ctx, in.ID, auth.AccountChanges{
		Username: in.Body.Username,
		Email:    in.Body.Email,
		Password: in.Body.Password,
		Role:     role,
	})
	if err != nil {
		return nil, failure(h.logger, "update user", err)
	}
	return recordOut(auth.Public(user)), nil
}

func (h *UserHandler) SetStatus(ctx context.Context, in *SetUserStatusInput) (*RecordOutput, error) {
	actor, _ := caller(ctx)
	if in.ID == actor.UserID && in.Body.Status != auth.StatusActive {
		return nil, huma.Error400BadRequest("cannot deactivate your own account")
	}
	if _, err := h.target(ctx, "set user status", in.ID); err != nil {
		return nil, err
	}
	user, err := h.accounts.SetStatus(ctx, in.ID, in.Body.Status)
	if err != nil {
		return nil, failure(h.logger, "set user status", err)
	}
	h.logger.Info("user status changed", "user_id", in.ID, "status", in.Body.Status, "by", actor.UserID)
	return recordOut(auth.Public(user)), nil
}

func (h *UserHandler) Delete(ctx context.Context, in *RecordIDInput) (*DeletedOutput, error) {
	actor, _ := caller(ctx)
	if in.ID == actor.UserID {
		return nil, huma.Error400BadRequest("cannot delete your own account")
	}
	if _, err := h.target(ctx, "delete user", in.ID); err != nil {
		return nil, err
	}
	if err := h.accounts.Delete(ctx, in.ID); err != nil {
		return nil, failure(h.logger, "delete user", err)
	}
	h.logger.Info("user deleted", "user_id", in.ID, "by", actor.UserID)
	return deleted(), nil
}
