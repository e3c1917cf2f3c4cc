package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/ryanbastic/go-sheetcms/internal/auth"
	"github.com/ryanbastic/go-sheetcms/internal/schema"
	"github.com/ryanbastic/go-sheetcms/internal/trigger"
)

// --- Huma Input/Output types ---

type RegisterPluginBody struct {
	Name             string   `json:"name" doc:"Plugin name" required:"true" minLength:"1"`
	Endpoint         string   `json:"endpoint" doc:"JSON-RPC endpoint URL" required:"true" minLength:"1"`
	SubscribedSheets []string `json:"subscribed_sheets" doc:"Sheets to subscribe to" required:"true" minItems:"1"`
}

type RegisterPluginInput struct {
	Body RegisterPluginBody
}

type PluginResponse struct {
	ID               string    `json:"id" doc:"Plugin id"`
	Name             string    `json:"name" doc:"Plugin name"`
	Endpoint         string    `json:"endpoint" doc:"JSON-RPC endpoint URL"`
	SubscribedSheets []string  `json:"subscribed_sheets" doc:"Subscribed sheets"`
	Status           string    `json:"status" doc:"Plugin status" example:"active"`
	CreatedAt        time.Time `json:"created_at" doc:"Creation timestamp"`
}

type RegisterPluginOutput struct {
	Body PluginResponse
}

type ListPluginsInput struct{}

type ListPluginsOutput struct {
	Body []PluginResponse
}

type GetPluginInput struct {
	PluginID string `path:"plugin_id" doc:"Plugin id"`
}

type GetPluginOutput struct {
	Body PluginResponse
}

type DeletePluginInput struct {
	PluginID string `path:"plugin_id" doc:"Plugin id"`
}

type SetPluginStatusInput struct {
	PluginID string `path:"plugin_id" doc:"Plugin id"`
	Body     struct {
		Status string `json:"status" enum:"active,inactive"`
	}
}

// unsubscribable sheets never leave the process.
var unsubscribable = map[schema.Sheet]bool{
	schema.AdminUsers: true,
	schema.Webhooks:   true,
}

// --- Handler ---

type PluginHandler struct {
	registry *trigger.PluginRegistry
	schemas  *schema.Registry
	logger   *slog.Logger
}

func NewPluginHandler(registry *trigger.PluginRegistry, schemas *schema.Registry, logger *slog.Logger) *PluginHandler {
	return &PluginHandler{registry: registry, schemas: schemas, logger: logger}
}

func registerPluginRoutes(api huma.API, h *PluginHandler, g *guard) {
	admin := g.require(auth.RoleAdmin)
	tags := []string{"webhooks"}

	huma.Register(api, huma.Operation{
		OperationID:   "register-plugin",
		Method:        http.MethodPost,
		Path:          "/api/webhooks",
		Summary:       "Register a trigger plugin",
		Tags:          tags,
		DefaultStatus: http.StatusCreated,
		Middlewares:   admin,
		Security:      bearer,
	}, h.RegisterPlugin)

	huma.Register(api, huma.Operation{
		OperationID: "list-plugins",
		Method:      http.MethodGet,
		Path:        "/api/webhooks",
		Summary:     "List all plugins",
		Tags:        tags,
		Middlewares: admin,
		Security:    bearer,
	}, h.ListPlugins)

	huma.Register(api, huma.Operation{
		OperationID: "get-plugin",
		Method:      http.MethodGet,
		Path:        "/api/webhooks/{plugin_id}",
		Summary:     "Get a plugin by ID",
		Tags:        tags,
		Middlewares: admin,
		Security:    bearer,
	}, h.GetPlugin)

	huma.Register(api, huma.Operation{
		OperationID: "set-plugin-status",
		Method:      http.MethodPut,
		Path:        "/api/webhooks/{plugin_id}/status",
		Summary:     "Activate or pause a plugin",
		Tags:        tags,
		Middlewares: admin,
		Security:    bearer,
	}, h.SetPluginStatus)

	huma.Register(api, huma.Operation{
		OperationID:   "delete-plugin",
		Method:        http.MethodDelete,
		Path:          "/api/webhooks/{plugin_id}",
		Summary:       "Delete a plugin",
		Tags:          tags,
		DefaultStatus: http.StatusNoContent,
		Middlewares:   admin,
		Security:      bearer,
	}, h.DeletePlugin)
}

func (h *PluginHandler) RegisterPlugin(ctx context.Context, input *RegisterPluginInput) (*RegisterPluginOutput, error) {
	u, err := url.Parse(input.Body.Endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, huma.Error422UnprocessableEntity("endpoint must be an absolute http(s) URL")
	}
	sheets := make([]schema.Sheet, 0, len(input.Body.SubscribedSheets))
	for _, name := range input.Body.SubscribedSheets {
		sheet := schema.Sheet(name)
		if _, err := h.schemas.Lookup(sheet); err != nil || unsubscribable[sheet] {
			return nil, huma.Error422UnprocessableEntity(fmt.Sprintf("cannot subscribe to sheet %q", name))
		}
		sheets = append(sheets, sheet)
	}

	p := &trigger.Plugin{
		Name:             input.Body.Name,
		Endpoint:         input.Body.Endpoint,
		SubscribedSheets: sheets,
	}
	if err := h.registry.Register(ctx, p); err != nil {
		return nil, failure(h.logger, "register plugin", err)
	}

	h.logger.Info("plugin registered", "id", p.ID, "name", p.Name, "endpoint", p.Endpoint)

	return &RegisterPluginOutput{Body: pluginToResponse(p)}, nil
}

func (h *PluginHandler) ListPlugins(ctx context.Context, input *ListPluginsInput) (*ListPluginsOutput, error) {
	plugins := h.registry.List()
	resp := make([]PluginResponse, len(plugins))
	for i, p := range plugins {
		resp[i] = pluginToResponse(p)
	}
	return &ListPluginsOutput{Body: resp}, nil
}

func (h *PluginHandler) GetPlugin(ctx context.Context, input *GetPluginInput) (*GetPluginOutput, error) {
	p, err := h.registry.Get(input.PluginID)
	if err != nil {
		return nil, huma.Error404NotFound("plugin not found")
	}

	return &GetPluginOutput{Body: pluginToResponse(p)}, nil
}

func (h *PluginHandler) SetPluginStatus(ctx context.Context, input *SetPluginStatusInput) (*GetPluginOutput, error) {
	p, err := h.registry.SetStatus(ctx, input.PluginID, trigger.PluginStatus(input.Body.Status))
	if err != nil {
		return nil, failure(h.logger, "set plugin status", err)
	}

	h.logger.Info("plugin status changed", "id", p.ID, "status", p.Status)
	return &GetPluginOutput{Body: pluginToResponse(p)}, nil
}

func (h *PluginHandler) DeletePlugin(ctx context.Context, input *DeletePluginInput) (*struct{}, error) {
	if err := h.registry.Delete(ctx, input.PluginID); err != nil {
		return nil, failure(h.logger, "delete plugin", err)
	}

	h.logger.Info("plugin deleted", "id", input.PluginID)
	return nil, nil
}

func pluginToResponse(p *trigger.Plugin) PluginResponse {
	sheets := make([]string, len(p.SubscribedSheets))
	for i, s := range p.SubscribedSheets {
		sheets[i] = string(s)
	}
	return PluginResponse{
		ID:               p.ID,
		Name:             p.Name,
		Endpoint:         p.Endpoint,
		SubscribedSheets: sheets,
		Status:           string(p.Status),
		CreatedAt:        p.CreatedAt,
	}
}
