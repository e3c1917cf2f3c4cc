package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"sync"

	"github.com/danielgtaylor/huma/v2"

	"github.com/ryanbastic/go-sheetcms/internal/auth"
	"github.com/ryanbastic/go-sheetcms/internal/idgen"
	"github.com/ryanbastic/go-sheetcms/internal/record"
	"github.com/ryanbastic/go-sheetcms/internal/repository"
	"github.com/ryanbastic/go-sheetcms/internal/schema"
)

// Setting value types.
const (
	SettingString  = "string"
	SettingNumber  = "number"
	SettingBoolean = "boolean"
	SettingJSON    = "json"
)

type Setting struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
	Type  string `json:"type" enum:"string,number,boolean,json"`
}

type SettingsOutput struct {
	Body map[string]any
}

type SettingKeyInput struct {
	Key string `path:"key" doc:"Setting key"`
}

type SettingOutput struct {
	Body Setting
}

type PutSettingInput struct {
	Key  string `path:"key" doc:"Setting key"`
	Body struct {
		Value any    `json:"value"`
		Type  string `json:"type,omitempty" enum:"string,number,boolean,json"`
	}
}

type PutSettingsInput struct {
	Body map[string]any
}

// SettingHandler exposes the settings sheet as a typed key/value map.
type SettingHandler struct {
	repo   *repository.Repository
	logger *slog.Logger

	// mu serialises upserts so a key is never appended twice.
	mu sync.Mutex
}

func NewSettingHandler(repo *repository.Repository, logger *slog.Logger) *SettingHandler {
	return &SettingHandler{repo: repo, logger: logger}
}

func registerSettingRoutes(api huma.API, h *SettingHandler, g *guard) {
	tags := []string{"settings"}

	huma.Register(api, huma.Operation{
		OperationID: "list-settings",
		Method:      http.MethodGet,
		Path:        "/api/settings",
		Summary:     "All settings as a typed map",
		Tags:        tags,
	}, h.List)

	huma.Register(api, huma.Operation{
		OperationID: "get-setting",
		Method:      http.MethodGet,
		Path:        "/api/settings/{key}",
		Summary:     "One setting",
		Tags:        tags,
	}, h.Get)

	huma.Register(api, huma.Operation{
		OperationID: "put-setting",
		Method:      http.MethodPut,
		Path:        "/api/settings/{key}",
		Summary:     "Create or replace a setting",
		Tags:        tags,
		Middlewares: g.require(auth.RoleAdmin),
		Security:    bearer,
	}, h.Put)

	huma.Register(api, huma.Operation{
		OperationID: "put-settings",
		Method:      http.MethodPut,
		Path:        "/api/settings",
		Summary:     "Create or replace several settings",
		Tags:        tags,
		Middlewares: g.require(auth.RoleAdmin),
		Security:    bearer,
	}, h.PutMany)
}

// typedValue decodes a stored setting. Values that do not parse as their
// declared type are returned as strings.
func typedValue(rec record.Record) any {
	raw := rec.Get("setting_value")
	switch rec.Get("setting_type") {
	case SettingNumber:
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return f
		}
	case SettingBoolean:
		if b, err := strconv.ParseBool(raw); err == nil {
			return b
		}
	case SettingJSON:
		if json.Valid([]byte(raw)) {
			return json.RawMessage(raw)
		}
	}
	return raw
}

// encodeSetting stringifies v and infers its type when none is given.
func encodeSetting(v any, typ string) (string, string, error) {
	if typ == "" {
		switch v.(type) {
		case float64, json.Number:
			typ = SettingNumber
		case bool:
			typ = SettingBoolean
		case map[string]any, []any:
			typ = SettingJSON
		default:
			typ = SettingString
		}
	}
	fields, err := toFields(map[string]any{"v": v})
	if err != nil {
		return "", "", err
	}
	raw := fields["v"]
	switch typ {
	case SettingNumber:
		if _, err := strconv.ParseFloat(raw, 64); err != nil {
			return "", "", fmt.Errorf("%w: %q is not a number", schema.ErrInvalidField, raw)
		}
	case SettingBoolean:
		if _, err := strconv.ParseBool(raw); err != nil {
			return "", "", fmt.Errorf("%w: %q is not a boolean", schema.ErrInvalidField, raw)
		}
	case SettingJSON:
		if s, ok := v.(string); ok {
			raw = s
		}
		if !json.Valid([]byte(raw)) {
			return "", "", fmt.Errorf("%w: value is not valid JSON", schema.ErrInvalidField)
		}
	}
	return raw, typ, nil
}

func (h *SettingHandler) List(ctx context.Context, _ *MeInput) (*SettingsOutput, error) {
	recs, err := h.repo.ListAll(ctx, schema.Settings)
	if err != nil {
		return nil, failure(h.logger, "list settings", err)
	}
	out := make(map[string]any, len(recs))
	for _, rec := range recs {
		if key := rec.Get("setting_key"); key != "" {
			out[key] = typedValue(rec)
		}
	}
	return &SettingsOutput{Body: out}, nil
}

func settingOut(rec record.Record) *SettingOutput {
	typ := rec.Get("setting_type")
	if typ == "" {
		typ = SettingString
	}
	return &SettingOutput{Body: Setting{Key: rec.Get("setting_key"), Value: typedValue(rec), Type: typ}}
}

func (h *SettingHandler) Get(ctx context.Context, in *SettingKeyInput) (*SettingOutput, error) {
	matches, err := h.repo.GetByField(ctx, schema.Settings, "setting_key", in.Key)
	if err != nil {
		return nil, failure(h.logger, "get setting", err)
	}
	if len(matches) == 0 {
		return nil, huma.Error404NotFound(fmt.Sprintf("setting %q not found", in.Key))
	}
	return settingOut(matches[0]), nil
}

func (h *SettingHandler) Put(ctx context.Context, in *PutSettingInput) (*SettingOutput, error) {
	raw, typ, err := encodeSetting(in.Body.Value, in.Body.Type)
	if err != nil {
		return nil, failure(h.logger, "put setting", err)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	rec, err := h.upsert(ctx, in.Key, raw, typ)
	if err != nil {
		return nil, failure(h.logger, "put setting", err)
	}
	return settingOut(rec), nil
}

func (h *SettingHandler) PutMany(ctx context.Context, in *PutSettingsInput) (*SettingsOutput, error) {
	keys := make([]string, 0, len(in.Body))
	for k := range in.Body {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	type entry struct{ raw, typ string }
	encoded := make(map[string]entry, len(keys))
	for _, k := range keys {
		raw, typ, err := encodeSetting(in.Body[k], "")
		if err != nil {
			return nil, failure(h.logger, "put settings", fmt.Errorf("%s: %w", k, err))
		}
		encoded[k] = entry{raw, typ}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[string]any, len(keys))
	for _, k := range keys {
		rec, err := h.upsert(ctx, k, encoded[k].raw, encoded[k].typ)
		if err != nil {
			return nil, failure(h.logger, "put settings", err)
		}
		out[k] = typedValue(rec)
	}
	return &SettingsOutput{Body: out}, nil
}

// upsert must be called with mu held.
func (h *SettingHandler) upsert(ctx context.Context, key, raw, typ string) (record.Record, error) {
	if key == "" {
		return record.Record{}, fmt.Errorf("%w: setting key is required", errBadRequest)
	}
	matches, err := h.repo.GetByField(ctx, schema.Settings, "setting_key", key)
	if err != nil {
		return record.Record{}, err
	}
	fields := map[string]string{"setting_value": raw, "setting_type": typ}
	if len(matches) > 0 {
		rec, ok, err := h.repo.Update(ctx, schema.Settings, matches[0].ID(), fields)
		if err != nil || ok {
			return rec, err
		}
	}
	fields[schema.FieldID] = idgen.ForSheet(schema.Settings)
	fields["setting_key"] = key
	return h.repo.Create(ctx, schema.Settings, fields)
}
