package trigger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ryanbastic/go-sheetcms/internal/record"
	"github.com/ryanbastic/go-sheetcms/internal/repository"
	"github.com/ryanbastic/go-sheetcms/internal/schema"
)

// PluginStore is a persistent storage interface for trigger plugins.
type PluginStore interface {
	SavePlugin(ctx context.Context, p *Plugin) error
	UpdatePluginStatus(ctx context.Context, id string, status PluginStatus) error
	DeletePlugin(ctx context.Context, id string) error
	ListPlugins(ctx context.Context) ([]*Plugin, error)
}

// SheetPluginStore keeps plugins as rows of the webhooks sheet.
type SheetPluginStore struct {
	repo *repository.Repository
}

var _ PluginStore = (*SheetPluginStore)(nil)

func NewSheetPluginStore(repo *repository.Repository) *SheetPluginStore {
	return &SheetPluginStore{repo: repo}
}

func (s *SheetPluginStore) SavePlugin(ctx context.Context, p *Plugin) error {
	sheets, err := json.Marshal(p.SubscribedSheets)
	if err != nil {
		return fmt.Errorf("encode subscribed sheets: %w", err)
	}
	_, err = s.repo.Create(ctx, schema.Webhooks, map[string]string{
		schema.FieldID:      p.ID,
		"name":              p.Name,
		"endpoint":          p.Endpoint,
		"subscribed_sheets": string(sheets),
		"status":            string(p.Status),
	})
	if err != nil {
		return fmt.Errorf("save plugin: %w", err)
	}
	return nil
}

func (s *SheetPluginStore) UpdatePluginStatus(ctx context.Context, id string, status PluginStatus) error {
	_, ok, err := s.repo.Update(ctx, schema.Webhooks, id, map[string]string{"status": string(status)})
	if err != nil {
		return fmt.Errorf("update plugin: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrPluginNotFound, id)
	}
	return nil
}

func (s *SheetPluginStore) DeletePlugin(ctx context.Context, id string) error {
	ok, err := s.repo.Remove(ctx, schema.Webhooks, id)
	if err != nil {
		return fmt.Errorf("delete plugin: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrPluginNotFound, id)
	}
	return nil
}

func (s *SheetPluginStore) ListPlugins(ctx context.Context) ([]*Plugin, error) {
	recs, err := s.repo.ListAll(ctx, schema.Webhooks)
	if err != nil {
		return nil, fmt.Errorf("list plugins: %w", err)
	}
	plugins := make([]*Plugin, 0, len(recs))
	for _, rec := range recs {
		p, err := pluginFromRecord(rec)
		if err != nil {
			return nil, err
		}
		plugins = append(plugins, p)
	}
	return plugins, nil
}

func pluginFromRecord(rec record.Record) (*Plugin, error) {
	p := &Plugin{
		ID:       rec.ID(),
		Name:     rec.Get("name"),
		Endpoint: rec.Get("endpoint"),
		Status:   PluginStatus(rec.Get("status")),
	}
	if rec.Get("subscribed_sheets") != "" {
		if err := rec.JSON("subscribed_sheets", &p.SubscribedSheets); err != nil {
			return nil, fmt.Errorf("plugin %s: %w", p.ID, err)
		}
	}
	if t, ok := rec.Time(schema.FieldCreatedAt); ok {
		p.CreatedAt = t
	}
	if !p.Status.Valid() {
		p.Status = PluginStatusInactive
	}
	return p, nil
}
