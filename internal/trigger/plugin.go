package trigger

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/ryanbastic/go-sheetcms/internal/idgen"
	"github.com/ryanbastic/go-sheetcms/internal/schema"
)

// PluginStatus represents the activation state of a plugin.
type PluginStatus string

const (
	PluginStatusActive   PluginStatus = "active"
	PluginStatusInactive PluginStatus = "inactive"
)

func (s PluginStatus) Valid() bool {
	return s == PluginStatusActive || s == PluginStatusInactive
}

// ErrPluginNotFound is returned for an unknown plugin id.
var ErrPluginNotFound = errors.New("plugin not found")

// Plugin is an external JSON-RPC service that receives record-change notifications.
type Plugin struct {
	ID               string         `json:"id"`
	Name             string         `json:"name"`
	Endpoint         string         `json:"endpoint"`
	SubscribedSheets []schema.Sheet `json:"subscribed_sheets"`
	Status           PluginStatus   `json:"status"`
	CreatedAt        time.Time      `json:"created_at"`
}

func (p *Plugin) clone() *Plugin {
	c := *p
	c.SubscribedSheets = slices.Clone(p.SubscribedSheets)
	return &c
}

// PluginRegistry is a thread-safe view of registered plugins, written
// through to a PluginStore.
type PluginRegistry struct {
	mu      sync.RWMutex
	plugins map[string]*Plugin
	store   PluginStore
	now     func() time.Time
}

// NewPluginRegistry creates an empty registry. A nil store keeps plugins in
// memory only.
func NewPluginRegistry(store PluginStore) *PluginRegistry {
	return &PluginRegistry{
		plugins: make(map[string]*Plugin),
		store:   store,
		now:     time.Now,
	}
}

// Load replaces the registry contents with what the store holds.
func (r *PluginRegistry) Load(ctx context.Context) error {
	if r.store == nil {
		return nil
	}
	list, err := r.store.ListPlugins(ctx)
	if err != nil {
		return fmt.Errorf("load plugins: %w", err)
	}
	plugins := make(map[string]*Plugin, len(list))
	for _, p := range list {
		plugins[p.ID] = p
	}
	r.mu.Lock()
	r.plugins = plugins
	r.mu.Unlock()
	return nil
}

// Register assigns an ID and creation time, persists the plugin and adds it.
func (r *PluginRegistry) Register(ctx context.Context, p *Plugin) error {
	p.ID = idgen.ForSheet(schema.Webhooks)
	p.CreatedAt = r.now().UTC()
	if p.Status == "" {
		p.Status = PluginStatusActive
	}
	if r.store != nil {
		if err := r.store.SavePlugin(ctx, p); err != nil {
			return err
		}
	}
	r.mu.Lock()
	r.plugins[p.ID] = p.clone()
	r.mu.Unlock()
	return nil
}

// Get returns a copy of the plugin with id.
func (r *PluginRegistry) Get(id string) (*Plugin, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.plugins[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPluginNotFound, id)
	}
	return p.clone(), nil
}

// List returns all plugins, oldest first.
func (r *PluginRegistry) List() []*Plugin {
	r.mu.RLock()
	out := make([]*Plugin, 0, len(r.plugins))
	for _, p := range r.plugins {
		out = append(out, p.clone())
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Delete removes a plugin by ID from the store and the registry.
func (r *PluginRegistry) Delete(ctx context.Context, id string) error {
	if _, err := r.Get(id); err != nil {
		return err
	}
	if r.store != nil {
		if err := r.store.DeletePlugin(ctx, id); err != nil {
			return err
		}
	}
	r.mu.Lock()
	delete(r.plugins, id)
	r.mu.Unlock()
	return nil
}

// SetStatus activates or deactivates a plugin.
func (r *PluginRegistry) SetStatus(ctx context.Context, id string, status PluginStatus) (*Plugin, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("invalid plugin status %q", status)
	}
	if _, err := r.Get(id); err != nil {
		return nil, err
	}
	if r.store != nil {
		if err := r.store.UpdatePluginStatus(ctx, id, status); err != nil {
			return nil, err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.plugins[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPluginNotFound, id)
	}
	p.Status = status
	return p.clone(), nil
}

// ForSheet returns all active plugins subscribed to sheet.
func (r *PluginRegistry) ForSheet(sheet schema.Sheet) []*Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Plugin
	for _, p := range r.plugins {
		if p.Status != PluginStatusActive {
			continue
		}
		if slices.Contains(p.SubscribedSheets, sheet) {
			out = append(out, p.clone())
		}
	}
	return out
}

// Sheets returns every sheet some active plugin subscribes to.
func (r *PluginRegistry) Sheets() []schema.Sheet {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[schema.Sheet]struct{})
	for _, p := range r.plugins {
		if p.Status != PluginStatusActive {
			continue
		}
		for _, s := range p.SubscribedSheets {
			seen[s] = struct{}{}
		}
	}
	out := make([]schema.Sheet, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	slices.Sort(out)
	return out
}
