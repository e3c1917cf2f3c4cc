package api

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"sync"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/sync/errgroup"

	"github.com/ryanbastic/go-sheetcms/internal/auth"
	"github.com/ryanbastic/go-sheetcms/internal/record"
	"github.com/ryanbastic/go-sheetcms/internal/repository"
	"github.com/ryanbastic/go-sheetcms/internal/schema"
)

type StatsOutput struct {
	Body map[string]int
}

type OverviewOutput struct {
	Body map[string]map[string]int
}

type RecentInput struct {
	Limit int `query:"limit" minimum:"1" maximum:"100" default:"10" doc:"Number of entries"`
}

type Activity struct {
	Sheet     schema.Sheet `json:"sheet"`
	ID        string       `json:"id"`
	Title     string       `json:"title"`
	Status    string       `json:"status,omitempty"`
	CreatedAt string       `json:"created_at"`
}

type RecentOutput struct {
	Body []Activity
}

// StatsHandler serves dashboard counters. Each sheet is read concurrently.
type StatsHandler struct {
	repo   *repository.Repository
	logger *slog.Logger
}

func NewStatsHandler(repo *repository.Repository, logger *slog.Logger) *StatsHandler {
	return &StatsHandler{repo: repo, logger: logger}
}

func registerStatsRoutes(api huma.API, h *StatsHandler, g *guard) {
	viewer := g.require(auth.RoleViewer)
	tags := []string{"stats"}

	huma.Register(api, huma.Operation{
		OperationID: "stats",
		Method:      http.MethodGet,
		Path:        "/api/stats",
		Summary:     "Record counts per sheet",
		Tags:        tags,
		Middlewares: viewer,
		Security:    bearer,
	}, h.Stats)

	huma.Register(api, huma.Operation{
		OperationID: "stats-overview",
		Method:      http.MethodGet,
		Path:        "/api/stats/overview",
		Summary:     "Counts broken down by status",
		Tags:        tags,
		Middlewares: viewer,
		Security:    bearer,
	}, h.Overview)

	huma.Register(api, huma.Operation{
		OperationID: "stats-recent",
		Method:      http.MethodGet,
		Path:        "/api/stats/recent",
		Summary:     "Most recently created records",
		Tags:        tags,
		Middlewares: viewer,
		Security:    bearer,
	}, h.Recent)
}

// counted are the sheets the dashboard reports on, keyed by response name.
var counted = map[string]schema.Sheet{
	"content":      schema.WebsiteContent,
	"blog":         schema.BlogPosts,
	"products":     schema.Products,
	"categories":   schema.Categories,
	"menu":         schema.MenuItems,
	"testimonials": schema.Testimonials,
	"faqs":         schema.FAQs,
	"images":       schema.Images,
	"messages":     schema.ContactMessages,
	"funds":        schema.Funds,
	"users":        schema.AdminUsers,
}

// breakdowns lists the statuses counted per sheet in the overview.
var breakdowns = map[string][]string{
	"blog":         {"published", "draft", "archived"},
	"products":     {"active", "inactive", "out_of_stock"},
	"testimonials": {"active", "inactive"},
	"faqs":         {"active", "inactive"},
	"messages":     {"unread", "read", "replied", "archived"},
	"funds":        {"pending", "approved", "rejected"},
	"users":        {"active", "inactive"},
}

func (h *StatsHandler) Stats(ctx context.Context, _ *MeInput) (*StatsOutput, error) {
	var (
		mu  sync.Mutex
		out = make(map[string]int, len(counted)+2)
	)
	g, ctx := errgroup.WithContext(ctx)
	for name, sheet := range counted {
		g.Go(func() error {
			n, err := h.repo.Count(ctx, sheet, nil)
			if err != nil {
				return err
			}
			mu.Lock()
			out[name] = n
			mu.Unlock()
			return nil
		})
	}
	for name, c := range map[string]struct {
		sheet  schema.Sheet
		status string
	}{
		"unread_messages": {schema.ContactMessages, "unread"},
		"pending_funds":   {schema.Funds, "pending"},
	} {
		g.Go(func() error {
			n, err := h.repo.Count(ctx, c.sheet, map[string]string{"status": c.status})
			if err != nil {
				return err
			}
			mu.Lock()
			out[name] = n
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, failure(h.logger, "stats", err)
	}
	return &StatsOutput{Body: out}, nil
}

func (h *StatsHandler) Overview(ctx context.Context, _ *MeInput) (*OverviewOutput, error) {
	var (
		mu  sync.Mutex
		out = make(map[string]map[string]int, len(counted))
	)
	g, ctx := errgroup.WithContext(ctx)
	for name, sheet := range counted {
		g.Go(func() error {
			recs, err := h.repo.ListAll(ctx, sheet)
			if err != nil {
				return err
			}
			counts := map[string]int{"total": len(recs)}
			for _, st := range breakdowns[name] {
				counts[st] = 0
			}
			for _, rec := range recs {
				if _, tracked := counts[rec.Get("status")]; tracked && rec.Get("status") != "total" {
					counts[rec.Get("status")]++
				}
			}
			mu.Lock()
			out[name] = counts
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, failure(h.logger, "stats overview", err)
	}
	return &OverviewOutput{Body: out}, nil
}

// recentSheets feed the activity list.
var recentSheets = []schema.Sheet{
	schema.BlogPosts,
	schema.Products,
	schema.ContactMessages,
	schema.Funds,
	schema.Testimonials,
}

func titleOf(rec record.Record) string {
	for _, f := range []string{"title", "name", "label", "question", "subject"} {
		if v := rec.Get(f); v != "" {
			return v
		}
	}
	return rec.ID()
}

func (h *StatsHandler) Recent(ctx context.Context, in *RecentInput) (*RecentOutput, error) {
	results := make([][]Activity, len(recentSheets))
	g, gctx := errgroup.WithContext(ctx)
	for i, sheet := range recentSheets {
		g.Go(func() error {
			page, err := h.repo.Query(gctx, sheet, record.Query{
				Page:          1,
				Limit:         in.Limit,
				SortField:     schema.FieldCreatedAt,
				SortDirection: record.Desc,
			})
			if err != nil {
				return err
			}
			acts := make([]Activity, len(page.Items))
			for j, rec := range page.Items {
				acts[j] = Activity{
					Sheet:     sheet,
					ID:        rec.ID(),
					Title:     titleOf(rec),
					Status:    rec.Get("status"),
					CreatedAt: rec.Get(schema.FieldCreatedAt),
				}
			}
			results[i] = acts
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, failure(h.logger, "stats recent", err)
	}

	var all []Activity
	for _, acts := range results {
		all = append(all, acts...)
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].CreatedAt > all[j].CreatedAt })
	if len(all) > in.Limit {
		all = all[:in.Limit]
	}
	if all == nil {
		all = []Activity{}
	}
	return &RecentOutput{Body: all}, nil
}
