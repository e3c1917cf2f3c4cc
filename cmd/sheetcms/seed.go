package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ryanbastic/go-sheetcms/internal/idgen"
	"github.com/ryanbastic/go-sheetcms/internal/repository"
	"github.com/ryanbastic/go-sheetcms/internal/schema"
)

// defaultSettings are the site settings the admin console expects to find.
var defaultSettings = []struct{ key, value, typ string }{
	{"siteName", "My Website", "string"},
	{"siteDescription", "A generic website description.", "string"},
	{"contactEmail", "contact@example.com", "string"},
	{"contactPhone", "+1 234 567 8900", "string"},
	{"address", "123 Web Street, Internet City", "string"},
	{"facebook", "", "string"},
	{"twitter", "", "string"},
	{"instagram", "", "string"},
	{"linkedin", "", "string"},
	{"postsPerPage", "10", "number"},
	{"maintenanceMode", "false", "boolean"},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert default site settings that are not set yet",
	RunE:  seed,
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

func seed(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := setup(ctx)
	if err != nil {
		return err
	}
	n, err := seedSettings(ctx, a.repo)
	if err != nil {
		return err
	}
	a.logger.Info("settings seeded", "created", n, "skipped", len(defaultSettings)-n)
	return nil
}

// seedSettings creates every default setting whose key is missing and
// returns how many it created. Existing values are never overwritten.
func seedSettings(ctx context.Context, repo *repository.Repository) (int, error) {
	created := 0
	for _, s := range defaultSettings {
		exists, err := repo.ExistsByField(ctx, schema.Settings, "setting_key", s.key, "")
		if err != nil {
			return created, err
		}
		if exists {
			continue
		}
		_, err = repo.Create(ctx, schema.Settings, map[string]string{
			schema.FieldID:  idgen.ForSheet(schema.Settings),
			"setting_key":   s.key,
			"setting_value": s.value,
			"setting_type":  s.typ,
		})
		if err != nil {
			return created, fmt.Errorf("seed %s: %w", s.key, err)
		}
		created++
	}
	return created, nil
}
