package main

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"

	"github.com/ryanbastic/go-sheetcms/internal/storage"
)

var initSheetsCmd = &cobra.Command{
	Use:   "init-sheets",
	Short: "Write header rows to empty sheets",
	Long: `Write the registered header row to every sheet whose first row is empty.
Sheets that already have headers are left alone; run "check" to compare them.`,
	RunE: initSheets,
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Report sheets whose header row differs from the schema",
	RunE:  check,
}

func init() {
	rootCmd.AddCommand(initSheetsCmd)
	rootCmd.AddCommand(checkCmd)
}

func initSheets(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := setup(ctx)
	if err != nil {
		return err
	}
	done, err := storage.InitializeSheets(ctx, a.store, a.registry)
	for _, sheet := range done {
		a.logger.Info("sheet initialised", "sheet", sheet)
	}
	if err != nil {
		return err
	}
	a.logger.Info("sheets ready", "initialised", len(done), "total", len(a.registry.Sheets()))
	return nil
}

func check(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := setup(ctx)
	if err != nil {
		return err
	}
	var errs *multierror.Error
	drifted := 0
	for _, sheet := range a.registry.Sheets() {
		s, err := a.registry.Lookup(sheet)
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		missing, err := storage.HeaderDrift(ctx, a.store, s)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("check %s: %w", sheet, err))
			continue
		}
		if len(missing) > 0 {
			drifted++
			a.logger.Warn("header drift", "sheet", sheet, "missing_or_moved", strings.Join(missing, ","))
		}
	}
	if err := errs.ErrorOrNil(); err != nil {
		return err
	}
	if drifted > 0 {
		return fmt.Errorf("%d sheet(s) have header drift", drifted)
	}
	a.logger.Info("all sheet headers match")
	return nil
}
