package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "sheetcms",
	Short: "Spreadsheet-backed content API",
	Long: `Serve website content, blog posts, products and admin accounts stored in a
Google Sheets spreadsheet, one sheet per record type.

Configuration is read from the environment. JWT_SECRET is always required.`,
	SilenceUsage: true,
}

// Execute runs the command line and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
