package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/siamwms/asrsd/internal/config"
	"github.com/siamwms/asrsd/internal/importer"
	"github.com/siamwms/asrsd/internal/printer"
	"github.com/siamwms/asrsd/internal/store"
)

var (
	importFile   string
	importDryRun bool
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import basket-to-shelf mapping data from a CSV file",
	Long: `Import loads basket-to-shelf assignments from a CSV export into the
database. Existing assignments are replaced; shelf occupancy is never
touched. Use --dry-run to preview without writing.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runImport(cmd.Context())
	},
}

func init() {
	importCmd.Flags().StringVarP(&importFile, "file", "f", "basket_data.csv", "path to the CSV file")
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "parse and preview without writing")
	rootCmd.AddCommand(importCmd)
}

func runImport(ctx context.Context) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return printer.Error("Invalid configuration", err.Error(), nil)
	}

	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		return printer.Error("Cannot open database", err.Error(), nil)
	}
	defer st.Close()

	printer.Step("Importing mappings from %s\n", importFile)
	res, err := importer.ImportFile(ctx, st, importFile, importDryRun)
	if err != nil {
		return printer.Error("Import failed", err.Error(), nil)
	}

	if res.DryRun {
		printer.Info("Dry run: %d rows parsed, %d skipped, nothing written\n", res.Total-res.Skipped, res.Skipped)
		return nil
	}
	printer.Success("Imported %d mappings (%d rows skipped)\n", res.Upserted, res.Skipped)
	return nil
}
