package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/placemap/internal/config"
	"github.com/sells-group/placemap/internal/db"
	"github.com/sells-group/placemap/internal/source"
)

var (
	importTo  string
	importDSN string
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Copy the configured place source into postgres or sqlite",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("import"); err != nil {
			return err
		}
		if importDSN == "" {
			return eris.New("import: --dsn is required")
		}
		if importTo == cfg.Source.Driver && (importDSN == cfg.Source.Path || importDSN == cfg.Source.DatabaseURL) {
			return eris.New("import: source and destination are the same")
		}

		ctx := cmd.Context()
		places, err := loadPlaces(ctx, cfg.Source)
		if err != nil {
			return err
		}

		var n int64
		switch importTo {
		case config.DriverSQLite:
			n, err = source.WriteSQLite(ctx, importDSN, places)
		case config.DriverPostgres:
			pool, cerr := db.Connect(ctx, importDSN)
			if cerr != nil {
				return cerr
			}
			defer pool.Close()
			n, err = source.WritePostgres(ctx, pool, places)
		default:
			return eris.Errorf("import: unknown destination %q (want sqlite or postgres)", importTo)
		}
		if err != nil {
			return eris.Wrap(err, "import")
		}

		zap.L().Info("import complete",
			zap.String("from", cfg.Source.Driver),
			zap.String("to", importTo),
			zap.Int("places", len(places)),
			zap.Int64("rows", n),
		)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importTo, "to", config.DriverSQLite, "destination: sqlite or postgres")
	importCmd.Flags().StringVar(&importDSN, "dsn", "", "destination sqlite path or postgres URL")
	rootCmd.AddCommand(importCmd)
}
