package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/placemap/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "placemap",
	Short: "Choropleth classification and linked highlighting for census places",
	Long:  "Loads municipal places with ACS demographics, classifies them into color buckets by population or density, ranks them, and serves synchronized map, legend and chart highlighting.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
