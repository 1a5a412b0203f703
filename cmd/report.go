package main

import (
	"context"
	"errors"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/placemap/internal/aggregate"
	"github.com/sells-group/placemap/internal/classify"
	"github.com/sells-group/placemap/internal/model"
	"github.com/sells-group/placemap/internal/rank"
)

var (
	reportMetric string
	reportTop    int
	reportFormat string
)

// metricReport is the legend and chart for one metric.
type metricReport struct {
	Metric model.Metric          `json:"metric" yaml:"metric"`
	Legend []classify.LegendEntry `json:"legend" yaml:"legend"`
	Chart  rank.Chart            `json:"chart" yaml:"chart"`
}

// placeReport summarizes a loaded collection.
type placeReport struct {
	Places   int                 `json:"places" yaml:"places"`
	CDPs     int                 `json:"cdps" yaml:"cdps"`
	Averages *aggregate.Averages `json:"averages,omitempty" yaml:"averages,omitempty"`
	Metrics  []metricReport      `json:"metrics" yaml:"metrics"`
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print legend counts, top places and state averages",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("report"); err != nil {
			return err
		}
		metrics, err := parseReportMetrics(reportMetric)
		if err != nil {
			return err
		}
		top := reportTop
		if top <= 0 {
			top = cfg.Chart.TopN
		}

		places, err := loadPlaces(cmd.Context(), cfg.Source)
		if err != nil {
			return err
		}

		rep, err := buildReport(cmd.Context(), places, metrics, top)
		if err != nil {
			return err
		}
		return writeOutput(cmd.OutOrStdout(), reportFormat, rep)
	},
}

func parseReportMetrics(s string) ([]model.Metric, error) {
	if strings.EqualFold(strings.TrimSpace(s), "all") {
		return model.Metrics, nil
	}
	m, err := model.ParseMetric(s)
	if err != nil {
		return nil, err
	}
	return []model.Metric{m}, nil
}

// buildReport computes each metric section concurrently. An all-CDP
// collection reports no averages rather than failing.
func buildReport(ctx context.Context, places []model.Place, metrics []model.Metric, top int) (*placeReport, error) {
	rep := &placeReport{
		Places:  len(places),
		Metrics: make([]metricReport, len(metrics)),
	}
	for i := range places {
		if places[i].CDP {
			rep.CDPs++
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, m := range metrics {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rep.Metrics[i] = metricReport{
				Metric: m,
				Legend: classify.Legend(places, m),
				Chart:  rank.BuildChart(places, m, top),
			}
			return nil
		})
	}
	g.Go(func() error {
		avg, err := aggregate.StateAverages(places)
		if errors.Is(err, aggregate.ErrEmptyInput) {
			zap.L().Warn("report: no non-CDP places, skipping averages")
			return nil
		}
		if err != nil {
			return err
		}
		rep.Averages = &avg
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "build report")
	}
	return rep, nil
}

func init() {
	reportCmd.Flags().StringVar(&reportMetric, "metric", "all", "metric to report: population, density or all")
	reportCmd.Flags().IntVar(&reportTop, "top", 0, "number of ranked places (default from config)")
	reportCmd.Flags().StringVar(&reportFormat, "format", formatJSON, "output format: json or yaml")
	rootCmd.AddCommand(reportCmd)
}
