package main

import (
	"errors"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/placemap/internal/aggregate"
	"github.com/sells-group/placemap/internal/model"
	"github.com/sells-group/placemap/internal/rank"
)

var placeFormat string

// placeOutput is the detail card plus the statewide comparison.
type placeOutput struct {
	Detail       rank.Detail           `json:"detail" yaml:"detail"`
	Demographics *aggregate.Comparison `json:"demographics,omitempty" yaml:"demographics,omitempty"`
}

var placeCmd = &cobra.Command{
	Use:   "place <id>",
	Short: "Show the detail card and demographics for one place",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("report"); err != nil {
			return err
		}

		places, err := loadPlaces(cmd.Context(), cfg.Source)
		if err != nil {
			return err
		}

		out, err := describePlace(places, args[0])
		if err != nil {
			return err
		}
		return writeOutput(cmd.OutOrStdout(), placeFormat, out)
	},
}

// describePlace looks up id by place id, falling back to GEOID.
func describePlace(places []model.Place, id string) (*placeOutput, error) {
	p := findPlace(places, id)
	if p == nil {
		return nil, eris.Errorf("place %q not found", id)
	}

	out := &placeOutput{Detail: rank.BuildDetail(p)}
	avg, err := aggregate.StateAverages(places)
	switch {
	case errors.Is(err, aggregate.ErrEmptyInput):
		zap.L().Warn("place: no non-CDP places, skipping demographics", zap.String("id", id))
	case err != nil:
		return nil, eris.Wrap(err, "state averages")
	default:
		cmp := aggregate.Compare(p, avg)
		out.Demographics = &cmp
	}
	return out, nil
}

func findPlace(places []model.Place, id string) *model.Place {
	for i := range places {
		if places[i].ID == id {
			return &places[i]
		}
	}
	for i := range places {
		if places[i].GEOID != "" && places[i].GEOID == id {
			return &places[i]
		}
	}
	return nil
}

func init() {
	placeCmd.Flags().StringVar(&placeFormat, "format", formatJSON, "output format: json or yaml")
	rootCmd.AddCommand(placeCmd)
}
