package rank

import (
	"math"
	"strconv"

	"github.com/sells-group/placemap/internal/model"
)

// NotAvailable is displayed for missing or invalid values.
const NotAvailable = "N/A"

// FormatValue renders a chart value label: densities as plain integers,
// populations and currency compacted to thousands ("715.5K", "$85.9K"),
// percentages with one decimal.
func FormatValue(v float64, f model.Format) string {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 || v == model.Sentinel {
		return NotAvailable
	}
	switch f {
	case model.FormatDensity:
		return plain(v)
	case model.FormatCount:
		return compact(v)
	case model.FormatPercent:
		return strconv.FormatFloat(v, 'f', 1, 64) + "%"
	default:
		return "$" + compact(v)
	}
}

func compact(v float64) string {
	if v >= 1000 {
		return strconv.FormatFloat(v/1000, 'f', 1, 64) + "K"
	}
	return plain(v)
}

func plain(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
