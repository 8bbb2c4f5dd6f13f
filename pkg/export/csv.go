package export

import (
	"bytes"
	"encoding/csv"
	"sort"
	"strconv"

	"github.com/mettamodeler/mettasim/pkg/compare"
	"github.com/mettamodeler/mettasim/pkg/sim"
)

// TimeSeriesCSV renders a run's trajectories as one row per iteration,
// with an iteration column followed by one column per node in id order.
func TimeSeriesCSV(r *sim.Result) ([]byte, error) {
	ids := sortedKeys(r.TimeSeries)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := append([]string{"iteration"}, ids...)
	if err := w.Write(header); err != nil {
		return nil, err
	}

	// One row per recorded step. The shortest series bounds the row count,
	// so ragged hand-built payloads cannot index out of range.
	rows := 0
	for i, id := range ids {
		if n := len(r.TimeSeries[id]); i == 0 || n < rows {
			rows = n
		}
	}
	for t := 0; t < rows; t++ {
		row := make([]string, 0, len(ids)+1)
		row = append(row, strconv.Itoa(t))
		for _, id := range ids {
			row = append(row, formatFloat(r.TimeSeries[id][t]))
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// ComparisonCSV renders per-node impact metrics, one row per node in id
// order.
func ComparisonCSV(c *compare.Comparison) ([]byte, error) {
	ids := make([]string, 0, len(c.ImpactMetrics))
	for id := range c.ImpactMetrics {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{
		"node", "baselineFinal", "scenarioFinal", "delta",
		"normalizedChangePercent", "auc", "maxDifference", "direction",
	}
	if err := w.Write(header); err != nil {
		return nil, err
	}
	for _, id := range ids {
		impact := c.ImpactMetrics[id]
		row := []string{
			id,
			formatFloat(c.BaselineFinalState[id].Value),
			formatFloat(c.ComparisonFinalState[id].Value),
			formatFloat(impact.Delta),
			formatFloat(impact.NormalizedChangePercent),
			formatFloat(impact.AUC),
			formatFloat(impact.MaxDifference),
			impact.Direction,
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
