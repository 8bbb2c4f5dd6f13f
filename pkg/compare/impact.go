package compare

import (
	"math"

	"github.com/mettamodeler/mettasim/pkg/sim"
	"gonum.org/v1/gonum/integrate"
)

// epsilon guards divisions and near-zero sign decisions throughout the
// impact metrics.
const epsilon = 1e-8

// Impact describes how one node's scenario trajectory diverged from its
// baseline trajectory.
type Impact struct {
	// Delta is the final-state difference, scenario minus baseline.
	Delta float64 `json:"delta"`

	// NormalizedChangePercent scales Delta by the larger of the two final
	// magnitudes, as a percentage.
	NormalizedChangePercent float64 `json:"normalizedChangePercent"`

	// AUC is the trapezoidal integral of the difference series over the
	// iteration index; its sign is the net direction of sustained deviation.
	AUC float64 `json:"auc"`

	// MaxDifference is the signed difference-series element with the
	// largest magnitude.
	MaxDifference float64 `json:"maxDifference"`

	// Direction is a fuzzy label such as "High Increase", "Temporary Low
	// Decrease", "Oscillating (Medium)" or "No Change".
	Direction string `json:"direction"`
}

// Analyze computes impact metrics for every node present in both final
// states. Magnitude labels are normalized against the largest divergence
// seen among non-clamped nodes, so labels stay comparable across nodes of
// different scales.
func Analyze(base, scen *sim.Result) map[string]Impact {
	clamped := make(map[string]bool, len(scen.ClampedNodes))
	for _, id := range scen.ClampedNodes {
		clamped[id] = true
	}

	diffs := make(map[string][]float64, len(scen.TimeSeries))
	for id, scenSeries := range scen.TimeSeries {
		baseSeries, ok := base.TimeSeries[id]
		if !ok {
			continue
		}
		// Runs may stop at different iterations; compare the common prefix.
		n := len(scenSeries)
		if len(baseSeries) < n {
			n = len(baseSeries)
		}
		diff := make([]float64, n)
		for t := 0; t < n; t++ {
			diff[t] = scenSeries[t] - baseSeries[t]
		}
		diffs[id] = diff
	}

	globalMaxChange := 0.0
	for id, diff := range diffs {
		if clamped[id] {
			continue
		}
		if peak, _ := peakOf(diff); peak > globalMaxChange {
			globalMaxChange = peak
		}
	}

	impacts := make(map[string]Impact, len(scen.FinalState))
	for id, scenFinal := range scen.FinalState {
		baseFinal, ok := base.FinalState[id]
		if !ok {
			continue
		}
		diff := diffs[id]
		delta := scenFinal.Value - baseFinal.Value
		scale := math.Max(math.Abs(scenFinal.Value), math.Max(math.Abs(baseFinal.Value), epsilon))
		auc := aucOf(diff)

		_, signedPeak := peakOf(diff)
		impacts[id] = Impact{
			Delta:                   delta,
			NormalizedChangePercent: delta / scale * 100,
			AUC:                     auc,
			MaxDifference:           signedPeak,
			Direction:               classify(diff, auc, globalMaxChange),
		}
	}
	return impacts
}

// classify applies an ordered rule cascade; later rules only apply when
// earlier ones did not match.
func classify(diff []float64, auc, globalMaxChange float64) string {
	maxAbs, _ := peakOf(diff)

	rel := maxAbs / (globalMaxChange + epsilon)
	if rel <= 0.1 {
		return "No Change"
	}

	magnitude := "Low"
	switch {
	case rel > 0.7:
		magnitude = "High"
	case rel > 0.3:
		magnitude = "Medium"
	}

	if signCrossings(diff) > 1 {
		return "Oscillating (" + magnitude + ")"
	}

	finalDelta := diff[len(diff)-1]
	if math.Abs(finalDelta) < math.Max(epsilon, 0.05*maxAbs) {
		// The node deviated but returned to its baseline; the AUC sign
		// tells which way the excursion went.
		if auc < 0 {
			return "Temporary " + magnitude + " Decrease"
		}
		return "Temporary " + magnitude + " Increase"
	}

	switch {
	case finalDelta > epsilon:
		return magnitude + " Increase"
	case finalDelta < -epsilon:
		return magnitude + " Decrease"
	case auc > epsilon:
		return magnitude + " Increase"
	case auc < -epsilon:
		return magnitude + " Decrease"
	}
	return "No Change"
}

// peakOf returns the largest absolute value in the series and the signed
// element that produced it. Ties keep the earliest element.
func peakOf(diff []float64) (maxAbs, signed float64) {
	for _, v := range diff {
		if a := math.Abs(v); a > maxAbs {
			maxAbs, signed = a, v
		}
	}
	return maxAbs, signed
}

func aucOf(diff []float64) float64 {
	if len(diff) < 2 {
		return 0
	}
	x := make([]float64, len(diff))
	for i := range x {
		x[i] = float64(i)
	}
	return integrate.Trapezoidal(x, diff)
}

func signCrossings(diff []float64) int {
	crossings := 0
	prev := 0
	for _, v := range diff {
		s := 0
		switch {
		case v > 0:
			s = 1
		case v < 0:
			s = -1
		default:
			continue
		}
		if prev != 0 && s != prev {
			crossings++
		}
		prev = s
	}
	return crossings
}
