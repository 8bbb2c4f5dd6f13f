// Package output renders simulation results for the terminal.
package output

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fatih/color"

	"github.com/mettamodeler/mettasim/pkg/compare"
	"github.com/mettamodeler/mettasim/pkg/sim"
)

// PrintSimulationReport prints a nicely formatted simulation report with colors
func PrintSimulationReport(model string, result *sim.Result) {
	// Color definitions
	bold := color.New(color.Bold)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	cyan := color.New(color.FgCyan)

	// Header
	bold.Println("MettaSim - Simulation Report")
	bold.Println("============================")
	if model != "" {
		fmt.Printf("Model: %s\n", model)
	}

	if result.Converged {
		green.Printf("Converged: yes (%d iterations)\n", result.Iterations)
	} else {
		yellow.Printf("Converged: no (stopped after %d iterations)\n", result.Iterations)
	}
	if len(result.ClampedNodes) > 0 {
		cyan.Printf("Clamped: %s\n", strings.Join(result.ClampedNodes, ", "))
	}
	fmt.Println()

	clamped := make(map[string]bool, len(result.ClampedNodes))
	for _, id := range result.ClampedNodes {
		clamped[id] = true
	}

	// Final state table
	bold.Println("FINAL STATE:")
	for _, id := range sortedIDs(result.FinalState) {
		node := result.FinalState[id]
		label := node.Label
		if label == "" {
			label = id
		}
		fmt.Printf("  %-24s %9.4f", label, node.Value)
		if clamped[id] {
			cyan.Printf("  (clamped)")
		}
		fmt.Println()
	}
	fmt.Println()

	if result.Converged {
		green.Println("✓ Simulation converged")
	} else {
		yellow.Println("Simulation stopped at the iteration limit")
	}
}

// PrintComparisonReport prints a baseline/scenario comparison with per-node
// impact classification
func PrintComparisonReport(model string, cmp *compare.Comparison) {
	bold := color.New(color.Bold)
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)
	yellow := color.New(color.FgYellow)
	cyan := color.New(color.FgCyan)

	bold.Println("MettaSim - Scenario Comparison")
	bold.Println("==============================")
	if model != "" {
		fmt.Printf("Model: %s\n", model)
	}

	if cmp.Converged {
		green.Printf("Converged: yes (%d iterations)\n", cmp.Iterations)
	} else {
		yellow.Printf("Converged: no (stopped after %d iterations)\n", cmp.Iterations)
	}
	if len(cmp.ClampedNodes) > 0 {
		cyan.Printf("Clamped: %s\n", strings.Join(cmp.ClampedNodes, ", "))
	}
	fmt.Println()

	bold.Println("IMPACT:")
	fmt.Printf("  %-24s %9s %9s %9s  %s\n", "node", "baseline", "scenario", "delta", "direction")
	for _, id := range sortedIDs(cmp.DeltaFinalState) {
		label := cmp.DeltaFinalState[id].Label
		if label == "" {
			label = id
		}

		baseline := cmp.BaselineFinalState[id].Value
		scenario := cmp.ComparisonFinalState[id].Value
		delta := cmp.DeltaFinalState[id].Value
		impact := cmp.ImpactMetrics[id]

		fmt.Printf("  %-24s %9.4f %9.4f %+9.4f  ", label, baseline, scenario, delta)
		directionColor(impact.Direction, green, red, yellow).Printf("%s\n", impact.Direction)
	}
	fmt.Println()

	if cmp.Converged {
		green.Println("✓ Both runs converged")
	} else {
		yellow.Println("At least one run stopped at the iteration limit")
	}
}

// directionColor maps an impact direction label to a display color
func directionColor(direction string, green, red, yellow *color.Color) *color.Color {
	switch {
	case strings.Contains(direction, "Increase"):
		return green
	case strings.Contains(direction, "Decrease"):
		return red
	case strings.Contains(direction, "Oscillating"):
		return yellow
	default:
		return color.New()
	}
}

func sortedIDs[V any](m map[string]V) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
