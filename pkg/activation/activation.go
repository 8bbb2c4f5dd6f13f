// Package activation provides the squashing functions applied to raw node
// inputs during simulation.
package activation

import (
	"math"
	"strings"

	"github.com/mettamodeler/mettasim/pkg/model"
)

// Func maps a raw weighted input to a node's next activation value.
type Func func(float64) float64

// Sigmoid squashes into (0, 1).
func Sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// Tanh squashes into (-1, 1).
func Tanh(x float64) float64 {
	return math.Tanh(x)
}

// ReLU clips negative input to zero and leaves positive input unbounded.
func ReLU(x float64) float64 {
	return math.Max(0, x)
}

// DefaultName is used when a request does not name a function.
const DefaultName = "sigmoid"

var byName = map[string]Func{
	"sigmoid": Sigmoid,
	"tanh":    Tanh,
	"relu":    ReLU,
}

// ByName resolves a function by its case-insensitive name. An empty name
// resolves to the default. Unknown names are an input error.
func ByName(name string) (Func, error) {
	if name == "" {
		name = DefaultName
	}
	f, ok := byName[strings.ToLower(name)]
	if !ok {
		return nil, model.Invalidf("unknown activation function %q", name)
	}
	return f, nil
}

// Names returns the supported function names.
func Names() []string {
	return []string{"sigmoid", "tanh", "relu"}
}
