package activation

import (
	"errors"
	"math"
	"testing"

	"github.com/mettamodeler/mettasim/pkg/model"
)

func TestSigmoid(t *testing.T) {
	cases := []struct {
		in, want float64
	}{
		{0, 0.5},
		{1, 0.7310585786300049},
		{-1, 0.2689414213699951},
	}
	for _, c := range cases {
		if got := Sigmoid(c.in); math.Abs(got-c.want) > 1e-12 {
			t.Errorf("Sigmoid(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestTanhBounds(t *testing.T) {
	if got := Tanh(0); got != 0 {
		t.Errorf("Tanh(0) = %v, want 0", got)
	}
	if got := Tanh(10); got <= 0.999 || got >= 1 {
		t.Errorf("Tanh(10) = %v, want just below 1", got)
	}
	if got := Tanh(-10); got >= -0.999 || got <= -1 {
		t.Errorf("Tanh(-10) = %v, want just above -1", got)
	}
}

func TestReLU(t *testing.T) {
	if got := ReLU(-3); got != 0 {
		t.Errorf("ReLU(-3) = %v, want 0", got)
	}
	if got := ReLU(2.5); got != 2.5 {
		t.Errorf("ReLU(2.5) = %v, want 2.5", got)
	}
}

func TestByName(t *testing.T) {
	for _, name := range []string{"sigmoid", "Sigmoid", "TANH", "relu", ""} {
		f, err := ByName(name)
		if err != nil {
			t.Errorf("ByName(%q) returned error: %v", name, err)
		}
		if f == nil {
			t.Errorf("ByName(%q) returned nil func", name)
		}
	}
}

func TestByNameUnknown(t *testing.T) {
	_, err := ByName("softmax")
	if err == nil {
		t.Fatal("expected error for unknown name")
	}
	if !errors.Is(err, model.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestDefaultIsSigmoid(t *testing.T) {
	f, err := ByName("")
	if err != nil {
		t.Fatal(err)
	}
	if got := f(0); got != 0.5 {
		t.Errorf("default function at 0 = %v, want 0.5 (sigmoid)", got)
	}
}
