package imgproc

import (
	"fmt"
	"image"
)

// Transform is a pure grayscale-to-grayscale function.
type Transform func(*image.Gray) *image.Gray

// Strategy is a named Transform.
type Strategy struct {
	Name  string
	Apply Transform
}

// Strategy names.
const (
	StrategyGray              = "gray"
	StrategyUpscale2x         = "upscale_2x"
	StrategyUpscale3xSharpen  = "upscale_3x_sharpen"
	StrategyThinDark          = "thin_dark"
	StrategyUpscale2xThinDark = "upscale_2x_thin_dark"
	StrategyGammaBright       = "gamma_bright"
	StrategyGammaDark         = "gamma_dark"
	StrategyThreshold100      = "threshold_100"
	StrategyThreshold160      = "threshold_160"
)

var catalogue = []Strategy{
	{StrategyGray, Clone},
	{StrategyUpscale2x, func(g *image.Gray) *image.Gray { return Upscale(g, 2) }},
	{StrategyUpscale3xSharpen, func(g *image.Gray) *image.Gray { return Sharpen(Upscale(g, 3), 1.0) }},
	{StrategyThinDark, func(g *image.Gray) *image.Gray { return ThinDark(g, 3, 1) }},
	{StrategyUpscale2xThinDark, func(g *image.Gray) *image.Gray { return ThinDark(Upscale(g, 2), 3, 1) }},
	{StrategyGammaBright, func(g *image.Gray) *image.Gray { return Gamma(g, 1.8) }},
	{StrategyGammaDark, func(g *image.Gray) *image.Gray { return Gamma(g, 0.5) }},
	{StrategyThreshold100, func(g *image.Gray) *image.Gray { return Threshold(g, 100) }},
	{StrategyThreshold160, func(g *image.Gray) *image.Gray { return Threshold(g, 160) }},
}

// DefaultStrategies returns the full recovery catalogue in search order.
// The returned slice is a copy and may be reordered freely.
func DefaultStrategies() []Strategy {
	out := make([]Strategy, len(catalogue))
	copy(out, catalogue)
	return out
}

// Lookup finds a catalogue strategy by name.
func Lookup(name string) (Strategy, bool) {
	for _, s := range catalogue {
		if s.Name == name {
			return s, true
		}
	}
	return Strategy{}, false
}

// Resolve maps names to strategies, preserving order. An empty list yields
// the full catalogue.
func Resolve(names []string) ([]Strategy, error) {
	if len(names) == 0 {
		return DefaultStrategies(), nil
	}
	out := make([]Strategy, 0, len(names))
	for _, n := range names {
		s, ok := Lookup(n)
		if !ok {
			return nil, fmt.Errorf("unknown strategy %q", n)
		}
		out = append(out, s)
	}
	return out, nil
}

// Names lists the catalogue in order.
func Names() []string {
	out := make([]string, len(catalogue))
	for i, s := range catalogue {
		out[i] = s.Name
	}
	return out
}
