package ops

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"go-pixel-worker/internal/config"
	"go-pixel-worker/internal/pipeline"
)

var ErrUnknownOperation = errors.New("unknown operation")

type factory struct {
	granularity pipeline.Granularity
	build       func(spec config.OperationSpec) pipeline.Operation
}

var registry = map[string]factory{
	"identity":        {pipeline.Pixel, func(config.OperationSpec) pipeline.Operation { return Identity }},
	"luminance":       {pipeline.Pixel, func(config.OperationSpec) pipeline.Operation { return Luminance }},
	"invert":          {pipeline.Pixel, func(config.OperationSpec) pipeline.Operation { return Invert }},
	"normalized_diff": {pipeline.Pixel, func(config.OperationSpec) pipeline.Operation { return NormalizedDiff }},
	"count_pixels":    {pipeline.Pixel, func(config.OperationSpec) pipeline.Operation { return CountPixels }},
	"sepia":           {pipeline.Pixel, func(config.OperationSpec) pipeline.Operation { return Sepia() }},
	"threshold": {pipeline.Pixel, func(s config.OperationSpec) pipeline.Operation {
		return Threshold{Level: s.Param("level", 128)}
	}},
	"scale": {pipeline.Pixel, func(s config.OperationSpec) pipeline.Operation {
		return Scale{Factor: s.Param("factor", 1)}
	}},
	"hue_shift": {pipeline.Pixel, func(s config.OperationSpec) pipeline.Operation {
		return HueShift{Degrees: s.Param("degrees", 0)}
	}},
	"blur": {pipeline.Image, func(s config.OperationSpec) pipeline.Operation {
		return Blur{Sigma: s.Param("sigma", 1)}
	}},
	"sharpen": {pipeline.Image, func(s config.OperationSpec) pipeline.Operation {
		return Sharpen{Sigma: s.Param("sigma", 1)}
	}},
	"gamma": {pipeline.Image, func(s config.OperationSpec) pipeline.Operation {
		return Gamma{Value: s.Param("value", 1)}
	}},
	"contrast": {pipeline.Image, func(s config.OperationSpec) pipeline.Operation {
		return Contrast{Change: s.Param("change", 0)}
	}},
	"brightness": {pipeline.Image, func(s config.OperationSpec) pipeline.Operation {
		return Brightness{Change: s.Param("change", 0)}
	}},
	"saturation": {pipeline.Image, func(s config.OperationSpec) pipeline.Operation {
		return Saturation{Change: s.Param("change", 0)}
	}},
	"sobel":      {pipeline.Image, func(config.OperationSpec) pipeline.Operation { return Sobel }},
	"emboss":     {pipeline.Image, func(config.OperationSpec) pipeline.Operation { return Emboss }},
	"difference": {pipeline.Image, func(config.OperationSpec) pipeline.Operation { return Difference }},
}

// Names lists the registered operations for the given granularity, sorted.
func Names(g pipeline.Granularity) []string {
	var names []string
	for name, f := range registry {
		if f.granularity == g {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}

// DefaultLib is the helper library handed to pipelines built from configuration.
func DefaultLib() pipeline.Lib {
	return pipeline.Lib{
		"sum": func(args ...float64) float64 {
			var s float64
			for _, a := range args {
				s += a
			}
			return s
		},
		"diff": func(args ...float64) float64 {
			if len(args) == 0 {
				return 0
			}
			d := args[0]
			for _, a := range args[1:] {
				d -= a
			}
			return d
		},
		"min": func(args ...float64) float64 {
			if len(args) == 0 {
				return 0
			}
			return slices.Min(args)
		},
		"max": func(args ...float64) float64 {
			if len(args) == 0 {
				return 0
			}
			return slices.Max(args)
		},
		"clamp": func(args ...float64) float64 {
			if len(args) < 3 {
				return math.NaN()
			}
			return math.Max(args[1], math.Min(args[2], args[0]))
		},
	}
}

// Build resolves every spec by name and assembles a pipeline with DefaultLib.
func Build(g pipeline.Granularity, specs []config.OperationSpec) (*pipeline.Pipeline, error) {
	stages := make([]pipeline.Operation, 0, len(specs))
	for i, spec := range specs {
		f, ok := registry[spec.Name]
		if !ok {
			return nil, fmt.Errorf("stage %d: %w: %q", i, ErrUnknownOperation, spec.Name)
		}
		if f.granularity != g {
			return nil, fmt.Errorf("stage %d (%s) is a %s operation: %w",
				i, spec.Name, f.granularity, pipeline.ErrGranularityMismatch)
		}
		stages = append(stages, f.build(spec))
	}
	return pipeline.New(g, DefaultLib(), stages...)
}
