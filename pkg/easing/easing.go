// Package easing provides the scalar easing functions used by the tween
// engine to shape a parameter's trajectory between its start and end value.
package easing

import (
	"math"
	"math/rand"
)

// Func maps a normalized time t in [0,1] to an eased progress value. Most
// functions return a value in [0,1] for t in [0,1]; back/elastic/bounce
// variants briefly overshoot by design.
type Func func(t float64) float64

func Linear(t float64) float64 { return t }

func InSine(t float64) float64  { return math.Sin(1.5707963 * t) }
func OutSine(t float64) float64 { return 1 + math.Sin(1.5707963*(t-1)) }
func InOutSine(t float64) float64 {
	return 0.5 * (1 + math.Sin(3.1415926*(t-0.5)))
}

func InQuad(t float64) float64  { return t * t }
func OutQuad(t float64) float64 { return t * (2 - t) }
func InOutQuad(t float64) float64 {
	if t < 0.5 {
		return 2 * t * t
	}
	return t*(4-2*t) - 1
}

func InCubic(t float64) float64 { return t * t * t }
func OutCubic(t float64) float64 {
	t--
	return 1 + t*t*t
}
func InOutCubic(t float64) float64 {
	if t < 0.5 {
		return 4 * t * t * t
	}
	t--
	return 1 + t*(2*t)*(2*t)
}

func InQuart(t float64) float64 {
	t *= t
	return t * t
}
func OutQuart(t float64) float64 {
	t = (t - 1) * (t - 1)
	return 1 - t*t
}
func InOutQuart(t float64) float64 {
	if t < 0.5 {
		t *= t
		return 8 * t * t
	}
	t = (t - 1) * (t - 1)
	return 1 - 8*t*t
}

func InQuint(t float64) float64 {
	t2 := t * t
	return t * t2 * t2
}
func OutQuint(t float64) float64 {
	t--
	t2 := t * t
	return 1 + t*t2*t2
}
func InOutQuint(t float64) float64 {
	if t < 0.5 {
		t2 := t * t
		return 16 * t * t2 * t2
	}
	t--
	t2 := t * t
	return 1 + 16*t*t2*t2
}

func InExpo(t float64) float64  { return (math.Pow(2, 8*t) - 1) / 255 }
func OutExpo(t float64) float64 {
	if t >= 1 {
		return 1
	}
	return 1 - math.Pow(2, -8*t)
}
func InOutExpo(t float64) float64 {
	if t < 0.5 {
		return (math.Pow(2, 16*t) - 1) / 510
	}
	if t >= 1 {
		return 1
	}
	return 1 - 0.5*math.Pow(2, -16*(t-0.5))
}

func InCirc(t float64) float64  { return 1 - math.Sqrt(1-t) }
func OutCirc(t float64) float64 { return math.Sqrt(t) }
func InOutCirc(t float64) float64 {
	if t < 0.5 {
		return (1 - math.Sqrt(1-2*t)) * 0.5
	}
	return (1 + math.Sqrt(2*t-1)) * 0.5
}

func InBack(t float64) float64 { return t * t * (2.70158*t - 1.70158) }
func OutBack(t float64) float64 {
	t--
	return 1 + t*t*(2.70158*t+1.70158)
}
func InOutBack(t float64) float64 {
	if t < 0.5 {
		return t * t * (7*t - 2.5) * 2
	}
	t--
	return 1 + t*t*2*(7*t+2.5)
}

func InElastic(t float64) float64 {
	t2 := t * t
	return t2 * t2 * math.Sin(t*math.Pi*4.5)
}
func OutElastic(t float64) float64 {
	t2 := (t - 1) * (t - 1)
	return 1 - t2*t2*math.Cos(t*math.Pi*4.5)
}
func InOutElastic(t float64) float64 {
	switch {
	case t < 0.45:
		t2 := t * t
		return 8 * t2 * t2 * math.Sin(t*math.Pi*9)
	case t < 0.55:
		return 0.5 + 0.75*math.Sin(t*math.Pi*4)
	default:
		t2 := (t - 1) * (t - 1)
		return 1 - 8*t2*t2*math.Sin(t*math.Pi*9)
	}
}

func InBounce(t float64) float64 {
	return math.Pow(2, 6*(t-1)) * math.Abs(math.Sin(t*math.Pi*3.5))
}
func OutBounce(t float64) float64 {
	return 1 - math.Pow(2, -6*t)*math.Abs(math.Cos(t*math.Pi*3.5))
}
func InOutBounce(t float64) float64 {
	if t < 0.5 {
		return 8 * math.Pow(2, 8*(t-1)) * math.Abs(math.Sin(t*math.Pi*7))
	}
	return 1 - 8*math.Pow(2, -8*t)*math.Abs(math.Sin(t*math.Pi*7))
}

// registry maps the wire/config name of an easing function to its
// implementation. Names match the original controller configs verbatim
// (snake_case) since they are persisted in per-model YAML and sent over the
// control websocket.
var registry = map[string]Func{
	"linear": Linear,

	"in_sine":     InSine,
	"out_sine":    OutSine,
	"in_out_sine": InOutSine,

	"in_quad":     InQuad,
	"out_quad":    OutQuad,
	"in_out_quad": InOutQuad,

	"in_cubic":     InCubic,
	"out_cubic":    OutCubic,
	"in_out_cubic": InOutCubic,

	"in_quart":     InQuart,
	"out_quart":    OutQuart,
	"in_out_quart": InOutQuart,

	"in_quint":     InQuint,
	"out_quint":    OutQuint,
	"in_out_quint": InOutQuint,

	"in_expo":     InExpo,
	"out_expo":    OutExpo,
	"in_out_expo": InOutExpo,

	"in_circ":     InCirc,
	"out_circ":    OutCirc,
	"in_out_circ": InOutCirc,

	"in_back":     InBack,
	"out_back":    OutBack,
	"in_out_back": InOutBack,

	"in_elastic":     InElastic,
	"out_elastic":    OutElastic,
	"in_out_elastic": InOutElastic,

	"in_bounce":     InBounce,
	"out_bounce":    OutBounce,
	"in_out_bounce": InOutBounce,
}

// Lookup resolves a wire-level easing name. Unknown names fall back to
// Linear; the bool return tells the caller whether the fallback fired so it
// can log a warning (spec: "a lookup by name with a linear fallback and a
// warning when the name is unknown").
func Lookup(name string) (Func, bool) {
	if fn, ok := registry[name]; ok {
		return fn, true
	}
	return Linear, false
}

// weighted random selection mirrors the original Tweener.random_easing:
// gentle curves dominate so idle motion doesn't look mechanical.
var randomFuncs = []Func{InOutSine, InOutQuad, InOutBack}
var randomWeights = []float64{0.75, 0.15, 0.1}

// Random picks one of a small set of gentle easing functions, weighted
// toward in_out_sine, for idle controllers that vary their motion curve.
func Random() Func {
	return RandomFrom(rand.Float64())
}

// RandomFrom picks using an externally supplied uniform sample in [0,1),
// so callers (and tests) can make the choice deterministic.
func RandomFrom(u float64) Func {
	acc := 0.0
	for i, w := range randomWeights {
		acc += w
		if u < acc {
			return randomFuncs[i]
		}
	}
	return randomFuncs[len(randomFuncs)-1]
}
