package templates

import (
	"encoding/json"
	"fmt"
	"math/rand"
)

// valueKind distinguishes the four shapes a template value node can take.
type valueKind int

const (
	kindLiteral valueKind = iota
	kindRandomFloat
	kindRandomInt
	kindExpression
)

// Value is a template field that resolves to a number: a bare literal, a
// uniform random range, or an arithmetic/comparison expression evaluated
// against the current context. Mirrors preformed_animation.py's
// Union[float, int, Expression, RandomFloat, RandomInt], collapsed into
// one Go type with a custom unmarshaler instead of an interface, since
// every resolved shape is consumed the same way: Evaluate(ctx) -> float64.
type Value struct {
	kind valueKind

	literal float64
	lo, hi  float64
	isInt   bool
	expr    string
}

// UnmarshalJSON accepts a bare JSON number, or an object with exactly one
// of "random_float", "random_int", or "expr".
func (v *Value) UnmarshalJSON(data []byte) error {
	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		v.kind = kindLiteral
		v.literal = num
		return nil
	}

	var obj struct {
		RandomFloat *[2]float64 `json:"random_float"`
		RandomInt   *[2]float64 `json:"random_int"`
		Expr        *string     `json:"expr"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("templates: value node is neither a number nor a recognized object: %w", err)
	}
	switch {
	case obj.RandomFloat != nil:
		v.kind = kindRandomFloat
		v.lo, v.hi = obj.RandomFloat[0], obj.RandomFloat[1]
	case obj.RandomInt != nil:
		v.kind = kindRandomInt
		v.lo, v.hi = obj.RandomInt[0], obj.RandomInt[1]
		v.isInt = true
	case obj.Expr != nil:
		v.kind = kindExpression
		v.expr = *obj.Expr
	default:
		return fmt.Errorf("templates: value object has none of random_float, random_int, expr")
	}
	return nil
}

// Evaluate resolves the node to a concrete float64 against ctx. Random
// nodes draw a fresh sample every call, matching the original calling
// random.uniform/randint once per resolution rather than caching.
func (v Value) Evaluate(ctx Context) (float64, error) {
	switch v.kind {
	case kindLiteral:
		return v.literal, nil
	case kindRandomFloat:
		return v.lo + rand.Float64()*(v.hi-v.lo), nil
	case kindRandomInt:
		lo, hi := int64(v.lo), int64(v.hi)
		if hi < lo {
			lo, hi = hi, lo
		}
		return float64(lo + rand.Int63n(hi-lo+1)), nil
	case kindExpression:
		return evalExpression(v.expr, ctx)
	default:
		return 0, fmt.Errorf("templates: unresolved value node")
	}
}

// Context binds parameter and variable names to numeric values for value
// and expression evaluation.
type Context map[string]float64
