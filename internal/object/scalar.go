package object

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"go.followtheprocess.codes/stache/internal/env"
	"go.followtheprocess.codes/stache/internal/mustache"
	"go.followtheprocess.codes/stache/internal/ref"
	"go.followtheprocess.codes/stache/internal/types"
)

// Scalar is a String, Integer, Float or Boolean value.
//
// A scalar built from text holds that text, placeholders and all, until it is
// interpolated. Once every placeholder has been substituted the text is coerced to
// the scalar's type, a scalar built from a Go number or boolean is coerced immediately.
type Scalar struct {
	typ    *types.Type
	value  any       // Template text, or the coerced string, int64, float64 or bool
	scopes env.Chain // Scope chain, most specific first
	source string    // Text still to interpolate when value is a partial result, escapes intact
	final  bool      // Whether value has been coerced, in which case it is never re-interpolated
}

// NewString returns a new String [Scalar].
func NewString(value any) (*Scalar, error) {
	return newScalar(types.String, value)
}

// NewInteger returns a new Integer [Scalar].
func NewInteger(value any) (*Scalar, error) {
	return newScalar(types.Integer, value)
}

// NewFloat returns a new Float [Scalar].
func NewFloat(value any) (*Scalar, error) {
	return newScalar(types.Float, value)
}

// NewBoolean returns a new Boolean [Scalar].
func NewBoolean(value any) (*Scalar, error) {
	return newScalar(types.Boolean, value)
}

// newScalar builds a scalar of type t.
func newScalar(t *types.Type, value any) (*Scalar, error) {
	if !t.Kind().IsScalar() {
		return nil, fmt.Errorf("%s is not a scalar type", t)
	}

	if text, ok := value.(string); ok {
		return &Scalar{typ: t, value: text}, nil
	}

	coerced, err := coerce(t, value)
	if err != nil {
		return nil, err
	}

	return &Scalar{typ: t, value: coerced, final: true}, nil
}

// Type implements [Object] for a [Scalar].
func (s *Scalar) Type() *types.Type {
	return s.typ
}

// Scopes implements [Object] for a [Scalar].
func (s *Scalar) Scopes() env.Chain {
	return s.scopes
}

// Get implements [env.Value] for a [Scalar], returning the held text or coerced value.
func (s *Scalar) Get() any {
	return s.value
}

// String implements [env.Value] for a [Scalar], returning the interpolated text.
func (s *Scalar) String() string {
	resolved, _, err := s.interpolate()
	if err != nil {
		return render(s.value)
	}

	return render(resolved.Get())
}

// Check implements [Object] for a [Scalar].
func (s *Scalar) Check() TypeCheck {
	resolved, _, err := s.interpolate()
	if err != nil {
		return Failure("%v", err)
	}

	v := resolved.Get()

	switch s.typ.Kind() {
	case types.KindString:
		if _, ok := v.(string); ok {
			return Success()
		}

		return Failure("%#v not a string", v)
	case types.KindInteger:
		if _, ok := v.(int64); ok {
			return Success()
		}

		return Failure("%#v not an integer", v)
	case types.KindFloat:
		if _, ok := v.(float64); ok {
			return Success()
		}

		return Failure("%#v not a float", v)
	case types.KindBoolean:
		if _, ok := v.(bool); ok {
			return Success()
		}

		return Failure("%#v not a boolean", v)
	default:
		return Failure("%s is not a scalar type", s.typ)
	}
}

func (s *Scalar) interpolate() (Object, []ref.Ref, error) {
	text, ok := s.value.(string)
	if s.final || !ok {
		return s, nil, nil
	}

	if s.source != "" {
		text = s.source
	}

	fragments, err := mustache.Split(text)
	if err != nil {
		return nil, nil, err
	}

	joined, unresolved := mustache.JoinPartial(fragments, s.scopes)
	if len(unresolved) != 0 {
		source, _ := mustache.Substitute(fragments, s.scopes)
		return &Scalar{typ: s.typ, value: joined, source: source, scopes: s.scopes}, unresolved, nil
	}

	coerced, err := coerce(s.typ, joined)
	if err != nil {
		// Left as text, Check reports it
		return &Scalar{typ: s.typ, value: joined, scopes: s.scopes, final: true}, nil, nil
	}

	return &Scalar{typ: s.typ, value: coerced, scopes: s.scopes, final: true}, nil, nil
}

func (s *Scalar) withScopes(scopes env.Chain) Object {
	return &Scalar{typ: s.typ, value: s.value, source: s.source, scopes: scopes, final: s.final}
}

// coerce converts a raw Go scalar to the representation used by type t.
func coerce(t *types.Type, value any) (any, error) {
	fail := func() (any, error) {
		return nil, fmt.Errorf("%w '%v' to %s", ErrCoercion, value, t)
	}

	switch t.Kind() {
	case types.KindString:
		text, ok := env.Text(value)
		if !ok {
			return fail()
		}

		return text, nil
	case types.KindInteger:
		switch v := value.(type) {
		case string:
			i, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
			if err != nil {
				return fail()
			}

			return i, nil
		case float32, float64:
			f := toFloat(v)
			if math.IsNaN(f) || math.IsInf(f, 0) || f >= math.MaxInt64 || f < math.MinInt64 {
				return fail()
			}

			return int64(f), nil
		case bool:
			return fail()
		default:
			text, ok := env.Text(v)
			if !ok {
				return fail()
			}

			i, err := strconv.ParseInt(text, 10, 64)
			if err != nil {
				return fail()
			}

			return i, nil
		}
	case types.KindFloat:
		switch v := value.(type) {
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return fail()
			}

			return f, nil
		case float32, float64:
			return toFloat(v), nil
		case bool:
			return fail()
		default:
			text, ok := env.Text(v)
			if !ok {
				return fail()
			}

			f, err := strconv.ParseFloat(text, 64)
			if err != nil {
				return fail()
			}

			return f, nil
		}
	case types.KindBoolean:
		switch v := value.(type) {
		case bool:
			return v, nil
		case string:
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				return fail()
			}

			return b, nil
		default:
			return fail()
		}
	default:
		return fail()
	}
}

// toFloat converts a float32 or float64 to float64.
func toFloat(v any) float64 {
	if f, ok := v.(float32); ok {
		return float64(f)
	}

	return v.(float64) //nolint:forcetypeassert,errcheck // Only ever called with float32 or float64
}

// render returns the text substituted for a scalar value.
func render(v any) string {
	text, ok := env.Text(v)
	if !ok {
		return fmt.Sprint(v)
	}

	return text
}
