package webcrypto

import (
	"math"
	"sort"

	"github.com/samber/lo"
)

// CheckArity fails unless exactly want arguments were received. Operation
// arities are exact, not minimums.
func CheckArity(got, want int) error {
	if got != want {
		return newArgumentCountError(got, want)
	}
	return nil
}

// CheckMinArity fails unless at least min arguments were received.
func CheckMinArity(got, min int) error {
	if got < min {
		return newMinArgumentCountError(got, min)
	}
	return nil
}

// checkKeysSubset rejects any key of rec outside allowed. The offending key is
// picked deterministically (smallest in sort order) so messages are stable.
func checkKeysSubset(rec map[string]any, context string, allowed ...string) error {
	keys := lo.Keys(rec)
	sort.Strings(keys)
	for _, k := range keys {
		if !lo.Contains(allowed, k) {
			return newValidationError("%s: unexpected key %q (allowed: %v)", context, k, allowed)
		}
	}
	return nil
}

func checkEnumMember(value string, allowed []string, field string) error {
	if !lo.Contains(allowed, value) {
		return newValidationError("%s must be one of %v, got %q", field, allowed, value)
	}
	return nil
}

func requireString(v any, field string) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", newValidationError("%s must be a string, got %v", field, v)
	}
	return s, nil
}

func requireBoolean(v any, field string) (bool, error) {
	b, ok := v.(bool)
	if !ok {
		return false, newValidationError("%s must be a boolean, got %v", field, v)
	}
	return b, nil
}

// numberValue widens the numeric shapes callers hand over (JS runtimes export
// either int64 or float64, Go callers use int) without admitting non-numbers.
func numberValue(v any, field string) (float64, error) {
	switch n := v.(type) {
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case float64:
		return n, nil
	default:
		return 0, newValidationError("%s must be a number, got %v", field, v)
	}
}

func requireFiniteNumber(v any, field string) (float64, error) {
	f, err := numberValue(v, field)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, newValidationError("%s must be a finite number, got %v", field, f)
	}
	return f, nil
}

func requireStringSequence(v any, field string) ([]string, error) {
	switch seq := v.(type) {
	case []string:
		return append([]string(nil), seq...), nil
	case []any:
		out := make([]string, 0, len(seq))
		for _, item := range seq {
			s, ok := item.(string)
			if !ok {
				return nil, newValidationError("%s must contain only strings, got %v", field, item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, newValidationError("%s must be a sequence of strings, got %v", field, v)
	}
}

func requireKey(v any, field string) (*CryptoKey, error) {
	k, ok := v.(*CryptoKey)
	if !ok || k == nil {
		return nil, newValidationError("%s must be a CryptoKey, got %v", field, v)
	}
	return k, nil
}

// bufferLike normalizes a byte buffer or a view over one to its windowed
// bytes. Float-element views are rejected.
func bufferLike(v any) ([]byte, error) {
	switch b := v.(type) {
	case []byte:
		return b, nil
	case View:
		return viewBytes(b)
	case *View:
		if b == nil {
			return nil, newValidationError("input must be a byte buffer or buffer view, got nil")
		}
		return viewBytes(*b)
	case nil:
		return nil, newValidationError("input is required")
	default:
		return nil, newValidationError("input must be a byte buffer or buffer view, got %T", v)
	}
}

func viewBytes(v View) ([]byte, error) {
	if v.Kind.isFloat() {
		return nil, newValidationError("input must be an integer-typed view, got %s", v.Kind)
	}
	if !v.Valid() {
		return nil, newValidationError("invalid buffer range: offset %d length %d over %d bytes",
			v.ByteOffset, v.ByteLength, len(v.Buffer))
	}
	return v.Bytes(), nil
}
