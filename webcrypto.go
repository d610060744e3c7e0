// Package webcrypto implements a WebCrypto-compatible cryptographic facade:
// a validating, asynchronous operation surface over an injected Provider that
// performs the actual cryptographic work and holds all raw key bytes. Key
// material is only ever addressed through opaque CryptoKey handles.
package webcrypto

import (
	"context"

	"github.com/google/uuid"
)

const maxGetRandomValuesBytes = 65536

// Crypto is the top-level API surface. Construct one per Provider with New.
type Crypto struct {
	// Subtle exposes the asynchronous operation facade.
	Subtle *SubtleCrypto

	provider Provider
}

// New builds a Crypto over the given Provider.
func New(p Provider) *Crypto {
	return &Crypto{
		Subtle:   &SubtleCrypto{provider: p, keys: newKeyArena()},
		provider: p,
	}
}

// GetRandomValues fills view in place with provider randomness and returns
// the same view. Unlike the subtle operations it is synchronous: validation
// failures and a short provider read both surface as an immediate error.
func (c *Crypto) GetRandomValues(view any) (View, error) {
	var v View
	switch t := view.(type) {
	case View:
		v = t
	case *View:
		if t == nil {
			return View{}, newValidationError("getRandomValues: input must be a buffer view, got nil")
		}
		v = *t
	default:
		return View{}, newValidationError("getRandomValues: input must be a buffer view, got %T", view)
	}
	out, err := viewBytes(v)
	if err != nil {
		return View{}, err
	}
	if len(out) > maxGetRandomValuesBytes {
		return View{}, newValidationError("getRandomValues: byteLength exceeds %d", maxGetRandomValuesBytes)
	}
	random, err := c.provider.FillRandom(context.Background(), len(out))
	if err != nil {
		return View{}, wrapProviderError("getRandomValues", err)
	}
	if len(random) < len(out) {
		return View{}, newProviderError(
			"getRandomValues: provider returned %d random bytes, need %d", len(random), len(out))
	}
	copy(out, random)
	return v, nil
}

// RandomUUID returns an RFC 4122 version 4 UUID string.
func (c *Crypto) RandomUUID() string {
	return uuid.NewString()
}
