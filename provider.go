package webcrypto

import (
	"context"
	"sync"
)

// KeyRef is an opaque provider-side key reference. Only the Provider that
// produced a KeyRef may interpret it; the facade stores it in its arena and
// threads it back into later calls.
type KeyRef any

// Provider executes the actual cryptographic work and holds all raw key
// bytes. Every call is one-shot: one request yields exactly one value or one
// error. The facade never retries or cancels an issued request.
type Provider interface {
	// FillRandom returns byteLength cryptographically random bytes.
	FillRandom(ctx context.Context, byteLength int) ([]byte, error)

	// Digest hashes data under the named algorithm.
	Digest(ctx context.Context, algorithm string, data []byte) ([]byte, error)

	// ImportKey materializes keyData as a provider-side key.
	ImportKey(ctx context.Context, format string, keyData []byte, algorithm Algorithm, extractable bool, usages []string) (KeyRef, error)

	// GenerateKeyPair creates one key pair; the facade splits it into role
	// views.
	GenerateKeyPair(ctx context.Context, algorithm Algorithm, extractable bool, usages []string) (KeyRef, error)

	// DeriveBits derives a new key of the given target spec from baseKey.
	DeriveBits(ctx context.Context, algorithm Algorithm, baseKey KeyRef, derivedAlgorithm Algorithm, extractable bool, usages []string) (KeyRef, error)

	// ExportKey serializes the key in the given format. Providers refuse to
	// export keys that were created non-extractable.
	ExportKey(ctx context.Context, format string, key KeyRef) ([]byte, error)

	// Encrypt and Decrypt run the AEAD transform.
	Encrypt(ctx context.Context, params AesGcmParams, key KeyRef, data []byte) ([]byte, error)
	Decrypt(ctx context.Context, params AesGcmParams, key KeyRef, data []byte) ([]byte, error)

	// ReleaseKey frees the provider-side resource behind key.
	ReleaseKey(key KeyRef)
}

// ProviderConstructor builds a Provider instance.
type ProviderConstructor func() (Provider, error)

var (
	providerMu sync.RWMutex
	providers  = map[string]ProviderConstructor{}
)

// RegisterProvider registers a named Provider constructor. Implementations
// typically call this from an init function.
func RegisterProvider(name string, ctor ProviderConstructor) {
	providerMu.Lock()
	defer providerMu.Unlock()
	providers[name] = ctor
}

// NewProvider constructs the Provider registered under name.
func NewProvider(name string) (Provider, error) {
	providerMu.RLock()
	ctor, ok := providers[name]
	providerMu.RUnlock()
	if !ok || ctor == nil {
		return nil, newProviderError("unknown crypto provider: %s", name)
	}
	return ctor()
}
