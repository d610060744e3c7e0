package webcrypto

import (
	"context"

	"github.com/samber/lo"
)

var (
	importFormats = []string{"spki", "pkcs8", "raw"}
	exportFormats = []string{"raw", "spki"}
)

// SubtleCrypto is the validating, asynchronous operation surface. Arguments
// are checked synchronously and in declaration order before any provider
// request is issued; operations whose validation fails return a non-nil error
// instead of a future, except Digest, whose contract delivers even validation
// failures through the returned future.
type SubtleCrypto struct {
	provider Provider
	keys     *keyArena
}

func (s *SubtleCrypto) newKey(ref KeyRef, alg Algorithm, extractable bool, usages []string, t KeyType) *CryptoKey {
	return &CryptoKey{
		algorithm:   alg,
		extractable: extractable,
		usages:      usages,
		keyType:     t,
		subtle:      s,
		id:          s.keys.add(ref),
	}
}

// frozenUsages copies and dedupes a usage list, preserving first-seen order.
func frozenUsages(usages []string) []string {
	if usages == nil {
		return []string{}
	}
	return lo.Uniq(usages)
}

// providerAlgorithm rewrites descriptor variants that carry a CryptoKey into
// their provider-facing form with the key resolved to its reference.
func (s *SubtleCrypto) providerAlgorithm(alg Algorithm) (Algorithm, error) {
	if p, ok := alg.(EcdhDeriveParams); ok {
		ref, err := s.keys.resolve(p.Public.id)
		if err != nil {
			return nil, err
		}
		return EcdhDeriveSpec{NamedCurve: p.NamedCurve, Public: ref}, nil
	}
	return alg, nil
}

// disposeTransient releases an operation-scoped key on every exit path.
func (s *SubtleCrypto) disposeTransient(c cid) {
	if ref, last := s.keys.release(c); last {
		s.provider.ReleaseKey(ref)
	}
}

// Digest hashes data under a SHA family algorithm. Validation failures reject
// the returned future rather than surfacing synchronously.
func (s *SubtleCrypto) Digest(algorithm, data any) *Future[[]byte] {
	name, err := parseDigestAlgorithm(algorithm)
	if err != nil {
		return rejectedFuture[[]byte](err)
	}
	buf, err := bufferLike(data)
	if err != nil {
		return rejectedFuture[[]byte](err)
	}
	return goFuture(func(ctx context.Context) ([]byte, error) {
		out, err := s.provider.Digest(ctx, name, buf)
		if err != nil {
			return nil, wrapProviderError("digest", err)
		}
		if len(out) == 0 {
			return nil, newProviderError("digest: provider returned no data")
		}
		return out, nil
	})
}

// ImportKey materializes key material supplied by the caller as a new
// CryptoKey. A {name: X} descriptor with no other fields is collapsed to the
// bare name before it is stored on the handle.
func (s *SubtleCrypto) ImportKey(format, keyData, algorithm, extractable, usages any) (*Future[*CryptoKey], error) {
	formatName, err := requireString(format, "format")
	if err != nil {
		return nil, err
	}
	if err := checkEnumMember(formatName, importFormats, "format"); err != nil {
		return nil, err
	}
	data, err := bufferLike(keyData)
	if err != nil {
		return nil, err
	}
	alg, err := parseImportAlgorithm(algorithm)
	if err != nil {
		return nil, err
	}
	ext, err := requireBoolean(extractable, "extractable")
	if err != nil {
		return nil, err
	}
	use, err := requireStringSequence(usages, "keyUsages")
	if err != nil {
		return nil, err
	}
	frozen := frozenUsages(use)
	return goFuture(func(ctx context.Context) (*CryptoKey, error) {
		ref, err := s.provider.ImportKey(ctx, formatName, data, alg, ext, frozen)
		if err != nil {
			return nil, wrapProviderError("importKey", err)
		}
		return s.newKey(ref, alg, ext, frozen, importedKeyType(formatName, alg)), nil
	}), nil
}

func importedKeyType(format string, alg Algorithm) KeyType {
	switch format {
	case "spki":
		return KeyTypePublic
	case "pkcs8":
		return KeyTypePrivate
	default:
		if alg.Name() == AlgECDH {
			return KeyTypePublic
		}
		return KeyTypeSecret
	}
}

// GenerateKey creates an ECDH P-256 key pair. The two returned handles are
// role views over a single provider-side object.
func (s *SubtleCrypto) GenerateKey(algorithm, extractable, usages any) (*Future[*KeyPair], error) {
	alg, err := parseGenerateAlgorithm(algorithm)
	if err != nil {
		return nil, err
	}
	ext, err := requireBoolean(extractable, "extractable")
	if err != nil {
		return nil, err
	}
	use, err := requireStringSequence(usages, "keyUsages")
	if err != nil {
		return nil, err
	}
	frozen := frozenUsages(use)
	return goFuture(func(ctx context.Context) (*KeyPair, error) {
		ref, err := s.provider.GenerateKeyPair(ctx, alg, ext, frozen)
		if err != nil {
			return nil, wrapProviderError("generateKey", err)
		}
		private := s.newKey(ref, alg, ext, frozen, KeyTypePrivate)
		id, err := s.keys.retain(private.id)
		if err != nil {
			return nil, err
		}
		public := &CryptoKey{
			algorithm:   alg,
			extractable: true,
			usages:      frozenUsages(use),
			keyType:     KeyTypePublic,
			subtle:      s,
			id:          id,
		}
		return &KeyPair{PrivateKey: private, PublicKey: public}, nil
	}), nil
}

// DeriveBits derives length bits of raw material from baseKey. The derivation
// runs through a transient provider-side key that is disposed on every exit
// path before the future settles.
func (s *SubtleCrypto) DeriveBits(algorithm, baseKey, length any) (*Future[[]byte], error) {
	alg, err := parseDeriveAlgorithm(algorithm)
	if err != nil {
		return nil, err
	}
	base, err := requireKey(baseKey, "baseKey")
	if err != nil {
		return nil, err
	}
	bits, err := requireFiniteNumber(length, "length")
	if err != nil {
		return nil, err
	}
	lengthBits := int(bits)
	return goFuture(func(ctx context.Context) ([]byte, error) {
		baseRef, err := s.keys.resolve(base.id)
		if err != nil {
			return nil, err
		}
		spec, err := s.providerAlgorithm(alg)
		if err != nil {
			return nil, err
		}
		ref, err := s.provider.DeriveBits(ctx, spec, baseRef,
			AesDerivedKeyParams{Length: lengthBits}, true, []string{})
		if err != nil {
			return nil, wrapProviderError("deriveBits", err)
		}
		transient := s.keys.add(ref)
		defer s.disposeTransient(transient)
		out, err := s.provider.ExportKey(ctx, "raw", ref)
		if err != nil {
			return nil, wrapProviderError("deriveBits", err)
		}
		return out, nil
	}), nil
}

// DeriveKey derives a persistent AES-GCM key from baseKey.
func (s *SubtleCrypto) DeriveKey(algorithm, baseKey, derivedKeyAlgorithm, extractable, usages any) (*Future[*CryptoKey], error) {
	alg, err := parseDeriveAlgorithm(algorithm)
	if err != nil {
		return nil, err
	}
	base, err := requireKey(baseKey, "baseKey")
	if err != nil {
		return nil, err
	}
	derived, err := parseDerivedKeyAlgorithm(derivedKeyAlgorithm)
	if err != nil {
		return nil, err
	}
	ext, err := requireBoolean(extractable, "extractable")
	if err != nil {
		return nil, err
	}
	use, err := requireStringSequence(usages, "keyUsages")
	if err != nil {
		return nil, err
	}
	frozen := frozenUsages(use)
	return goFuture(func(ctx context.Context) (*CryptoKey, error) {
		baseRef, err := s.keys.resolve(base.id)
		if err != nil {
			return nil, err
		}
		spec, err := s.providerAlgorithm(alg)
		if err != nil {
			return nil, err
		}
		ref, err := s.provider.DeriveBits(ctx, spec, baseRef, derived, ext, frozen)
		if err != nil {
			return nil, wrapProviderError("deriveKey", err)
		}
		return s.newKey(ref, derived, ext, frozen, KeyTypeSecret), nil
	}), nil
}

// Encrypt runs the AES-GCM transform over data.
func (s *SubtleCrypto) Encrypt(algorithm, key, data any) (*Future[[]byte], error) {
	return s.aead(algorithm, key, data, "encrypt")
}

// Decrypt reverses the AES-GCM transform. An authentication failure surfaces
// as a provider error on the returned future.
func (s *SubtleCrypto) Decrypt(algorithm, key, data any) (*Future[[]byte], error) {
	return s.aead(algorithm, key, data, "decrypt")
}

func (s *SubtleCrypto) aead(algorithm, key, data any, op string) (*Future[[]byte], error) {
	params, err := parseAeadParams(algorithm)
	if err != nil {
		return nil, err
	}
	k, err := requireKey(key, "key")
	if err != nil {
		return nil, err
	}
	buf, err := bufferLike(data)
	if err != nil {
		return nil, err
	}
	return goFuture(func(ctx context.Context) ([]byte, error) {
		ref, err := s.keys.resolve(k.id)
		if err != nil {
			return nil, err
		}
		var out []byte
		if op == "encrypt" {
			out, err = s.provider.Encrypt(ctx, params, ref, buf)
		} else {
			out, err = s.provider.Decrypt(ctx, params, ref, buf)
		}
		if err != nil {
			return nil, wrapProviderError(op, err)
		}
		return out, nil
	}), nil
}

// ExportKey serializes key in the given format. Extractability is enforced by
// the Provider; a refusal rejects the returned future.
func (s *SubtleCrypto) ExportKey(format, key any) (*Future[[]byte], error) {
	formatName, err := requireString(format, "format")
	if err != nil {
		return nil, err
	}
	if err := checkEnumMember(formatName, exportFormats, "format"); err != nil {
		return nil, err
	}
	k, err := requireKey(key, "key")
	if err != nil {
		return nil, err
	}
	return goFuture(func(ctx context.Context) ([]byte, error) {
		ref, err := s.keys.resolve(k.id)
		if err != nil {
			return nil, err
		}
		out, err := s.provider.ExportKey(ctx, formatName, ref)
		if err != nil {
			return nil, wrapProviderError("exportKey", err)
		}
		return out, nil
	}), nil
}
