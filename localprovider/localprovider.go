// Package localprovider is an in-process Provider backed by the Go standard
// library and golang.org/x/crypto: SHA family digests, AES-GCM, ECDH over
// P-256, and HKDF. It doubles as the reference backend for integration tests.
package localprovider

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha1" //nolint:gosec // SHA-1 digest support is part of the surface.
	"crypto/sha256"
	"crypto/sha512"
	"crypto/x509"
	"errors"
	"fmt"
	"hash"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/sealbridge/webcrypto"
)

func init() {
	webcrypto.RegisterProvider("local", func() (webcrypto.Provider, error) {
		return New(), nil
	})
}

// Provider holds no state of its own; every key lives in a keyObject
// addressed through the webcrypto.KeyRef values it hands out.
type Provider struct{}

// New returns a ready Provider.
func New() *Provider { return &Provider{} }

type keyObject struct {
	algorithm   webcrypto.Algorithm
	extractable bool
	usages      []string

	secret  []byte
	private *ecdh.PrivateKey
	public  *ecdh.PublicKey
}

func keyOf(ref webcrypto.KeyRef) (*keyObject, error) {
	k, ok := ref.(*keyObject)
	if !ok || k == nil {
		return nil, errors.New("foreign key reference")
	}
	return k, nil
}

func (k *keyObject) allows(usage string, alternates ...string) bool {
	for _, u := range k.usages {
		if u == usage {
			return true
		}
		for _, alt := range alternates {
			if u == alt {
				return true
			}
		}
	}
	return false
}

// FillRandom reads byteLength bytes from the system CSPRNG.
func (p *Provider) FillRandom(_ context.Context, byteLength int) ([]byte, error) {
	if byteLength < 0 {
		return nil, errors.New("negative byte length")
	}
	out := make([]byte, byteLength)
	if _, err := rand.Read(out); err != nil {
		return nil, err
	}
	return out, nil
}

// Digest hashes data under the named SHA family algorithm.
func (p *Provider) Digest(_ context.Context, algorithm string, data []byte) ([]byte, error) {
	newHash, err := hashFactory(algorithm)
	if err != nil {
		return nil, err
	}
	h := newHash()
	_, _ = h.Write(data)
	return h.Sum(nil), nil
}

func hashFactory(name string) (func() hash.Hash, error) {
	switch name {
	case webcrypto.AlgSHA1:
		return sha1.New, nil
	case webcrypto.AlgSHA256:
		return sha256.New, nil
	case webcrypto.AlgSHA384:
		return sha512.New384, nil
	case webcrypto.AlgSHA512:
		return sha512.New, nil
	default:
		return nil, fmt.Errorf("unsupported hash algorithm: %s", name)
	}
}

// ImportKey materializes keyData as a provider-side key object.
func (p *Provider) ImportKey(_ context.Context, format string, keyData []byte, algorithm webcrypto.Algorithm, extractable bool, usages []string) (webcrypto.KeyRef, error) {
	k := &keyObject{algorithm: algorithm, extractable: extractable, usages: usages}
	switch format {
	case "raw":
		if err := importRaw(k, keyData, algorithm); err != nil {
			return nil, err
		}
	case "spki":
		if algorithm.Name() != webcrypto.AlgECDH {
			return nil, fmt.Errorf("spki import requires an EC algorithm, got %s", algorithm.Name())
		}
		pubAny, err := x509.ParsePKIXPublicKey(keyData)
		if err != nil {
			return nil, err
		}
		pub, err := ecdhPublic(pubAny)
		if err != nil {
			return nil, err
		}
		k.public = pub
	case "pkcs8":
		if algorithm.Name() != webcrypto.AlgECDH {
			return nil, fmt.Errorf("pkcs8 import requires an EC algorithm, got %s", algorithm.Name())
		}
		privAny, err := x509.ParsePKCS8PrivateKey(keyData)
		if err != nil {
			return nil, err
		}
		priv, err := ecdhPrivate(privAny)
		if err != nil {
			return nil, err
		}
		k.private = priv
		k.public = priv.PublicKey()
	default:
		return nil, fmt.Errorf("unsupported key format: %s", format)
	}
	return k, nil
}

func importRaw(k *keyObject, raw []byte, algorithm webcrypto.Algorithm) error {
	switch algorithm.Name() {
	case webcrypto.AlgAESGCM:
		if len(raw) != 16 && len(raw) != 24 && len(raw) != 32 {
			return errors.New("AES raw key length must be 16, 24, or 32 bytes")
		}
		k.secret = append([]byte(nil), raw...)
	case webcrypto.AlgHKDF:
		if len(raw) == 0 {
			return errors.New("HKDF raw key must not be empty")
		}
		k.secret = append([]byte(nil), raw...)
	case webcrypto.AlgECDH:
		pub, err := ecdh.P256().NewPublicKey(raw)
		if err != nil {
			return errors.New("invalid EC raw public key")
		}
		k.public = pub
	default:
		return fmt.Errorf("unsupported raw key algorithm: %s", algorithm.Name())
	}
	return nil
}

func ecdhPublic(pubAny any) (*ecdh.PublicKey, error) {
	switch pub := pubAny.(type) {
	case *ecdh.PublicKey:
		return pub, nil
	case *ecdsa.PublicKey:
		return pub.ECDH()
	default:
		return nil, fmt.Errorf("not an EC public key: %T", pubAny)
	}
}

func ecdhPrivate(privAny any) (*ecdh.PrivateKey, error) {
	switch priv := privAny.(type) {
	case *ecdh.PrivateKey:
		return priv, nil
	case *ecdsa.PrivateKey:
		return priv.ECDH()
	default:
		return nil, fmt.Errorf("not an EC private key: %T", privAny)
	}
}

// GenerateKeyPair creates a P-256 key pair held as one key object.
func (p *Provider) GenerateKeyPair(_ context.Context, algorithm webcrypto.Algorithm, extractable bool, usages []string) (webcrypto.KeyRef, error) {
	params, ok := algorithm.(webcrypto.EcdhKeyParams)
	if !ok || params.NamedCurve != webcrypto.CurveP256 {
		return nil, fmt.Errorf("unsupported generateKey algorithm: %s", algorithm.Name())
	}
	priv, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &keyObject{
		algorithm:   algorithm,
		extractable: extractable,
		usages:      usages,
		private:     priv,
		public:      priv.PublicKey(),
	}, nil
}

// DeriveBits derives a new secret key of the requested AES-GCM length.
func (p *Provider) DeriveBits(_ context.Context, algorithm webcrypto.Algorithm, baseKey webcrypto.KeyRef, derivedAlgorithm webcrypto.Algorithm, extractable bool, usages []string) (webcrypto.KeyRef, error) {
	base, err := keyOf(baseKey)
	if err != nil {
		return nil, err
	}
	if !base.allows("deriveBits", "deriveKey") {
		return nil, errors.New("key does not permit derivation")
	}
	derived, ok := derivedAlgorithm.(webcrypto.AesDerivedKeyParams)
	if !ok {
		return nil, fmt.Errorf("unsupported derived key algorithm: %s", derivedAlgorithm.Name())
	}
	if derived.Length != 128 && derived.Length != 192 && derived.Length != 256 {
		return nil, errors.New("AES key length must be 128, 192, or 256")
	}

	var secret []byte
	switch alg := algorithm.(type) {
	case webcrypto.AlgorithmName:
		if alg.Name() == webcrypto.AlgHKDF {
			return nil, errors.New("HKDF algorithm parameters are required")
		}
		return nil, fmt.Errorf("unsupported derive algorithm: %s", alg.Name())
	case webcrypto.HkdfParams:
		secret, err = deriveHKDF(base, alg, derived.Length)
	case webcrypto.EcdhDeriveSpec:
		secret, err = deriveECDH(base, alg, derived.Length)
	default:
		return nil, fmt.Errorf("unsupported derive algorithm: %s", algorithm.Name())
	}
	if err != nil {
		return nil, err
	}
	return &keyObject{
		algorithm:   derivedAlgorithm,
		extractable: extractable,
		usages:      usages,
		secret:      secret,
	}, nil
}

func deriveHKDF(base *keyObject, params webcrypto.HkdfParams, lengthBits int) ([]byte, error) {
	if len(base.secret) == 0 {
		return nil, errors.New("HKDF requires a secret key")
	}
	newHash, err := hashFactory(params.Hash)
	if err != nil {
		return nil, err
	}
	out := make([]byte, lengthBits/8)
	reader := hkdf.New(newHash, base.secret, params.Salt, params.Info)
	if _, err := io.ReadFull(reader, out); err != nil {
		return nil, err
	}
	return out, nil
}

func deriveECDH(base *keyObject, params webcrypto.EcdhDeriveSpec, lengthBits int) ([]byte, error) {
	if base.private == nil {
		return nil, errors.New("ECDH baseKey must be an ECDH private key")
	}
	peer, err := keyOf(params.Public)
	if err != nil {
		return nil, err
	}
	pub := peer.public
	if pub == nil && peer.private != nil {
		pub = peer.private.PublicKey()
	}
	if pub == nil {
		return nil, errors.New("algorithm.public must be an ECDH key")
	}
	shared, err := base.private.ECDH(pub)
	if err != nil {
		return nil, err
	}
	if lengthBits > len(shared)*8 {
		return nil, errors.New("requested length exceeds shared secret size")
	}
	return shared[:lengthBits/8], nil
}

// ExportKey serializes a key. Keys created non-extractable are refused.
func (p *Provider) ExportKey(_ context.Context, format string, key webcrypto.KeyRef) ([]byte, error) {
	k, err := keyOf(key)
	if err != nil {
		return nil, err
	}
	if !k.extractable {
		return nil, errors.New("key is not extractable")
	}
	switch format {
	case "raw":
		if len(k.secret) != 0 {
			return append([]byte(nil), k.secret...), nil
		}
		if k.public != nil {
			return k.public.Bytes(), nil
		}
		return nil, errors.New("raw export requires a secret or public key")
	case "spki":
		pub := k.public
		if pub == nil && k.private != nil {
			pub = k.private.PublicKey()
		}
		if pub == nil {
			return nil, errors.New("spki export requires a public key")
		}
		return x509.MarshalPKIXPublicKey(pub)
	default:
		return nil, fmt.Errorf("unsupported export format: %s", format)
	}
}

// Encrypt seals data under AES-GCM.
func (p *Provider) Encrypt(_ context.Context, params webcrypto.AesGcmParams, key webcrypto.KeyRef, data []byte) ([]byte, error) {
	k, err := keyOf(key)
	if err != nil {
		return nil, err
	}
	if !k.allows("encrypt") {
		return nil, errors.New("key does not permit encrypt")
	}
	gcm, err := aeadFor(k, params)
	if err != nil {
		return nil, err
	}
	return gcm.Seal(nil, params.IV, data, nil), nil
}

// Decrypt opens data under AES-GCM. An authentication failure is returned as
// the cipher error.
func (p *Provider) Decrypt(_ context.Context, params webcrypto.AesGcmParams, key webcrypto.KeyRef, data []byte) ([]byte, error) {
	k, err := keyOf(key)
	if err != nil {
		return nil, err
	}
	if !k.allows("decrypt") {
		return nil, errors.New("key does not permit decrypt")
	}
	gcm, err := aeadFor(k, params)
	if err != nil {
		return nil, err
	}
	return gcm.Open(nil, params.IV, data, nil)
}

func aeadFor(k *keyObject, params webcrypto.AesGcmParams) (cipher.AEAD, error) {
	if len(k.secret) == 0 {
		return nil, errors.New("AES-GCM requires a secret key")
	}
	if err := checkTagLength(params.TagLength); err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(k.secret)
	if err != nil {
		return nil, err
	}
	if len(params.IV) == 12 {
		return cipher.NewGCMWithTagSize(block, params.TagLength/8)
	}
	if params.TagLength != 128 {
		return nil, errors.New("AES-GCM non-12-byte iv requires tagLength 128")
	}
	return cipher.NewGCMWithNonceSize(block, len(params.IV))
}

func checkTagLength(tagLength int) error {
	switch tagLength {
	case 32, 64, 96, 104, 112, 120, 128:
		return nil
	default:
		return errors.New("invalid AES-GCM tagLength")
	}
}

// ReleaseKey wipes the key object's material.
func (p *Provider) ReleaseKey(key webcrypto.KeyRef) {
	k, err := keyOf(key)
	if err != nil {
		return
	}
	for i := range k.secret {
		k.secret[i] = 0
	}
	k.secret = nil
	k.private = nil
	k.public = nil
}
