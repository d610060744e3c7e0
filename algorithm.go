package webcrypto

// Supported algorithm and curve names.
const (
	AlgSHA1   = "SHA-1"
	AlgSHA256 = "SHA-256"
	AlgSHA384 = "SHA-384"
	AlgSHA512 = "SHA-512"
	AlgECDH   = "ECDH"
	AlgHKDF   = "HKDF"
	AlgAESGCM = "AES-GCM"

	CurveP256 = "P-256"
)

var digestAlgorithms = []string{AlgSHA1, AlgSHA256, AlgSHA384, AlgSHA512}

// Algorithm is a validated algorithm descriptor. Concrete variants carry the
// exact field set their family allows; selection from untyped input happens
// in the parse functions below.
type Algorithm interface {
	Name() string
}

// AlgorithmName is the bare-string descriptor form. A record descriptor whose
// only field is its name collapses to this form before it is stored on a key.
type AlgorithmName string

func (a AlgorithmName) Name() string { return string(a) }

// EcdhKeyParams describes an ECDH key for import and generation.
type EcdhKeyParams struct {
	NamedCurve string
}

func (EcdhKeyParams) Name() string { return AlgECDH }

// EcdhDeriveParams parameterizes an ECDH derivation against a peer key.
type EcdhDeriveParams struct {
	NamedCurve string
	Public     *CryptoKey
}

func (EcdhDeriveParams) Name() string { return AlgECDH }

// EcdhDeriveSpec is the provider-facing form of EcdhDeriveParams, with the
// peer key resolved to its provider reference.
type EcdhDeriveSpec struct {
	NamedCurve string
	Public     KeyRef
}

func (EcdhDeriveSpec) Name() string { return AlgECDH }

// HkdfParams parameterizes an HKDF derivation.
type HkdfParams struct {
	Hash string
	Salt []byte
	Info []byte
}

func (HkdfParams) Name() string { return AlgHKDF }

// AesGcmParams parameterizes an AES-GCM encrypt or decrypt call.
type AesGcmParams struct {
	IV        []byte
	TagLength int
}

func (AesGcmParams) Name() string { return AlgAESGCM }

// AesDerivedKeyParams describes the AES-GCM key a derivation produces.
type AesDerivedKeyParams struct {
	Length int
}

func (AesDerivedKeyParams) Name() string { return AlgAESGCM }

// algorithmRecord splits an untyped descriptor into its name and, for record
// form, its field map. Bare names return a nil map.
func algorithmRecord(v any) (string, map[string]any, error) {
	switch t := v.(type) {
	case nil:
		return "", nil, newValidationError("algorithm is required")
	case string:
		if t == "" {
			return "", nil, newValidationError("algorithm name is required")
		}
		return t, nil, nil
	case AlgorithmName:
		return algorithmRecord(string(t))
	case map[string]any:
		nameVal, ok := t["name"]
		if !ok || nameVal == nil {
			return "", nil, newValidationError("algorithm.name is required")
		}
		name, ok := nameVal.(string)
		if !ok {
			return "", nil, newValidationError("algorithm.name must be a string, got %v", nameVal)
		}
		return name, t, nil
	default:
		return "", nil, newValidationError("algorithm must be a string or an object, got %T", v)
	}
}

// parseDigestAlgorithm accepts a bare name or a {name} record for the digest
// family, tolerating case and separator variants the way callers write them.
func parseDigestAlgorithm(v any) (string, error) {
	name, rec, err := algorithmRecord(v)
	if err != nil {
		return "", err
	}
	if rec != nil {
		if err := checkKeysSubset(rec, "algorithm", "name"); err != nil {
			return "", err
		}
	}
	name = normalizeDigestName(name)
	if err := checkEnumMember(name, digestAlgorithms, "algorithm"); err != nil {
		return "", err
	}
	return name, nil
}

func normalizeDigestName(raw string) string {
	switch raw {
	case "sha-1", "SHA1", "sha1":
		return AlgSHA1
	case "sha-256", "SHA256", "sha256":
		return AlgSHA256
	case "sha-384", "SHA384", "sha384":
		return AlgSHA384
	case "sha-512", "SHA512", "sha512":
		return AlgSHA512
	default:
		return raw
	}
}

// parseImportAlgorithm selects the variant legal for importKey. A record with
// no fields besides its name collapses to the bare form.
func parseImportAlgorithm(v any) (Algorithm, error) {
	name, rec, err := algorithmRecord(v)
	if err != nil {
		return nil, err
	}
	switch name {
	case AlgECDH:
		if rec == nil {
			return nil, newValidationError("algorithm.namedCurve is required")
		}
		if err := checkKeysSubset(rec, "algorithm", "name", "namedCurve"); err != nil {
			return nil, err
		}
		curve, err := namedCurveOf(rec)
		if err != nil {
			return nil, err
		}
		return EcdhKeyParams{NamedCurve: curve}, nil
	case AlgAESGCM, AlgHKDF:
		if rec != nil {
			if err := checkKeysSubset(rec, "algorithm", "name"); err != nil {
				return nil, err
			}
		}
		return AlgorithmName(name), nil
	default:
		return nil, newAlgorithmMismatchError("unsupported import algorithm: %s", name)
	}
}

// parseGenerateAlgorithm restricts generateKey to ECDH over P-256.
func parseGenerateAlgorithm(v any) (Algorithm, error) {
	name, rec, err := algorithmRecord(v)
	if err != nil {
		return nil, err
	}
	if name != AlgECDH {
		return nil, newAlgorithmMismatchError("unsupported generateKey algorithm: %s", name)
	}
	if rec == nil {
		return nil, newValidationError("algorithm.namedCurve is required")
	}
	if err := checkKeysSubset(rec, "algorithm", "name", "namedCurve"); err != nil {
		return nil, err
	}
	curve, err := namedCurveOf(rec)
	if err != nil {
		return nil, err
	}
	return EcdhKeyParams{NamedCurve: curve}, nil
}

// parseDeriveAlgorithm is the shared gate for deriveBits and deriveKey. Bare
// "HKDF" passes through unchanged; AES-GCM is never a derivation source.
func parseDeriveAlgorithm(v any) (Algorithm, error) {
	name, rec, err := algorithmRecord(v)
	if err != nil {
		return nil, err
	}
	if name == AlgAESGCM {
		return nil, newAlgorithmMismatchError("%s cannot be used to derive keys", AlgAESGCM)
	}
	if rec == nil {
		if name == AlgHKDF {
			return AlgorithmName(AlgHKDF), nil
		}
		return nil, newValidationError("unsupported derive algorithm: %s", name)
	}
	if err := checkKeysSubset(rec, "algorithm",
		"name", "namedCurve", "public", "hash", "salt", "info"); err != nil {
		return nil, err
	}
	switch name {
	case AlgECDH:
		curve, err := namedCurveOf(rec)
		if err != nil {
			return nil, err
		}
		pubVal, ok := rec["public"]
		if !ok || pubVal == nil {
			return nil, newValidationError("algorithm.public is required")
		}
		pub, err := requireKey(pubVal, "algorithm.public")
		if err != nil {
			return nil, err
		}
		return EcdhDeriveParams{NamedCurve: curve, Public: pub}, nil
	case AlgHKDF:
		hashVal, ok := rec["hash"]
		if !ok || hashVal == nil {
			return nil, newValidationError("algorithm.hash is required")
		}
		hashName, err := requireString(hashVal, "algorithm.hash")
		if err != nil {
			return nil, err
		}
		salt, err := bufferField(rec, "salt")
		if err != nil {
			return nil, err
		}
		info, err := bufferField(rec, "info")
		if err != nil {
			return nil, err
		}
		return HkdfParams{Hash: hashName, Salt: salt, Info: info}, nil
	default:
		return nil, newAlgorithmMismatchError("unsupported derive algorithm: %s", name)
	}
}

// parseDerivedKeyAlgorithm restricts deriveKey targets to AES-GCM with an
// explicit bit length.
func parseDerivedKeyAlgorithm(v any) (AesDerivedKeyParams, error) {
	name, rec, err := algorithmRecord(v)
	if err != nil {
		return AesDerivedKeyParams{}, err
	}
	if name != AlgAESGCM {
		return AesDerivedKeyParams{}, newAlgorithmMismatchError(
			"unsupported derived key algorithm: %s", name)
	}
	if rec == nil {
		return AesDerivedKeyParams{}, newValidationError("algorithm.length is required")
	}
	if err := checkKeysSubset(rec, "derivedKeyAlgorithm", "name", "length"); err != nil {
		return AesDerivedKeyParams{}, err
	}
	lengthVal, ok := rec["length"]
	if !ok || lengthVal == nil {
		return AesDerivedKeyParams{}, newValidationError("algorithm.length is required")
	}
	length, err := requireFiniteNumber(lengthVal, "algorithm.length")
	if err != nil {
		return AesDerivedKeyParams{}, err
	}
	return AesDerivedKeyParams{Length: int(length)}, nil
}

// parseAeadParams validates the AES-GCM encrypt/decrypt descriptor. An absent
// or NaN tagLength defaults to 128; other values are forwarded to the
// Provider unchanged.
func parseAeadParams(v any) (AesGcmParams, error) {
	name, rec, err := algorithmRecord(v)
	if err != nil {
		return AesGcmParams{}, err
	}
	if name != AlgAESGCM {
		return AesGcmParams{}, newAlgorithmMismatchError(
			"unsupported cipher algorithm: %s", name)
	}
	if rec == nil {
		return AesGcmParams{}, newValidationError("algorithm.iv is required")
	}
	if err := checkKeysSubset(rec, "algorithm", "name", "iv", "tagLength"); err != nil {
		return AesGcmParams{}, err
	}
	ivVal, ok := rec["iv"]
	if !ok || ivVal == nil {
		return AesGcmParams{}, newValidationError("algorithm.iv is required")
	}
	iv, err := bufferLike(ivVal)
	if err != nil {
		return AesGcmParams{}, err
	}
	tagLength, err := tagLengthOf(rec)
	if err != nil {
		return AesGcmParams{}, err
	}
	return AesGcmParams{IV: iv, TagLength: tagLength}, nil
}

func tagLengthOf(rec map[string]any) (int, error) {
	v, ok := rec["tagLength"]
	if !ok || v == nil {
		return 128, nil
	}
	f, err := numberValue(v, "algorithm.tagLength")
	if err != nil {
		return 0, err
	}
	if f != f { // NaN
		return 128, nil
	}
	return int(f), nil
}

func namedCurveOf(rec map[string]any) (string, error) {
	v, ok := rec["namedCurve"]
	if !ok || v == nil {
		return "", newValidationError("algorithm.namedCurve is required")
	}
	curve, err := requireString(v, "algorithm.namedCurve")
	if err != nil {
		return "", err
	}
	if err := checkEnumMember(curve, []string{CurveP256}, "algorithm.namedCurve"); err != nil {
		return "", err
	}
	return curve, nil
}

func bufferField(rec map[string]any, field string) ([]byte, error) {
	v, ok := rec[field]
	if !ok || v == nil {
		return nil, newValidationError("algorithm.%s is required", field)
	}
	buf, err := bufferLike(v)
	if err != nil {
		return nil, err
	}
	return buf, nil
}
