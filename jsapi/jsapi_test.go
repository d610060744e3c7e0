package jsapi_test

import (
	"encoding/hex"
	"testing"

	"github.com/dop251/goja"

	"github.com/sealbridge/webcrypto"
	"github.com/sealbridge/webcrypto/jsapi"
	"github.com/sealbridge/webcrypto/localprovider"
)

func newTestRuntime(t *testing.T) *goja.Runtime {
	t.Helper()
	rt := goja.New()
	jsapi.Enable(rt, webcrypto.New(localprovider.New()))
	return rt
}

// fulfilled runs script, requires it to evaluate to a fulfilled promise, and
// returns the resolution value.
func fulfilled(t *testing.T, rt *goja.Runtime, script string) goja.Value {
	t.Helper()
	v, err := rt.RunString(script)
	if err != nil {
		t.Fatalf("script threw: %v", err)
	}
	p, ok := v.Export().(*goja.Promise)
	if !ok {
		t.Fatalf("script did not return a promise: %T", v.Export())
	}
	if p.State() != goja.PromiseStateFulfilled {
		t.Fatalf("promise not fulfilled: state=%v result=%v", p.State(), p.Result())
	}
	return p.Result()
}

// rejection runs script, requires it to evaluate to a rejected promise, and
// returns the rejection reason.
func rejection(t *testing.T, rt *goja.Runtime, script string) goja.Value {
	t.Helper()
	v, err := rt.RunString(script)
	if err != nil {
		t.Fatalf("script threw instead of rejecting: %v", err)
	}
	p, ok := v.Export().(*goja.Promise)
	if !ok {
		t.Fatalf("script did not return a promise: %T", v.Export())
	}
	if p.State() != goja.PromiseStateRejected {
		t.Fatalf("promise not rejected: state=%v result=%v", p.State(), p.Result())
	}
	return p.Result()
}

// caught runs an expression and reports how it failed: "no-throw",
// "type-error", or "other".
func caught(t *testing.T, rt *goja.Runtime, expr string) string {
	t.Helper()
	v, err := rt.RunString(`(function() {
		try { ` + expr + `; return "no-throw"; }
		catch (e) { return e instanceof TypeError ? "type-error" : "other"; }
	})()`)
	if err != nil {
		t.Fatalf("probe script broken: %v", err)
	}
	return v.String()
}

func arrayBufferBytes(t *testing.T, v goja.Value) []byte {
	t.Helper()
	ab, ok := v.Export().(goja.ArrayBuffer)
	if !ok {
		t.Fatalf("not an ArrayBuffer: %T", v.Export())
	}
	return ab.Bytes()
}

func mustBeTrue(t *testing.T, rt *goja.Runtime, expr string) {
	t.Helper()
	v, err := rt.RunString(expr)
	if err != nil {
		t.Fatalf("script threw: %v", err)
	}
	if !v.ToBoolean() {
		t.Fatalf("expected true: %s", expr)
	}
}

func TestGetRandomValuesFillsTypedArray(t *testing.T) {
	rt := newTestRuntime(t)
	mustBeTrue(t, rt, `
		const a = new Uint8Array(32);
		crypto.getRandomValues(a) === a && a.some(x => x !== 0)
	`)
}

func TestGetRandomValuesThrowsTypeError(t *testing.T) {
	rt := newTestRuntime(t)
	cases := []string{
		`crypto.getRandomValues()`,
		`crypto.getRandomValues("bytes")`,
		`crypto.getRandomValues(new Float64Array(4))`,
		`crypto.getRandomValues(new Uint8Array(65537))`,
	}
	for _, expr := range cases {
		if got := caught(t, rt, expr); got != "type-error" {
			t.Fatalf("%s: got=%q want=type-error", expr, got)
		}
	}
}

func TestRandomUUID(t *testing.T) {
	rt := newTestRuntime(t)
	mustBeTrue(t, rt, `/^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$/.test(crypto.randomUUID())`)
	mustBeTrue(t, rt, `crypto.randomUUID() !== crypto.randomUUID()`)
}

func TestDigest(t *testing.T) {
	rt := newTestRuntime(t)
	out := arrayBufferBytes(t, fulfilled(t, rt,
		`crypto.subtle.digest("SHA-256", new TextEncoder().encode("abc"))`))
	want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if hex.EncodeToString(out) != want {
		t.Fatalf("digest: got=%x want=%s", out, want)
	}

	// Record descriptors and sloppy names are accepted too.
	out = arrayBufferBytes(t, fulfilled(t, rt,
		`crypto.subtle.digest({name: "sha-256"}, new TextEncoder().encode("abc"))`))
	if hex.EncodeToString(out) != want {
		t.Fatalf("record digest: got=%x want=%s", out, want)
	}
}

func TestDigestRejectsInsteadOfThrowing(t *testing.T) {
	rt := newTestRuntime(t)
	rejection(t, rt, `crypto.subtle.digest("MD5", new Uint8Array(4))`)
	rejection(t, rt, `crypto.subtle.digest("SHA-256")`)
	rejection(t, rt, `crypto.subtle.digest("SHA-256", "not a buffer")`)
}

func TestImportExportKey(t *testing.T) {
	rt := newTestRuntime(t)

	key := fulfilled(t, rt, `
		crypto.subtle.importKey("raw",
			new Uint8Array([0,1,2,3,4,5,6,7,8,9,10,11,12,13,14,15]),
			{name: "AES-GCM"}, true, ["encrypt", "decrypt", "encrypt"])
	`)
	_ = rt.Set("key", key)

	// The name-only record collapses; usages are frozen and deduped.
	mustBeTrue(t, rt, `key.type === "secret"`)
	mustBeTrue(t, rt, `key.extractable === true`)
	mustBeTrue(t, rt, `key.algorithm === "AES-GCM"`)
	mustBeTrue(t, rt, `key.usages.length === 2 && key.usages[0] === "encrypt" && key.usages[1] === "decrypt"`)

	out := arrayBufferBytes(t, fulfilled(t, rt, `crypto.subtle.exportKey("raw", key)`))
	if len(out) != 16 || out[0] != 0 || out[15] != 15 {
		t.Fatalf("exported key wrong: %x", out)
	}
}

func TestImportKeyArityIsExact(t *testing.T) {
	rt := newTestRuntime(t)
	under := `crypto.subtle.importKey("raw", new Uint8Array(16), "AES-GCM", true)`
	over := `crypto.subtle.importKey("raw", new Uint8Array(16), "AES-GCM", true, [], "extra")`
	for _, expr := range []string{under, over} {
		if got := caught(t, rt, expr); got != "type-error" {
			t.Fatalf("%s: got=%q want=type-error", expr, got)
		}
	}
}

func TestExportNonExtractableRejects(t *testing.T) {
	rt := newTestRuntime(t)
	key := fulfilled(t, rt,
		`crypto.subtle.importKey("raw", new Uint8Array(16), "AES-GCM", false, [])`)
	_ = rt.Set("lockedKey", key)
	rejection(t, rt, `crypto.subtle.exportKey("raw", lockedKey)`)
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	rt := newTestRuntime(t)

	key := fulfilled(t, rt,
		`crypto.subtle.importKey("raw", new Uint8Array(32), "AES-GCM", false, ["encrypt", "decrypt"])`)
	_ = rt.Set("key", key)

	sealed := fulfilled(t, rt, `
		crypto.subtle.encrypt({name: "AES-GCM", iv: new Uint8Array(12)}, key,
			new TextEncoder().encode("attack at dawn"))
	`)
	_ = rt.Set("sealed", sealed)

	opened := fulfilled(t, rt,
		`crypto.subtle.decrypt({name: "AES-GCM", iv: new Uint8Array(12)}, key, sealed)`)
	_ = rt.Set("opened", opened)
	mustBeTrue(t, rt, `new TextDecoder().decode(opened) === "attack at dawn"`)
}

func TestEncryptTagLength(t *testing.T) {
	rt := newTestRuntime(t)
	key := fulfilled(t, rt,
		`crypto.subtle.importKey("raw", new Uint8Array(16), "AES-GCM", false, ["encrypt"])`)
	_ = rt.Set("key", key)

	// NaN falls back to the 128-bit default.
	plain := fulfilled(t, rt, `
		crypto.subtle.encrypt({name: "AES-GCM", iv: new Uint8Array(12), tagLength: NaN}, key,
			new Uint8Array(4))
	`)
	if got := len(arrayBufferBytes(t, plain)); got != 4+16 {
		t.Fatalf("ciphertext length: got=%d want=20", got)
	}

	// Out-of-range values reach the backend and fail there.
	rejection(t, rt, `
		crypto.subtle.encrypt({name: "AES-GCM", iv: new Uint8Array(12), tagLength: 13}, key,
			new Uint8Array(4))
	`)
}

func TestEncryptUnknownParamThrows(t *testing.T) {
	rt := newTestRuntime(t)
	key := fulfilled(t, rt,
		`crypto.subtle.importKey("raw", new Uint8Array(16), "AES-GCM", false, ["encrypt"])`)
	_ = rt.Set("key", key)

	expr := `crypto.subtle.encrypt({name: "AES-GCM", iv: new Uint8Array(12), additionalData: new Uint8Array(2)}, key, new Uint8Array(4))`
	if got := caught(t, rt, expr); got != "type-error" {
		t.Fatalf("got=%q want=type-error", got)
	}
}

func TestGenerateKeyAndDeriveBits(t *testing.T) {
	rt := newTestRuntime(t)

	pair := fulfilled(t, rt,
		`crypto.subtle.generateKey({name: "ECDH", namedCurve: "P-256"}, false, ["deriveBits"])`)
	_ = rt.Set("pair", pair)

	mustBeTrue(t, rt, `pair.privateKey.type === "private"`)
	mustBeTrue(t, rt, `pair.publicKey.type === "public"`)
	mustBeTrue(t, rt, `pair.privateKey.extractable === false`)
	mustBeTrue(t, rt, `pair.publicKey.extractable === true`)
	mustBeTrue(t, rt, `pair.privateKey.algorithm.name === "ECDH" && pair.privateKey.algorithm.namedCurve === "P-256"`)

	bits := fulfilled(t, rt, `
		crypto.subtle.deriveBits({name: "ECDH", namedCurve: "P-256", public: pair.publicKey},
			pair.privateKey, 256)
	`)
	if got := len(arrayBufferBytes(t, bits)); got != 32 {
		t.Fatalf("derived bits length: got=%d want=32", got)
	}
}

func TestDeriveBitsGates(t *testing.T) {
	rt := newTestRuntime(t)
	key := fulfilled(t, rt,
		`crypto.subtle.importKey("raw", new TextEncoder().encode("ikm"), "HKDF", false, ["deriveBits"])`)
	_ = rt.Set("ikm", key)

	// AES-GCM is not a derivation source; that is a synchronous TypeError.
	expr := `crypto.subtle.deriveBits({name: "AES-GCM"}, ikm, 256)`
	if got := caught(t, rt, expr); got != "type-error" {
		t.Fatalf("got=%q want=type-error", got)
	}

	// Bare HKDF passes validation and fails in the backend.
	rejection(t, rt, `crypto.subtle.deriveBits("HKDF", ikm, 256)`)
}

func TestDeriveKeyToWorkingAesKey(t *testing.T) {
	rt := newTestRuntime(t)

	ikm := fulfilled(t, rt,
		`crypto.subtle.importKey("raw", new TextEncoder().encode("input keying material"), "HKDF", false, ["deriveKey"])`)
	_ = rt.Set("ikm", ikm)

	derived := fulfilled(t, rt, `
		crypto.subtle.deriveKey(
			{name: "HKDF", hash: "SHA-256", salt: new Uint8Array(16), info: new Uint8Array(0)},
			ikm, {name: "AES-GCM", length: 256}, true, ["encrypt", "decrypt"])
	`)
	_ = rt.Set("derived", derived)

	mustBeTrue(t, rt, `derived.type === "secret"`)
	mustBeTrue(t, rt, `derived.algorithm.name === "AES-GCM" && derived.algorithm.length === 256`)

	if got := len(arrayBufferBytes(t, fulfilled(t, rt, `crypto.subtle.exportKey("raw", derived)`))); got != 32 {
		t.Fatalf("derived key length: got=%d want=32", got)
	}

	sealed := fulfilled(t, rt, `
		crypto.subtle.encrypt({name: "AES-GCM", iv: new Uint8Array(12)}, derived,
			new TextEncoder().encode("hello"))
	`)
	_ = rt.Set("sealed", sealed)
	opened := fulfilled(t, rt,
		`crypto.subtle.decrypt({name: "AES-GCM", iv: new Uint8Array(12)}, derived, sealed)`)
	_ = rt.Set("opened", opened)
	mustBeTrue(t, rt, `new TextDecoder().decode(opened) === "hello"`)
}

func TestTextEncodingGlobals(t *testing.T) {
	rt := newTestRuntime(t)
	mustBeTrue(t, rt, `new TextDecoder().decode(new TextEncoder().encode("héllo ✓")) === "héllo ✓"`)
	mustBeTrue(t, rt, `new TextEncoder().encoding === "utf-8"`)
	if got := caught(t, rt, `new TextDecoder("ascii")`); got != "type-error" {
		t.Fatalf("got=%q want=type-error", got)
	}
}
