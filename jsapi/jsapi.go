// Package jsapi binds a webcrypto.Crypto into a goja runtime as the global
// crypto object, with WebCrypto promise semantics: most operations throw a
// TypeError synchronously on bad arguments, digest always rejects, and
// provider failures reject the returned promise.
package jsapi

import (
	"context"

	"github.com/dop251/goja"

	"github.com/sealbridge/webcrypto"
)

const keyHandleSlot = "__webcrypto_key_handle__"

var typedArrayKinds = map[string]webcrypto.ViewKind{
	"Int8Array":         webcrypto.ViewInt8,
	"Uint8Array":        webcrypto.ViewUint8,
	"Uint8ClampedArray": webcrypto.ViewUint8Clamped,
	"Int16Array":        webcrypto.ViewInt16,
	"Uint16Array":       webcrypto.ViewUint16,
	"Int32Array":        webcrypto.ViewInt32,
	"Uint32Array":       webcrypto.ViewUint32,
	"BigInt64Array":     webcrypto.ViewBigInt64,
	"BigUint64Array":    webcrypto.ViewBigUint64,
	"Float32Array":      webcrypto.ViewFloat32,
	"Float64Array":      webcrypto.ViewFloat64,
	"DataView":          webcrypto.ViewUint8,
}

// Enable installs the crypto global (and TextEncoder/TextDecoder) on rt.
func Enable(rt *goja.Runtime, c *webcrypto.Crypto) {
	_ = rt.Set("crypto", cryptoObject(rt, c))
}

// Require exposes the crypto object as a CommonJS module export.
func Require(c *webcrypto.Crypto) func(rt *goja.Runtime, module *goja.Object) {
	return func(rt *goja.Runtime, module *goja.Object) {
		_ = module.Set("exports", cryptoObject(rt, c))
	}
}

func cryptoObject(rt *goja.Runtime, c *webcrypto.Crypto) *goja.Object {
	ensureTextEncodingGlobals(rt)

	subtle := c.Subtle
	subtleObj := rt.NewObject()
	_ = subtleObj.Set("digest", func(call goja.FunctionCall) goja.Value {
		return subtleDigest(rt, subtle, call)
	})
	_ = subtleObj.Set("importKey", func(call goja.FunctionCall) goja.Value {
		return subtleImportKey(rt, subtle, call)
	})
	_ = subtleObj.Set("exportKey", func(call goja.FunctionCall) goja.Value {
		return subtleExportKey(rt, subtle, call)
	})
	_ = subtleObj.Set("generateKey", func(call goja.FunctionCall) goja.Value {
		return subtleGenerateKey(rt, subtle, call)
	})
	_ = subtleObj.Set("deriveBits", func(call goja.FunctionCall) goja.Value {
		return subtleDeriveBits(rt, subtle, call)
	})
	_ = subtleObj.Set("deriveKey", func(call goja.FunctionCall) goja.Value {
		return subtleDeriveKey(rt, subtle, call)
	})
	_ = subtleObj.Set("encrypt", func(call goja.FunctionCall) goja.Value {
		return subtleEncrypt(rt, subtle, call)
	})
	_ = subtleObj.Set("decrypt", func(call goja.FunctionCall) goja.Value {
		return subtleDecrypt(rt, subtle, call)
	})

	cryptoObj := rt.NewObject()
	_ = cryptoObj.Set("subtle", subtleObj)
	_ = cryptoObj.Set("getRandomValues", func(call goja.FunctionCall) goja.Value {
		return getRandomValues(rt, c, call)
	})
	_ = cryptoObj.Set("randomUUID", func(goja.FunctionCall) goja.Value {
		return rt.ToValue(c.RandomUUID())
	})
	return cryptoObj
}

func getRandomValues(rt *goja.Runtime, c *webcrypto.Crypto, call goja.FunctionCall) goja.Value {
	if err := webcrypto.CheckArity(len(call.Arguments), 1); err != nil {
		panic(rt.NewTypeError("crypto.getRandomValues: " + err.Error()))
	}
	target := call.Argument(0)
	view, err := viewFromValue(rt, target)
	if err != nil {
		panic(rt.NewTypeError("crypto.getRandomValues: " + err.Error()))
	}
	if _, err := c.GetRandomValues(view); err != nil {
		if webcrypto.IsProviderError(err) {
			panic(rt.NewGoError(err))
		}
		panic(rt.NewTypeError("crypto.getRandomValues: " + err.Error()))
	}
	return target
}

func subtleDigest(rt *goja.Runtime, subtle *webcrypto.SubtleCrypto, call goja.FunctionCall) goja.Value {
	if err := webcrypto.CheckMinArity(len(call.Arguments), 2); err != nil {
		return rejectedPromise(rt, err)
	}
	fut := subtle.Digest(
		algorithmValue(rt, call.Argument(0)),
		argumentValue(rt, call.Argument(1)),
	)
	return settleBytes(rt, fut)
}

func subtleImportKey(rt *goja.Runtime, subtle *webcrypto.SubtleCrypto, call goja.FunctionCall) goja.Value {
	mustArity(rt, call, 5)
	fut, err := subtle.ImportKey(
		argumentValue(rt, call.Argument(0)),
		argumentValue(rt, call.Argument(1)),
		algorithmValue(rt, call.Argument(2)),
		argumentValue(rt, call.Argument(3)),
		argumentValue(rt, call.Argument(4)),
	)
	mustValid(rt, err)
	return settleKey(rt, fut)
}

func subtleExportKey(rt *goja.Runtime, subtle *webcrypto.SubtleCrypto, call goja.FunctionCall) goja.Value {
	mustArity(rt, call, 2)
	fut, err := subtle.ExportKey(
		argumentValue(rt, call.Argument(0)),
		argumentValue(rt, call.Argument(1)),
	)
	mustValid(rt, err)
	return settleBytes(rt, fut)
}

func subtleGenerateKey(rt *goja.Runtime, subtle *webcrypto.SubtleCrypto, call goja.FunctionCall) goja.Value {
	mustArity(rt, call, 3)
	fut, err := subtle.GenerateKey(
		algorithmValue(rt, call.Argument(0)),
		argumentValue(rt, call.Argument(1)),
		argumentValue(rt, call.Argument(2)),
	)
	mustValid(rt, err)
	pair, aerr := fut.Await(context.Background())
	if aerr != nil {
		return rejectedPromise(rt, aerr)
	}
	pairObj := rt.NewObject()
	_ = pairObj.Set("privateKey", newKeyObject(rt, pair.PrivateKey))
	_ = pairObj.Set("publicKey", newKeyObject(rt, pair.PublicKey))
	return resolvedPromise(rt, pairObj)
}

func subtleDeriveBits(rt *goja.Runtime, subtle *webcrypto.SubtleCrypto, call goja.FunctionCall) goja.Value {
	mustArity(rt, call, 3)
	fut, err := subtle.DeriveBits(
		algorithmValue(rt, call.Argument(0)),
		argumentValue(rt, call.Argument(1)),
		argumentValue(rt, call.Argument(2)),
	)
	mustValid(rt, err)
	return settleBytes(rt, fut)
}

func subtleDeriveKey(rt *goja.Runtime, subtle *webcrypto.SubtleCrypto, call goja.FunctionCall) goja.Value {
	mustArity(rt, call, 5)
	fut, err := subtle.DeriveKey(
		algorithmValue(rt, call.Argument(0)),
		argumentValue(rt, call.Argument(1)),
		algorithmValue(rt, call.Argument(2)),
		argumentValue(rt, call.Argument(3)),
		argumentValue(rt, call.Argument(4)),
	)
	mustValid(rt, err)
	return settleKey(rt, fut)
}

func subtleEncrypt(rt *goja.Runtime, subtle *webcrypto.SubtleCrypto, call goja.FunctionCall) goja.Value {
	mustArity(rt, call, 3)
	fut, err := subtle.Encrypt(
		algorithmValue(rt, call.Argument(0)),
		argumentValue(rt, call.Argument(1)),
		argumentValue(rt, call.Argument(2)),
	)
	mustValid(rt, err)
	return settleBytes(rt, fut)
}

func subtleDecrypt(rt *goja.Runtime, subtle *webcrypto.SubtleCrypto, call goja.FunctionCall) goja.Value {
	mustArity(rt, call, 3)
	fut, err := subtle.Decrypt(
		algorithmValue(rt, call.Argument(0)),
		argumentValue(rt, call.Argument(1)),
		argumentValue(rt, call.Argument(2)),
	)
	mustValid(rt, err)
	return settleBytes(rt, fut)
}

func mustArity(rt *goja.Runtime, call goja.FunctionCall, want int) {
	if err := webcrypto.CheckArity(len(call.Arguments), want); err != nil {
		panic(rt.NewTypeError(err.Error()))
	}
}

func mustValid(rt *goja.Runtime, err error) {
	if err != nil {
		panic(rt.NewTypeError(err.Error()))
	}
}

func settleBytes(rt *goja.Runtime, fut *webcrypto.Future[[]byte]) goja.Value {
	out, err := fut.Await(context.Background())
	if err != nil {
		return rejectedPromise(rt, err)
	}
	return resolvedPromise(rt, rt.NewArrayBuffer(out))
}

func settleKey(rt *goja.Runtime, fut *webcrypto.Future[*webcrypto.CryptoKey]) goja.Value {
	key, err := fut.Await(context.Background())
	if err != nil {
		return rejectedPromise(rt, err)
	}
	return resolvedPromise(rt, newKeyObject(rt, key))
}

func resolvedPromise(rt *goja.Runtime, value any) goja.Value {
	p, resolve, _ := rt.NewPromise()
	resolve(value)
	return rt.ToValue(p)
}

func rejectedPromise(rt *goja.Runtime, err error) goja.Value {
	p, _, reject := rt.NewPromise()
	reject(rt.NewTypeError(err.Error()))
	return rt.ToValue(p)
}
