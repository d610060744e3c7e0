package jsapi

import (
	"errors"

	"github.com/dop251/goja"

	"github.com/sealbridge/webcrypto"
)

func isValuePresent(v goja.Value) bool {
	return v != nil && !goja.IsUndefined(v) && !goja.IsNull(v)
}

// argumentValue lowers a goja value into the shape the facade validates:
// CryptoKey handles, byte buffers, views, and plain exported scalars.
func argumentValue(rt *goja.Runtime, v goja.Value) any {
	if !isValuePresent(v) {
		return nil
	}
	if key := keyFromValue(rt, v); key != nil {
		return key
	}
	if ab, ok := v.Export().(goja.ArrayBuffer); ok {
		return ab.Bytes()
	}
	if obj, ok := v.(*goja.Object); ok {
		if view, err := viewFromObject(rt, obj); err == nil {
			return view
		}
	}
	return v.Export()
}

// algorithmValue lowers an algorithm argument: bare strings pass through,
// objects become field maps with nested buffers and keys lowered.
func algorithmValue(rt *goja.Runtime, v goja.Value) any {
	if !isValuePresent(v) {
		return nil
	}
	if s, ok := v.Export().(string); ok {
		return s
	}
	obj, ok := v.(*goja.Object)
	if !ok {
		return v.Export()
	}
	rec := make(map[string]any, len(obj.Keys()))
	for _, k := range obj.Keys() {
		rec[k] = argumentValue(rt, obj.Get(k))
	}
	return rec
}

func viewFromValue(rt *goja.Runtime, v goja.Value) (webcrypto.View, error) {
	if !isValuePresent(v) {
		return webcrypto.View{}, errors.New("input is required")
	}
	obj, ok := v.(*goja.Object)
	if !ok {
		return webcrypto.View{}, errors.New("input must be an ArrayBufferView")
	}
	return viewFromObject(rt, obj)
}

func viewFromObject(rt *goja.Runtime, obj *goja.Object) (webcrypto.View, error) {
	kind, ok := typedArrayKinds[constructorName(rt, obj)]
	if !ok {
		return webcrypto.View{}, errors.New("input must be an ArrayBufferView")
	}
	bufferVal := obj.Get("buffer")
	if !isValuePresent(bufferVal) {
		return webcrypto.View{}, errors.New("input must be an ArrayBufferView")
	}
	arrayBuffer, ok := bufferVal.Export().(goja.ArrayBuffer)
	if !ok {
		return webcrypto.View{}, errors.New("input buffer must be an ArrayBuffer")
	}
	return webcrypto.View{
		Buffer:     arrayBuffer.Bytes(),
		ByteOffset: int(obj.Get("byteOffset").ToInteger()),
		ByteLength: int(obj.Get("byteLength").ToInteger()),
		Kind:       kind,
	}, nil
}

func constructorName(rt *goja.Runtime, obj *goja.Object) string {
	ctor := obj.Get("constructor")
	if !isValuePresent(ctor) {
		return ""
	}
	name := ctor.ToObject(rt).Get("name")
	if !isValuePresent(name) {
		return ""
	}
	return name.String()
}

func newKeyObject(rt *goja.Runtime, key *webcrypto.CryptoKey) *goja.Object {
	obj := rt.NewObject()
	_ = obj.Set("type", string(key.Type()))
	_ = obj.Set("extractable", key.Extractable())
	_ = obj.Set("algorithm", renderAlgorithm(rt, key.Algorithm()))
	_ = obj.Set("usages", key.Usages())
	_ = obj.Set(keyHandleSlot, key)
	return obj
}

func keyFromValue(rt *goja.Runtime, v goja.Value) *webcrypto.CryptoKey {
	if key, ok := v.Export().(*webcrypto.CryptoKey); ok {
		return key
	}
	obj, ok := v.(*goja.Object)
	if !ok {
		return nil
	}
	slot := obj.Get(keyHandleSlot)
	if !isValuePresent(slot) {
		return nil
	}
	key, ok := slot.Export().(*webcrypto.CryptoKey)
	if !ok {
		return nil
	}
	return key
}

// renderAlgorithm mirrors the stored descriptor into JS: collapsed names stay
// bare strings, record variants become objects with their field set.
func renderAlgorithm(rt *goja.Runtime, alg webcrypto.Algorithm) goja.Value {
	switch a := alg.(type) {
	case webcrypto.AlgorithmName:
		return rt.ToValue(string(a))
	case webcrypto.EcdhKeyParams:
		obj := rt.NewObject()
		_ = obj.Set("name", webcrypto.AlgECDH)
		_ = obj.Set("namedCurve", a.NamedCurve)
		return obj
	case webcrypto.AesDerivedKeyParams:
		obj := rt.NewObject()
		_ = obj.Set("name", webcrypto.AlgAESGCM)
		_ = obj.Set("length", a.Length)
		return obj
	default:
		obj := rt.NewObject()
		_ = obj.Set("name", alg.Name())
		return obj
	}
}
