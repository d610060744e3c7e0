package jsapi

import (
	"errors"
	"strings"

	"github.com/dop251/goja"
)

// ensureTextEncodingGlobals installs utf-8 TextEncoder/TextDecoder if the
// runtime does not already provide them. Scripts driving the crypto surface
// almost always need them to move between strings and byte views.
func ensureTextEncodingGlobals(rt *goja.Runtime) {
	if !isValuePresent(rt.Get("TextEncoder")) {
		_ = rt.Set("TextEncoder", func(call goja.ConstructorCall) *goja.Object {
			obj := call.This
			_ = obj.Set("encoding", "utf-8")
			_ = obj.Set("encode", func(fc goja.FunctionCall) goja.Value {
				input := ""
				if v := fc.Argument(0); isValuePresent(v) {
					input = v.String()
				}
				return bytesToUint8Array(rt, []byte(input))
			})
			return obj
		})
	}
	if !isValuePresent(rt.Get("TextDecoder")) {
		_ = rt.Set("TextDecoder", func(call goja.ConstructorCall) *goja.Object {
			obj := call.This
			if v := call.Argument(0); isValuePresent(v) {
				label := strings.TrimSpace(strings.ToLower(v.String()))
				if label != "" && label != "utf-8" && label != "utf8" {
					panic(rt.NewTypeError("TextDecoder only supports utf-8"))
				}
			}
			_ = obj.Set("encoding", "utf-8")
			_ = obj.Set("fatal", false)
			_ = obj.Set("ignoreBOM", false)
			_ = obj.Set("decode", func(fc goja.FunctionCall) goja.Value {
				input := fc.Argument(0)
				if !isValuePresent(input) {
					return rt.ToValue("")
				}
				data, err := decodeInputBytes(rt, input)
				if err != nil {
					panic(rt.NewTypeError("TextDecoder.decode: " + err.Error()))
				}
				return rt.ToValue(string(data))
			})
			return obj
		})
	}
}

func decodeInputBytes(rt *goja.Runtime, v goja.Value) ([]byte, error) {
	if ab, ok := v.Export().(goja.ArrayBuffer); ok {
		return ab.Bytes(), nil
	}
	view, err := viewFromValue(rt, v)
	if err != nil {
		return nil, err
	}
	if !view.Valid() {
		return nil, errors.New("invalid buffer range")
	}
	return view.Bytes(), nil
}

func bytesToUint8Array(rt *goja.Runtime, data []byte) goja.Value {
	ctor, ok := goja.AssertConstructor(rt.Get("Uint8Array"))
	if !ok {
		return rt.ToValue(rt.NewArrayBuffer(data))
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	typed, err := ctor(nil, rt.ToValue(rt.NewArrayBuffer(buf)))
	if err != nil {
		panic(rt.NewGoError(errors.New("failed to construct Uint8Array")))
	}
	return typed
}
