package webcrypto

// ViewKind identifies the element type of a buffer view.
type ViewKind int

const (
	ViewUint8 ViewKind = iota
	ViewUint8Clamped
	ViewInt8
	ViewUint16
	ViewInt16
	ViewUint32
	ViewInt32
	ViewBigUint64
	ViewBigInt64
	ViewFloat32
	ViewFloat64
)

var viewKindNames = map[ViewKind]string{
	ViewUint8:        "Uint8Array",
	ViewUint8Clamped: "Uint8ClampedArray",
	ViewInt8:         "Int8Array",
	ViewUint16:       "Uint16Array",
	ViewInt16:        "Int16Array",
	ViewUint32:       "Uint32Array",
	ViewInt32:        "Int32Array",
	ViewBigUint64:    "BigUint64Array",
	ViewBigInt64:     "BigInt64Array",
	ViewFloat32:      "Float32Array",
	ViewFloat64:      "Float64Array",
}

func (k ViewKind) String() string {
	if name, ok := viewKindNames[k]; ok {
		return name
	}
	return "unknown view kind"
}

func (k ViewKind) isFloat() bool {
	return k == ViewFloat32 || k == ViewFloat64
}

// View is a window over a byte buffer. Bytes aliases the underlying buffer,
// so writes through one view are visible through every other view of it.
type View struct {
	Buffer     []byte
	ByteOffset int
	ByteLength int
	Kind       ViewKind
}

// NewView wraps buf whole as a view of the given kind.
func NewView(buf []byte, kind ViewKind) View {
	return View{Buffer: buf, ByteLength: len(buf), Kind: kind}
}

// Valid reports whether the window lies inside the underlying buffer.
func (v View) Valid() bool {
	return v.ByteOffset >= 0 && v.ByteLength >= 0 &&
		v.ByteOffset+v.ByteLength <= len(v.Buffer)
}

// Bytes returns the windowed slice of the underlying buffer, aliased.
func (v View) Bytes() []byte {
	return v.Buffer[v.ByteOffset : v.ByteOffset+v.ByteLength]
}
