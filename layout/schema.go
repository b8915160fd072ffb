// Package layout compiles declarative field schemas into fixed byte
// layouts and provides typed read/write primitives over a shared byte
// buffer. All multi-byte scalars are little-endian, unconditionally, so
// that a memory image is portable across any little-endian host.
package layout

import "fmt"

// Kind is a scalar numeric element type.
type Kind uint8

const (
	I8 Kind = iota
	U8
	I16
	U16
	I32
	U32
	F32
	F64
)

func (k Kind) String() string {
	switch k {
	case I8:
		return "i8"
	case U8:
		return "u8"
	case I16:
		return "i16"
	case U16:
		return "u16"
	case I32:
		return "i32"
	case U32:
		return "u32"
	case F32:
		return "f32"
	case F64:
		return "f64"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// size returns the on-wire size of a scalar kind, or 0 if unknown.
func (k Kind) size() int {
	switch k {
	case I8, U8:
		return 1
	case I16, U16:
		return 2
	case I32, U32, F32:
		return 4
	case F64:
		return 8
	default:
		return 0
	}
}

// Type is the tagged union of field shapes a Schema field may take.
// It is implemented by ScalarType, ArrayType, UTF8Type, RGBA8Type and
// NestedType. It is a closed set by design — see layout/compile.go.
type Type interface {
	isFieldType()
}

// ScalarType is a single scalar numeric value.
type ScalarType struct{ Kind Kind }

// ArrayType is a fixed-length numeric array [elem_type, count].
type ArrayType struct {
	Elem  Kind
	Count int
}

// UTF8Type is a fixed-length, zero-padded UTF-8 string field.
// ByteCapacity is a byte budget, not a character count.
type UTF8Type struct{ ByteCapacity int }

// RGBA8Type is a fixed-length RGBA8 pixel buffer: exactly 4*PixelCount
// bytes, element alignment 1.
type RGBA8Type struct{ PixelCount int }

// NestedType recursively lays out another Schema.
type NestedType struct{ Schema Schema }

func (ScalarType) isFieldType() {}
func (ArrayType) isFieldType()  {}
func (UTF8Type) isFieldType()   {}
func (RGBA8Type) isFieldType()  {}
func (NestedType) isFieldType() {}

// FieldDecl is one named field in a Schema, in declaration order.
type FieldDecl struct {
	Name string
	Type Type
}

// Schema is an ordered mapping from field name to field kind. Field
// order is significant: it is the order fields are laid out in memory.
type Schema []FieldDecl

// Field is a convenience constructor for a scalar FieldDecl.
func Field(name string, kind Kind) FieldDecl {
	return FieldDecl{Name: name, Type: ScalarType{Kind: kind}}
}

// ArrayField is a convenience constructor for a numeric-array FieldDecl.
func ArrayField(name string, elem Kind, count int) FieldDecl {
	return FieldDecl{Name: name, Type: ArrayType{Elem: elem, Count: count}}
}

// UTF8Field is a convenience constructor for a UTF-8 string FieldDecl.
func UTF8Field(name string, byteCapacity int) FieldDecl {
	return FieldDecl{Name: name, Type: UTF8Type{ByteCapacity: byteCapacity}}
}

// RGBA8Field is a convenience constructor for an RGBA8 pixel-buffer FieldDecl.
func RGBA8Field(name string, pixelCount int) FieldDecl {
	return FieldDecl{Name: name, Type: RGBA8Type{PixelCount: pixelCount}}
}

// NestedField is a convenience constructor for a nested-schema FieldDecl.
func NestedField(name string, schema Schema) FieldDecl {
	return FieldDecl{Name: name, Type: NestedType{Schema: schema}}
}
