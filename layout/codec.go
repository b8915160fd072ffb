package layout

import (
	"encoding/binary"
	"fmt"
	"math"
	"unicode/utf8"
	"unsafe"
)

// Values is a typed field-name -> value view produced by ReadSnapshot, or
// accepted (partially) by WriteFields. Scalars decode to Go's native
// numeric types (int8, uint8, ..., float64); array fields decode to a
// slice aliasing the buffer directly (no copy); UTF8 fields decode to a
// string; nested fields decode to a nested Values.
type Values map[string]any

// ReadSnapshot decodes every field in layout out of buffer starting at
// base, per the field kinds declared in the schema that produced layout.
// Numeric-array fields (including rgba8) alias buffer directly: mutating
// the returned slice mutates the underlying record. This is only valid
// on a little-endian host, the same assumption of direct native struct
// access over shared memory that a seqlock-style ring buffer relies on
// when it never byte-swaps.
func ReadSnapshot(l *Layout, buffer []byte, base int) (Values, error) {
	out := make(Values, len(l.Fields))
	for i := range l.Fields {
		fl := &l.Fields[i]
		v, err := readField(fl, buffer, base+fl.Offset)
		if err != nil {
			return nil, err
		}
		out[fl.Name] = v
	}
	return out, nil
}

func readField(fl *FieldLayout, buffer []byte, off int) (any, error) {
	switch t := fl.Type.(type) {
	case ScalarType:
		return getScalar(buffer[off:off+fl.Size], t.Kind), nil

	case ArrayType:
		return aliasArray(buffer, off, t.Elem, t.Count), nil

	case UTF8Type:
		return decodeUTF8(buffer[off : off+fl.Size]), nil

	case RGBA8Type:
		return buffer[off : off+fl.Size : off+fl.Size], nil

	case NestedType:
		return ReadSnapshot(fl.Nested, buffer, off)

	default:
		return nil, fmt.Errorf("%w: unrecognized field type %T", ErrConfig, fl.Type)
	}
}

// WriteFields writes only the keys present in partial into buffer at
// base, per layout. The buffer is validated in full before anything is
// mutated: on any error, no bytes in buffer are changed.
func WriteFields(l *Layout, buffer []byte, base int, partial Values) error {
	type plannedWrite struct {
		fl  *FieldLayout
		val any
	}
	planned := make([]plannedWrite, 0, len(partial))

	for name, val := range partial {
		fl, ok := l.Field(name)
		if !ok {
			return fmt.Errorf("%w: unknown field %q", ErrSchemaType, name)
		}
		if err := validateField(fl, val); err != nil {
			return err
		}
		planned = append(planned, plannedWrite{fl: fl, val: val})
	}

	for _, pw := range planned {
		if err := writeField(pw.fl, buffer, base+pw.fl.Offset, pw.val); err != nil {
			return err
		}
	}
	return nil
}

// validateField checks val is well-formed for fl without mutating buffer.
func validateField(fl *FieldLayout, val any) error {
	switch t := fl.Type.(type) {
	case ScalarType:
		if !scalarHasKind(val, t.Kind) {
			return fmt.Errorf("%w: field %q expects scalar %v, got %T", ErrSchemaType, fl.Name, t.Kind, val)
		}
		return nil

	case ArrayType:
		n, ok := arrayLen(val, t.Elem)
		if !ok {
			return fmt.Errorf("%w: field %q expects []%v, got %T", ErrSchemaType, fl.Name, t.Elem, val)
		}
		if n != t.Count {
			return fmt.Errorf("%w: field %q length mismatch: expected %d elements, got %d", ErrSchemaType, fl.Name, t.Count, n)
		}
		return nil

	case UTF8Type:
		s, ok := val.(string)
		if !ok {
			return fmt.Errorf("%w: field %q expects string, got %T", ErrSchemaType, fl.Name, val)
		}
		if len(s) > t.ByteCapacity {
			return fmt.Errorf("%w: field %q string is %d UTF-8 bytes, capacity is %d", ErrSchemaType, fl.Name, len(s), t.ByteCapacity)
		}
		return nil

	case RGBA8Type:
		b, ok := val.([]byte)
		if !ok {
			return fmt.Errorf("%w: field %q expects []byte, got %T", ErrSchemaType, fl.Name, val)
		}
		if len(b) != 4*t.PixelCount {
			return fmt.Errorf("%w: field %q length mismatch: expected %d bytes, got %d", ErrSchemaType, fl.Name, 4*t.PixelCount, len(b))
		}
		return nil

	case NestedType:
		nested, ok := val.(Values)
		if !ok {
			if m, mok := val.(map[string]any); mok {
				nested = Values(m)
			} else {
				return fmt.Errorf("%w: field %q expects a nested object, got %T", ErrSchemaType, fl.Name, val)
			}
		}
		for name, v := range nested {
			nfl, ok := fl.Nested.Field(name)
			if !ok {
				return fmt.Errorf("%w: unknown nested field %q.%q", ErrSchemaType, fl.Name, name)
			}
			if err := validateField(nfl, v); err != nil {
				return err
			}
		}
		return nil

	default:
		return fmt.Errorf("%w: unrecognized field type %T", ErrConfig, fl.Type)
	}
}

func writeField(fl *FieldLayout, buffer []byte, off int, val any) error {
	switch t := fl.Type.(type) {
	case ScalarType:
		putScalar(buffer[off:off+fl.Size], t.Kind, val)
		return nil

	case ArrayType:
		writeArray(buffer, off, t.Elem, val)
		return nil

	case UTF8Type:
		dst := buffer[off : off+fl.Size]
		for i := range dst {
			dst[i] = 0
		}
		copy(dst, val.(string))
		return nil

	case RGBA8Type:
		copy(buffer[off:off+fl.Size], val.([]byte))
		return nil

	case NestedType:
		var nested Values
		switch v := val.(type) {
		case Values:
			nested = v
		case map[string]any:
			nested = Values(v)
		}
		return WriteFields(fl.Nested, buffer, off, nested)

	default:
		return fmt.Errorf("%w: unrecognized field type %T", ErrConfig, fl.Type)
	}
}

// --- scalar codec: encoding/binary, always little-endian, host-order independent ---

func getScalar(b []byte, k Kind) any {
	switch k {
	case I8:
		return int8(b[0])
	case U8:
		return b[0]
	case I16:
		return int16(binary.LittleEndian.Uint16(b))
	case U16:
		return binary.LittleEndian.Uint16(b)
	case I32:
		return int32(binary.LittleEndian.Uint32(b))
	case U32:
		return binary.LittleEndian.Uint32(b)
	case F32:
		return math.Float32frombits(binary.LittleEndian.Uint32(b))
	case F64:
		return math.Float64frombits(binary.LittleEndian.Uint64(b))
	default:
		return nil
	}
}

func putScalar(b []byte, k Kind, val any) {
	switch k {
	case I8:
		b[0] = byte(val.(int8))
	case U8:
		b[0] = val.(uint8)
	case I16:
		binary.LittleEndian.PutUint16(b, uint16(val.(int16)))
	case U16:
		binary.LittleEndian.PutUint16(b, val.(uint16))
	case I32:
		binary.LittleEndian.PutUint32(b, uint32(val.(int32)))
	case U32:
		binary.LittleEndian.PutUint32(b, val.(uint32))
	case F32:
		binary.LittleEndian.PutUint32(b, math.Float32bits(val.(float32)))
	case F64:
		binary.LittleEndian.PutUint64(b, math.Float64bits(val.(float64)))
	}
}

func scalarHasKind(val any, k Kind) bool {
	switch k {
	case I8:
		_, ok := val.(int8)
		return ok
	case U8:
		_, ok := val.(uint8)
		return ok
	case I16:
		_, ok := val.(int16)
		return ok
	case U16:
		_, ok := val.(uint16)
		return ok
	case I32:
		_, ok := val.(int32)
		return ok
	case U32:
		_, ok := val.(uint32)
		return ok
	case F32:
		_, ok := val.(float32)
		return ok
	case F64:
		_, ok := val.(float64)
		return ok
	default:
		return false
	}
}

// --- numeric arrays: zero-copy alias over the buffer, bulk-copy on write ---

func aliasArray(buffer []byte, off int, elem Kind, count int) any {
	base := unsafe.Pointer(&buffer[off])
	switch elem {
	case I8:
		return unsafe.Slice((*int8)(base), count)
	case U8:
		return unsafe.Slice((*uint8)(base), count)
	case I16:
		return unsafe.Slice((*int16)(base), count)
	case U16:
		return unsafe.Slice((*uint16)(base), count)
	case I32:
		return unsafe.Slice((*int32)(base), count)
	case U32:
		return unsafe.Slice((*uint32)(base), count)
	case F32:
		return unsafe.Slice((*float32)(base), count)
	case F64:
		return unsafe.Slice((*float64)(base), count)
	default:
		return nil
	}
}

func arrayLen(val any, elem Kind) (int, bool) {
	switch elem {
	case I8:
		v, ok := val.([]int8)
		return len(v), ok
	case U8:
		v, ok := val.([]uint8)
		return len(v), ok
	case I16:
		v, ok := val.([]int16)
		return len(v), ok
	case U16:
		v, ok := val.([]uint16)
		return len(v), ok
	case I32:
		v, ok := val.([]int32)
		return len(v), ok
	case U32:
		v, ok := val.([]uint32)
		return len(v), ok
	case F32:
		v, ok := val.([]float32)
		return len(v), ok
	case F64:
		v, ok := val.([]float64)
		return len(v), ok
	default:
		return 0, false
	}
}

func writeArray(buffer []byte, off int, elem Kind, val any) {
	switch elem {
	case I8:
		copy(unsafe.Slice((*int8)(unsafe.Pointer(&buffer[off])), len(val.([]int8))), val.([]int8))
	case U8:
		copy(unsafe.Slice((*uint8)(unsafe.Pointer(&buffer[off])), len(val.([]uint8))), val.([]uint8))
	case I16:
		copy(unsafe.Slice((*int16)(unsafe.Pointer(&buffer[off])), len(val.([]int16))), val.([]int16))
	case U16:
		copy(unsafe.Slice((*uint16)(unsafe.Pointer(&buffer[off])), len(val.([]uint16))), val.([]uint16))
	case I32:
		copy(unsafe.Slice((*int32)(unsafe.Pointer(&buffer[off])), len(val.([]int32))), val.([]int32))
	case U32:
		copy(unsafe.Slice((*uint32)(unsafe.Pointer(&buffer[off])), len(val.([]uint32))), val.([]uint32))
	case F32:
		copy(unsafe.Slice((*float32)(unsafe.Pointer(&buffer[off])), len(val.([]float32))), val.([]float32))
	case F64:
		copy(unsafe.Slice((*float64)(unsafe.Pointer(&buffer[off])), len(val.([]float64))), val.([]float64))
	}
}

// decodeUTF8 reads a NUL-padded UTF-8 string up to the first NUL byte,
// or the full capacity if there is none.
func decodeUTF8(b []byte) string {
	n := len(b)
	for i, c := range b {
		if c == 0 {
			n = i
			break
		}
	}
	s := string(b[:n])
	if !utf8.ValidString(s) {
		// Still return best-effort decode; validation happens on write,
		// not on read of a buffer that could have been written by a
		// misbehaving peer on another thread.
		return s
	}
	return s
}
