package layout

import "fmt"

// FieldLayout is one field's resolved position within a Layout.
type FieldLayout struct {
	Name   string
	Type   Type
	Offset int
	Align  int
	Size   int
	// Nested is non-nil iff Type is a NestedType; it is that nested
	// schema's own compiled Layout, reused for recursive codec dispatch.
	Nested *Layout
}

// Layout is the fixed byte layout derived from a Schema at registration
// time: every field has an offset, fields are naturally aligned to their
// element size, and ByteLength is the offset after the last field with
// no trailing padding.
type Layout struct {
	Fields     []FieldLayout
	byName     map[string]*FieldLayout
	ByteLength int
	Align      int
}

// Field looks up a field's layout by name.
func (l *Layout) Field(name string) (*FieldLayout, bool) {
	fl, ok := l.byName[name]
	return fl, ok
}

func alignUp(offset, align int) int {
	if align <= 1 {
		return offset
	}
	rem := offset % align
	if rem == 0 {
		return offset
	}
	return offset + (align - rem)
}

// Compile derives a Layout from a Schema. Field order in the returned
// Layout matches declaration order. Fails with ErrConfig on a malformed
// schema; the schema is validated before any Layout is constructed.
func Compile(schema Schema) (*Layout, error) {
	if len(schema) == 0 {
		return nil, fmt.Errorf("%w: schema has no fields", ErrConfig)
	}

	fields := make([]FieldLayout, 0, len(schema))
	byName := make(map[string]*FieldLayout, len(schema))
	offset := 0
	maxAlign := 1

	for _, decl := range schema {
		if decl.Name == "" {
			return nil, fmt.Errorf("%w: field has empty name", ErrConfig)
		}
		if _, dup := byName[decl.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate field %q", ErrConfig, decl.Name)
		}

		align, size, nested, err := sizeAndAlign(decl.Type)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", decl.Name, err)
		}

		offset = alignUp(offset, align)
		fields = append(fields, FieldLayout{
			Name:   decl.Name,
			Type:   decl.Type,
			Offset: offset,
			Align:  align,
			Size:   size,
			Nested: nested,
		})
		byName[decl.Name] = &fields[len(fields)-1]
		offset += size
		if align > maxAlign {
			maxAlign = align
		}
	}

	return &Layout{Fields: fields, byName: byName, ByteLength: offset, Align: maxAlign}, nil
}

// sizeAndAlign resolves a field Type to its (align, size) pair, compiling
// nested schemas recursively.
func sizeAndAlign(t Type) (align, size int, nested *Layout, err error) {
	switch v := t.(type) {
	case ScalarType:
		sz := v.Kind.size()
		if sz == 0 {
			return 0, 0, nil, fmt.Errorf("%w: unknown scalar kind %v", ErrConfig, v.Kind)
		}
		return sz, sz, nil, nil

	case ArrayType:
		if v.Count < 1 {
			return 0, 0, nil, fmt.Errorf("%w: array count must be >= 1, got %d", ErrConfig, v.Count)
		}
		sz := v.Elem.size()
		if sz == 0 {
			return 0, 0, nil, fmt.Errorf("%w: unknown array element kind %v", ErrConfig, v.Elem)
		}
		return sz, sz * v.Count, nil, nil

	case UTF8Type:
		if v.ByteCapacity < 1 {
			return 0, 0, nil, fmt.Errorf("%w: utf8 byte_capacity must be >= 1, got %d", ErrConfig, v.ByteCapacity)
		}
		return 1, v.ByteCapacity, nil, nil

	case RGBA8Type:
		if v.PixelCount < 1 {
			return 0, 0, nil, fmt.Errorf("%w: rgba8 pixel_count must be >= 1, got %d", ErrConfig, v.PixelCount)
		}
		return 1, 4 * v.PixelCount, nil, nil

	case NestedType:
		nestedLayout, err := Compile(v.Schema)
		if err != nil {
			return 0, 0, nil, err
		}
		return nestedLayout.Align, nestedLayout.ByteLength, nestedLayout, nil

	default:
		return 0, 0, nil, fmt.Errorf("%w: unrecognized field type %T", ErrConfig, t)
	}
}
