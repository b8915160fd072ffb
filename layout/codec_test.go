package layout_test

import (
	"strings"
	"testing"

	"github.com/KargJonas/sabus/layout"
	"github.com/stretchr/testify/require"
)

func counterSchema() layout.Schema {
	return layout.Schema{
		layout.Field("flag", layout.U8),
		layout.UTF8Field("label", 10),
		layout.ArrayField("vector", layout.F32, 3),
		layout.NestedField("nested", layout.Schema{
			layout.Field("count", layout.U16),
			layout.Field("energy", layout.F64),
		}),
	}
}

// Property 5 from spec.md §8: round-trip schema.
func TestWriteFieldsReadSnapshotRoundTrip(t *testing.T) {
	l, err := layout.Compile(counterSchema())
	require.NoError(t, err)

	buf := make([]byte, l.ByteLength)
	in := layout.Values{
		"flag":   uint8(1),
		"label":  "héllo",
		"vector": []float32{1.5, -2.25, 0},
		"nested": layout.Values{"count": uint16(7), "energy": 3.14},
	}
	require.NoError(t, layout.WriteFields(l, buf, 0, in))

	out, err := layout.ReadSnapshot(l, buf, 0)
	require.NoError(t, err)

	require.Equal(t, uint8(1), out["flag"])
	require.Equal(t, "héllo", out["label"])
	require.Equal(t, []float32{1.5, -2.25, 0}, out["vector"])

	nested := out["nested"].(layout.Values)
	require.Equal(t, uint16(7), nested["count"])
	require.Equal(t, 3.14, nested["energy"])
}

// Property 6 from spec.md §8: UTF-8 byte budget.
func TestUTF8ByteBudget(t *testing.T) {
	l, err := layout.Compile(layout.Schema{layout.UTF8Field("s", 3)})
	require.NoError(t, err)
	buf := make([]byte, l.ByteLength)

	require.NoError(t, layout.WriteFields(l, buf, 0, layout.Values{"s": "abc"}))
	out, err := layout.ReadSnapshot(l, buf, 0)
	require.NoError(t, err)
	require.Equal(t, "abc", out["s"])

	err = layout.WriteFields(l, buf, 0, layout.Values{"s": "abcd"})
	require.Error(t, err)
	require.ErrorIs(t, err, layout.ErrSchemaType)

	// Multi-byte case: "ä" is 2 bytes in UTF-8, fits in a 3-byte field.
	require.NoError(t, layout.WriteFields(l, buf, 0, layout.Values{"s": "äx"}))
	out, err = layout.ReadSnapshot(l, buf, 0)
	require.NoError(t, err)
	require.Equal(t, "äx", out["s"])
}

// Buffer must not be mutated when WriteFields fails partway through a
// multi-field call.
func TestWriteFieldsFailsClosed(t *testing.T) {
	l, err := layout.Compile(layout.Schema{
		layout.Field("a", layout.U32),
		layout.Field("b", layout.U32),
	})
	require.NoError(t, err)

	buf := make([]byte, l.ByteLength)
	require.NoError(t, layout.WriteFields(l, buf, 0, layout.Values{"a": uint32(1), "b": uint32(2)}))
	before := append([]byte(nil), buf...)

	err = layout.WriteFields(l, buf, 0, layout.Values{"a": uint32(99), "b": "not a number"})
	require.Error(t, err)
	require.Equal(t, before, buf, "buffer must be unchanged after a failed write_fields")
}

// S4 from spec.md §8: RGBA8 length mismatch.
func TestRGBA8LengthMismatch(t *testing.T) {
	l, err := layout.Compile(layout.Schema{
		layout.Field("width", layout.U32),
		layout.Field("height", layout.U32),
		layout.RGBA8Field("feed", 6),
	})
	require.NoError(t, err)
	buf := make([]byte, l.ByteLength)

	ok := make([]byte, 24)
	require.NoError(t, layout.WriteFields(l, buf, 0, layout.Values{"feed": ok}))

	bad := make([]byte, 4)
	err = layout.WriteFields(l, buf, 0, layout.Values{"feed": bad})
	require.Error(t, err)
	require.Contains(t, err.Error(), "length mismatch")
}

// S5 from spec.md §8: partial write leaves untouched fields intact.
func TestPartialWritePreservesOtherFields(t *testing.T) {
	l, err := layout.Compile(counterSchema())
	require.NoError(t, err)
	buf := make([]byte, l.ByteLength)

	require.NoError(t, layout.WriteFields(l, buf, 0, layout.Values{
		"flag":   uint8(1),
		"label":  "first",
		"vector": []float32{1, 2, 3},
		"nested": layout.Values{"count": uint16(1), "energy": 1.0},
	}))

	require.NoError(t, layout.WriteFields(l, buf, 0, layout.Values{
		"nested": layout.Values{"count": uint16(11)},
	}))

	out, err := layout.ReadSnapshot(l, buf, 0)
	require.NoError(t, err)
	require.Equal(t, uint8(1), out["flag"])
	require.Equal(t, "first", out["label"])
	require.Equal(t, []float32{1, 2, 3}, out["vector"])
	nested := out["nested"].(layout.Values)
	require.Equal(t, uint16(11), nested["count"])
	require.Equal(t, 1.0, nested["energy"])
}

func TestArrayAliasesBufferNoCopy(t *testing.T) {
	l, err := layout.Compile(layout.Schema{layout.ArrayField("v", layout.I32, 4)})
	require.NoError(t, err)
	buf := make([]byte, l.ByteLength)
	require.NoError(t, layout.WriteFields(l, buf, 0, layout.Values{"v": []int32{1, 2, 3, 4}}))

	out, err := layout.ReadSnapshot(l, buf, 0)
	require.NoError(t, err)
	v := out["v"].([]int32)
	v[0] = 99 // mutating the returned slice must mutate buf directly

	out2, err := layout.ReadSnapshot(l, buf, 0)
	require.NoError(t, err)
	require.Equal(t, int32(99), out2["v"].([]int32)[0])
}

func TestUnknownFieldRejected(t *testing.T) {
	l, err := layout.Compile(layout.Schema{layout.Field("a", layout.U8)})
	require.NoError(t, err)
	buf := make([]byte, l.ByteLength)
	err = layout.WriteFields(l, buf, 0, layout.Values{"nope": uint8(1)})
	require.Error(t, err)
	require.ErrorIs(t, err, layout.ErrSchemaType)
	require.True(t, strings.Contains(err.Error(), "nope"))
}
