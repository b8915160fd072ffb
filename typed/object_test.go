package typed_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/KargJonas/sabus/layout"
	"github.com/KargJonas/sabus/typed"
)

func vectorSchema() layout.Schema {
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

func TestTypedWriteReadRoundTrip(t *testing.T) {
	obj, err := typed.New("state", vectorSchema())
	require.NoError(t, err)

	err = obj.Write(context.Background(), layout.Values{
		"flag":   uint8(1),
		"label":  "hello",
		"vector": []float32{1, 2, 3},
		"nested": layout.Values{
			"count":  uint16(7),
			"energy": float64(2.5),
		},
	})
	require.NoError(t, err)

	rec, ok := obj.Read()
	require.True(t, ok)
	require.Equal(t, uint8(1), rec.Values["flag"])
	require.Equal(t, "hello", rec.Values["label"])
	require.Equal(t, []float32{1, 2, 3}, rec.Values["vector"])
	nested := rec.Values["nested"].(layout.Values)
	require.Equal(t, uint16(7), nested["count"])
	require.Equal(t, float64(2.5), nested["energy"])
}

// S5: write a full record, then a partial update to a nested field; the
// rest of the record is observed unchanged.
func TestTypedPartialWritePreservesOtherFields(t *testing.T) {
	obj, err := typed.New("partial", vectorSchema())
	require.NoError(t, err)

	require.NoError(t, obj.Write(context.Background(), layout.Values{
		"flag":   uint8(9),
		"label":  "first",
		"vector": []float32{4, 5, 6},
		"nested": layout.Values{"count": uint16(1), "energy": float64(1)},
	}))

	err = obj.RequestWrite(context.Background(), func(v *typed.WriteView) error {
		require.Equal(t, uint8(9), v.View["flag"])
		return v.Set(layout.Values{"nested": layout.Values{"count": uint16(11)}})
	})
	require.NoError(t, err)

	rec, ok := obj.Read()
	require.True(t, ok)
	require.Equal(t, uint8(9), rec.Values["flag"])
	require.Equal(t, "first", rec.Values["label"])
	require.Equal(t, []float32{4, 5, 6}, rec.Values["vector"])
	nested := rec.Values["nested"].(layout.Values)
	require.Equal(t, uint16(11), nested["count"])
	require.Equal(t, float64(1), nested["energy"])
}

func TestTypedReadBeforeFirstWriteIsNone(t *testing.T) {
	obj, err := typed.New("fresh", vectorSchema())
	require.NoError(t, err)

	_, ok := obj.Read()
	require.False(t, ok)
}

func TestTypedSubscribeFiresOnPublish(t *testing.T) {
	obj, err := typed.New("notify", vectorSchema())
	require.NoError(t, err)

	fired := make(chan struct{}, 1)
	unsubscribe := obj.Subscribe(func() {
		select {
		case fired <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	require.NoError(t, obj.Write(context.Background(), layout.Values{"flag": uint8(1)}))

	require.Eventually(t, func() bool {
		select {
		case <-fired:
			return true
		default:
			return false
		}
	}, time.Second, time.Millisecond)
}
