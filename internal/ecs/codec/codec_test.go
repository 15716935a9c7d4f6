package codec

import (
	"strconv"
	"testing"
	"testing/quick"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

type transform struct {
	Text     string    `json:"text"`
	Position [3]int32  `json:"position"`
	Scale    float64   `json:"scale"`
	Visible  bool      `json:"visible"`
	Tags     []string  `json:"tags,omitempty"`
	Children []int64   `json:"children,omitempty"`
	Weights  []float32 `json:"weights,omitempty"`
}

func TestJSONRoundTripProperty(t *testing.T) {
	c := JSON[transform]()
	roundTrip := func(in transform) bool {
		bz, err := c.Encode(in)
		if err != nil {
			return false
		}
		out, err := c.Decode(bz)
		if err != nil {
			return false
		}
		return assert.ObjectsAreEqual(normalize(in), normalize(out))
	}
	require.NoError(t, quick.Check(roundTrip, &quick.Config{MaxCount: 500}))
}

// normalize maps empty slices to nil since omitempty drops them on encode.
func normalize(m transform) transform {
	if len(m.Tags) == 0 {
		m.Tags = nil
	}
	if len(m.Children) == 0 {
		m.Children = nil
	}
	if len(m.Weights) == 0 {
		m.Weights = nil
	}
	return m
}

func TestJSONDecodeError(t *testing.T) {
	_, err := JSON[transform]().Decode([]byte("{not json"))
	assert.Error(t, err)
}

func TestProtoRoundTripProperty(t *testing.T) {
	c := Proto(func() *wrapperspb.StringValue { return &wrapperspb.StringValue{} })
	roundTrip := func(s string) bool {
		bz, err := c.Encode(wrapperspb.String(s))
		if err != nil {
			return false
		}
		out, err := c.Decode(bz)
		if err != nil {
			return false
		}
		return proto.Equal(wrapperspb.String(s), out)
	}
	require.NoError(t, quick.Check(roundTrip, nil))
}

func TestProtoDecodeError(t *testing.T) {
	c := Proto(func() *wrapperspb.Int64Value { return &wrapperspb.Int64Value{} })
	_, err := c.Decode([]byte{0xff, 0xff, 0xff})
	assert.Error(t, err)
}

func TestFuncs(t *testing.T) {
	c := Funcs(
		func(n int) ([]byte, error) { return []byte(strconv.Itoa(n)), nil },
		func(b []byte) (int, error) { return strconv.Atoi(string(b)) },
	)
	bz, err := c.Encode(42)
	require.NoError(t, err)
	n, err := c.Decode(bz)
	require.NoError(t, err)
	assert.Equal(t, 42, n)
}
