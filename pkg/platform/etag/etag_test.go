package etag

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	stamps := []Stamp{
		NewStamp(),
		{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x07, 0xd1},
		{0xff},
	}
	for _, stamp := range stamps {
		decoded, err := Decode(Encode(stamp))
		require.NoError(t, err)
		assert.Equal(t, stamp, decoded)
	}
}

func TestDecode(t *testing.T) {
	t.Run("trims one pair of quotes", func(t *testing.T) {
		stamp := NewStamp()
		decoded, err := Decode(Quote(stamp.Token()))
		require.NoError(t, err)
		assert.True(t, stamp.Equal(decoded))
	})

	t.Run("accepts bare token", func(t *testing.T) {
		decoded, err := Decode("AAAAAAAAB9E=")
		require.NoError(t, err)
		assert.Equal(t, Stamp{0, 0, 0, 0, 0, 0, 0x07, 0xd1}, decoded)
	})

	t.Run("rejects invalid base64", func(t *testing.T) {
		_, err := Decode(`"not base64!"`)
		assert.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("rejects empty token", func(t *testing.T) {
		_, err := Decode(`""`)
		assert.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("rejects weak validator", func(t *testing.T) {
		_, err := Decode(`W/"AAAAAAAAB9E="`)
		assert.ErrorIs(t, err, ErrMalformed)
	})
}

func TestStampEqual(t *testing.T) {
	a := NewStamp()
	b := NewStamp()
	assert.False(t, a.Equal(b))
	assert.True(t, a.Equal(append(Stamp{}, a...)))
	assert.False(t, Stamp(nil).Equal(nil), "empty stamps never match")
}

func TestStampJSON(t *testing.T) {
	stamp := Stamp{0x01, 0x02, 0x03}
	data, err := json.Marshal(struct {
		ETag Stamp `json:"etag"`
	}{stamp})
	require.NoError(t, err)
	assert.JSONEq(t, `{"etag":"AQID"}`, string(data))

	var out struct {
		ETag Stamp `json:"etag"`
	}
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, stamp, out.ETag)
}

func TestStampScanCopies(t *testing.T) {
	buf := []byte{1, 2, 3}
	var s Stamp
	require.NoError(t, s.Scan(buf))
	buf[0] = 9
	assert.Equal(t, Stamp{1, 2, 3}, s)

	require.NoError(t, s.Scan(nil))
	assert.Nil(t, s)
	assert.Error(t, s.Scan(42))

	v, err := Stamp{4}.Value()
	require.NoError(t, err)
	assert.Equal(t, []byte{4}, v)
}
