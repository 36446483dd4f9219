package geom

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePointWKB(order binary.ByteOrder, srid uint32, pt Point) []byte {
	var buf bytes.Buffer
	if order == binary.LittleEndian {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
	typ := uint32(wkbPoint)
	if srid != 0 {
		typ |= ewkbSRIDFlag
	}
	binary.Write(&buf, order, typ)
	if srid != 0 {
		binary.Write(&buf, order, srid)
	}
	binary.Write(&buf, order, pt.X)
	binary.Write(&buf, order, pt.Y)
	return buf.Bytes()
}

func encodePolygonWKB(order binary.ByteOrder, srid uint32, rings ...[]Point) []byte {
	var buf bytes.Buffer
	if order == binary.LittleEndian {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
	typ := uint32(wkbPolygon)
	if srid != 0 {
		typ |= ewkbSRIDFlag
	}
	binary.Write(&buf, order, typ)
	if srid != 0 {
		binary.Write(&buf, order, srid)
	}
	binary.Write(&buf, order, uint32(len(rings)))
	for _, ring := range rings {
		binary.Write(&buf, order, uint32(len(ring)))
		for _, pt := range ring {
			binary.Write(&buf, order, pt.X)
			binary.Write(&buf, order, pt.Y)
		}
	}
	return buf.Bytes()
}

func TestParsePointWKB(t *testing.T) {
	want := Point{X: -111.761, Y: 34.8697}

	for name, order := range map[string]binary.ByteOrder{
		"little endian": binary.LittleEndian,
		"big endian":    binary.BigEndian,
	} {
		pt, err := ParsePointWKB(encodePointWKB(order, 0, want))
		require.NoError(t, err, name)
		assert.Equal(t, want, pt, name)
	}
}

func TestParsePointEWKBSkipsSRID(t *testing.T) {
	want := Point{X: 2.5, Y: -3.75}
	pt, err := ParsePointWKB(encodePointWKB(binary.LittleEndian, 4326, want))
	require.NoError(t, err)
	assert.Equal(t, want, pt)
}

func TestParsePolygonWKB(t *testing.T) {
	ring := []Point{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}
	poly, err := ParsePolygonWKB(encodePolygonWKB(binary.LittleEndian, 4326, ring))
	require.NoError(t, err)
	assert.Equal(t, ring, poly.Ring)
	assert.InDelta(t, 1.0, poly.Area(), 1e-12)
}

func TestParseWKBErrors(t *testing.T) {
	ring := []Point{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}
	hole := []Point{{0.25, 0.25}, {0.75, 0.25}, {0.75, 0.75}, {0.25, 0.75}, {0.25, 0.25}}

	cases := map[string][]byte{
		"empty":             nil,
		"truncated header":  {1, 1, 0},
		"bad order marker":  {2, 1, 0, 0, 0},
		"point as polygon":  encodePointWKB(binary.LittleEndian, 0, Point{}),
		"truncated coords":  encodePointWKB(binary.LittleEndian, 0, Point{})[:10],
		"interior ring":     encodePolygonWKB(binary.LittleEndian, 0, ring, hole),
		"unclosed ring":     encodePolygonWKB(binary.LittleEndian, 0, ring[:4]),
	}
	for name, buf := range cases {
		_, err := ParsePolygonWKB(buf)
		require.Error(t, err, name)
	}

	// Z geometry is rejected outright.
	zPoint := encodePointWKB(binary.LittleEndian, 0, Point{})
	zPoint[4] |= 0x80 // set the high type byte (little endian)
	_, err := ParsePointWKB(zPoint)
	assert.Error(t, err)
}

func TestDecodePoint(t *testing.T) {
	want := Point{X: -111.761, Y: 34.8697}

	// WKT text.
	pt, err := DecodePoint("POINT(-111.761 34.8697)")
	require.NoError(t, err)
	assert.Equal(t, want, pt)

	// Hex EWKB, as a PostGIS text column delivers it.
	hexStr := hex.EncodeToString(encodePointWKB(binary.LittleEndian, 4326, want))
	pt, err = DecodePoint(hexStr)
	require.NoError(t, err)
	assert.Equal(t, want, pt)

	// Same hex arriving as []byte.
	pt, err = DecodePoint([]byte(hexStr))
	require.NoError(t, err)
	assert.Equal(t, want, pt)

	// Raw binary WKB, both byte orders.
	pt, err = DecodePoint(encodePointWKB(binary.LittleEndian, 4326, want))
	require.NoError(t, err)
	assert.Equal(t, want, pt)

	pt, err = DecodePoint(encodePointWKB(binary.BigEndian, 0, want))
	require.NoError(t, err)
	assert.Equal(t, want, pt)

	_, err = DecodePoint(nil)
	assert.Error(t, err)
	_, err = DecodePoint(42)
	assert.Error(t, err)
}

func TestDecodePolygon(t *testing.T) {
	ring := []Point{{0, 0}, {2, 0}, {2, 2}, {0, 2}, {0, 0}}

	poly, err := DecodePolygon("POLYGON((0 0, 2 0, 2 2, 0 2, 0 0))")
	require.NoError(t, err)
	assert.Equal(t, ring, poly.Ring)

	hexStr := hex.EncodeToString(encodePolygonWKB(binary.LittleEndian, 4326, ring))
	poly, err = DecodePolygon(hexStr)
	require.NoError(t, err)
	assert.Equal(t, ring, poly.Ring)

	// Raw binary WKB.
	poly, err = DecodePolygon(encodePolygonWKB(binary.LittleEndian, 0, ring))
	require.NoError(t, err)
	assert.Equal(t, ring, poly.Ring)
}
