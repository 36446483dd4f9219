package geom

import (
	"encoding/binary"
	"encoding/hex"
	"math"
)

// Well-known binary support. The store returns raw geometry columns as
// hex-encoded EWKB, upstream exports may carry plain WKB, and filters use
// WKT; the decoders below accept all of them.

const (
	wkbPoint   = 1
	wkbPolygon = 3

	ewkbSRIDFlag = 0x20000000
	ewkbZFlag    = 0x80000000
	ewkbMFlag    = 0x40000000
)

type wkbReader struct {
	buf   []byte
	pos   int
	order binary.ByteOrder
	raw   string
}

func (r *wkbReader) remaining() int { return len(r.buf) - r.pos }

func (r *wkbReader) readHeader() (uint32, error) {
	if r.remaining() < 5 {
		return 0, parseErr(r.raw, "wkb truncated before header")
	}
	switch r.buf[r.pos] {
	case 0:
		r.order = binary.BigEndian
	case 1:
		r.order = binary.LittleEndian
	default:
		return 0, parseErr(r.raw, "bad wkb byte order marker 0x%02x", r.buf[r.pos])
	}
	r.pos++
	typ := r.order.Uint32(r.buf[r.pos:])
	r.pos += 4
	if typ&(ewkbZFlag|ewkbMFlag) != 0 {
		return 0, parseErr(r.raw, "wkb with Z/M dimensions is not supported")
	}
	if typ&ewkbSRIDFlag != 0 {
		// EWKB: skip the SRID, the dataset uses a single reference.
		if r.remaining() < 4 {
			return 0, parseErr(r.raw, "ewkb truncated before srid")
		}
		r.pos += 4
		typ &^= ewkbSRIDFlag
	}
	return typ, nil
}

func (r *wkbReader) readUint32() (uint32, error) {
	if r.remaining() < 4 {
		return 0, parseErr(r.raw, "wkb truncated")
	}
	v := r.order.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *wkbReader) readPoint() (Point, error) {
	if r.remaining() < 16 {
		return Point{}, parseErr(r.raw, "wkb truncated in coordinates")
	}
	x := math.Float64frombits(r.order.Uint64(r.buf[r.pos:]))
	y := math.Float64frombits(r.order.Uint64(r.buf[r.pos+8:]))
	r.pos += 16
	return Point{X: x, Y: y}, nil
}

// ParsePointWKB decodes a WKB or EWKB point.
func ParsePointWKB(buf []byte) (Point, error) {
	r := &wkbReader{buf: buf, raw: hex.EncodeToString(buf)}
	typ, err := r.readHeader()
	if err != nil {
		return Point{}, err
	}
	if typ != wkbPoint {
		return Point{}, parseErr(r.raw, "expected wkb point, got type %d", typ)
	}
	return r.readPoint()
}

// ParsePolygonWKB decodes a WKB or EWKB polygon. Only a single exterior ring
// is modeled, as with the WKT parser.
func ParsePolygonWKB(buf []byte) (Polygon, error) {
	r := &wkbReader{buf: buf, raw: hex.EncodeToString(buf)}
	typ, err := r.readHeader()
	if err != nil {
		return Polygon{}, err
	}
	if typ != wkbPolygon {
		return Polygon{}, parseErr(r.raw, "expected wkb polygon, got type %d", typ)
	}
	numRings, err := r.readUint32()
	if err != nil {
		return Polygon{}, err
	}
	if numRings == 0 {
		return Polygon{}, parseErr(r.raw, "polygon has no rings")
	}
	if numRings > 1 {
		return Polygon{}, parseErr(r.raw, "polygons with interior rings are not supported")
	}
	numPoints, err := r.readUint32()
	if err != nil {
		return Polygon{}, err
	}
	if numPoints > uint32(r.remaining()/16) {
		return Polygon{}, parseErr(r.raw, "wkb ring length %d exceeds buffer", numPoints)
	}
	ring := make([]Point, 0, numPoints)
	for i := uint32(0); i < numPoints; i++ {
		pt, err := r.readPoint()
		if err != nil {
			return Polygon{}, err
		}
		ring = append(ring, pt)
	}
	poly, err := NewPolygon(ring)
	if err != nil {
		return Polygon{}, parseErr(r.raw, "%v", err)
	}
	return poly, nil
}

// DecodePoint parses a point from whatever encoding a store row carries:
// WKT, hex-encoded (E)WKB, or raw (E)WKB bytes.
func DecodePoint(v any) (Point, error) {
	s, buf, err := geometryInput(v)
	if err != nil {
		return Point{}, err
	}
	if buf != nil {
		return ParsePointWKB(buf)
	}
	return ParsePoint(s)
}

// DecodePolygon is the polygon counterpart of DecodePoint.
func DecodePolygon(v any) (Polygon, error) {
	s, buf, err := geometryInput(v)
	if err != nil {
		return Polygon{}, err
	}
	if buf != nil {
		return ParsePolygonWKB(buf)
	}
	return ParsePolygon(s)
}

// geometryInput normalizes a row value into either WKT text or WKB bytes.
func geometryInput(v any) (wkt string, wkb []byte, err error) {
	var s string
	switch t := v.(type) {
	case nil:
		return "", nil, parseErr("", "geometry value is null")
	case []byte:
		// Raw (E)WKB opens with a 0x00/0x01 byte-order marker, which never
		// starts WKT or hex text.
		if len(t) > 0 && t[0] <= 1 {
			return "", t, nil
		}
		s = string(t)
	case string:
		s = t
	default:
		return "", nil, parseErr("", "unsupported geometry value type %T", v)
	}
	if buf, ok := decodeHex(s); ok {
		return "", buf, nil
	}
	return s, nil, nil
}

// decodeHex detects hex-encoded WKB: even length, hex digits only, and a
// leading byte-order marker. WKT never matches.
func decodeHex(s string) ([]byte, bool) {
	if len(s) < 10 || len(s)%2 != 0 {
		return nil, false
	}
	if s[:2] != "00" && s[:2] != "01" {
		return nil, false
	}
	buf, err := hex.DecodeString(s)
	if err != nil {
		return nil, false
	}
	return buf, true
}
