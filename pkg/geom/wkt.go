package geom

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseError reports a malformed input geometry. Dataset loaders recover from
// it per row: the row is skipped and counted, the query continues.
type ParseError struct {
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	in := e.Input
	if len(in) > 64 {
		in = in[:64] + "..."
	}
	return fmt.Sprintf("geometry parse error: %s (input %q)", e.Reason, in)
}

func parseErr(input, format string, args ...any) error {
	return &ParseError{Input: input, Reason: fmt.Sprintf(format, args...)}
}

// WKT renders the point as well-known text.
func (p Point) WKT() string {
	return "POINT(" + fmtCoord(p.X) + " " + fmtCoord(p.Y) + ")"
}

// WKT renders the polygon as well-known text.
func (p Polygon) WKT() string {
	var sb strings.Builder
	sb.WriteString("POLYGON((")
	for i, v := range p.Ring {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(fmtCoord(v.X))
		sb.WriteByte(' ')
		sb.WriteString(fmtCoord(v.Y))
	}
	sb.WriteString("))")
	return sb.String()
}

func fmtCoord(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// ParsePoint parses a WKT POINT.
func ParsePoint(s string) (Point, error) {
	body, err := wktBody(s, "POINT")
	if err != nil {
		return Point{}, err
	}
	pt, err := parseCoordPair(s, body)
	if err != nil {
		return Point{}, err
	}
	return pt, nil
}

// ParsePolygon parses a WKT POLYGON. Only the exterior ring is modeled;
// interior rings are rejected.
func ParsePolygon(s string) (Polygon, error) {
	body, err := wktBody(s, "POLYGON")
	if err != nil {
		return Polygon{}, err
	}
	rings := splitRings(body)
	if len(rings) == 0 {
		return Polygon{}, parseErr(s, "polygon has no rings")
	}
	if len(rings) > 1 {
		return Polygon{}, parseErr(s, "polygons with interior rings are not supported")
	}
	ring, err := parseRing(s, rings[0])
	if err != nil {
		return Polygon{}, err
	}
	poly, err := NewPolygon(ring)
	if err != nil {
		return Polygon{}, parseErr(s, "%v", err)
	}
	return poly, nil
}

// MustParsePolygon is for compiled-in query constants only.
func MustParsePolygon(s string) Polygon {
	p, err := ParsePolygon(s)
	if err != nil {
		panic(err)
	}
	return p
}

// wktBody strips "TAG ( ... )" and returns the inner text.
func wktBody(raw, tag string) (string, error) {
	s := strings.TrimSpace(raw)
	if len(s) < len(tag) || !strings.EqualFold(s[:len(tag)], tag) {
		return "", parseErr(raw, "expected %s geometry", tag)
	}
	s = strings.TrimSpace(s[len(tag):])
	if !strings.HasPrefix(s, "(") || !strings.HasSuffix(s, ")") {
		return "", parseErr(raw, "missing parentheses after %s", tag)
	}
	return s[1 : len(s)-1], nil
}

// splitRings splits "(r1), (r2)" at the top level of a polygon body.
func splitRings(body string) []string {
	var rings []string
	depth := 0
	start := -1
	for i, c := range body {
		switch c {
		case '(':
			if depth == 0 {
				start = i + 1
			}
			depth++
		case ')':
			depth--
			if depth == 0 && start >= 0 {
				rings = append(rings, body[start:i])
				start = -1
			}
		}
	}
	return rings
}

func parseRing(raw, body string) ([]Point, error) {
	parts := strings.Split(body, ",")
	ring := make([]Point, 0, len(parts))
	for _, part := range parts {
		pt, err := parseCoordPair(raw, part)
		if err != nil {
			return nil, err
		}
		ring = append(ring, pt)
	}
	return ring, nil
}

func parseCoordPair(raw, s string) (Point, error) {
	fields := strings.Fields(strings.TrimSpace(s))
	if len(fields) != 2 {
		return Point{}, parseErr(raw, "expected 'x y' coordinate pair, got %q", strings.TrimSpace(s))
	}
	x, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return Point{}, parseErr(raw, "bad x coordinate %q", fields[0])
	}
	y, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return Point{}, parseErr(raw, "bad y coordinate %q", fields[1])
	}
	return Point{X: x, Y: y}, nil
}
