package annotation

import (
	"fmt"
	"strconv"
	"strings"
)

// Point is a position in display coordinates (physical mm from the top-left
// of the rendered slice). X runs along columns, Y along rows.
type Point struct {
	X, Y float64
}

// ParsePath reads an SVG path of the form "M x,y L x,y ... Z" as produced by a
// closed-path drawing tool. closed reports whether the path ends with Z.
func ParsePath(path string) (points []Point, closed bool, err error) {
	s := strings.TrimSpace(path)
	if s == "" {
		return nil, false, fmt.Errorf("empty path")
	}

	if strings.HasSuffix(s, "Z") || strings.HasSuffix(s, "z") {
		closed = true
		s = strings.TrimSpace(s[:len(s)-1])
	}

	if !strings.HasPrefix(s, "M") {
		return nil, closed, fmt.Errorf("path %q does not start with M", truncate(path))
	}
	s = s[1:]

	for i, seg := range strings.Split(s, "L") {
		seg = strings.TrimSpace(seg)
		parts := strings.Split(seg, ",")
		if len(parts) != 2 {
			return nil, closed, fmt.Errorf("path segment %d %q is not an x,y pair", i, seg)
		}

		x, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		if err != nil {
			return nil, closed, fmt.Errorf("path segment %d: %w", i, err)
		}
		y, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			return nil, closed, fmt.Errorf("path segment %d: %w", i, err)
		}

		points = append(points, Point{X: x, Y: y})
	}

	return points, closed, nil
}

// FormatPath is the inverse of ParsePath for a closed polygon.
func FormatPath(points []Point) string {
	var sb strings.Builder
	for i, p := range points {
		if i == 0 {
			sb.WriteString("M")
		} else {
			sb.WriteString("L")
		}
		sb.WriteString(strconv.FormatFloat(p.X, 'f', -1, 64))
		sb.WriteString(",")
		sb.WriteString(strconv.FormatFloat(p.Y, 'f', -1, 64))
	}
	sb.WriteString("Z")

	return sb.String()
}

func truncate(s string) string {
	if len(s) > 40 {
		return s[:40] + "..."
	}

	return s
}
