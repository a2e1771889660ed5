package geometry

import (
	"fmt"
	"regexp"
	"strings"
)

// ============================================================
// Path Parser
// ============================================================

var commandRe = regexp.MustCompile(`([MmLlHhVvCcSsQqTtAaZz])([^MmLlHhVvCcSsQqTtAaZz]*)`)

// ParsePath parses SVG path data into the list of points it visits.
// Curve control points are skipped; only segment end points are returned.
func ParsePath(d string) ([]Point, error) {
	d = strings.TrimSpace(d)
	if d == "" {
		return nil, fmt.Errorf("empty path")
	}

	matches := commandRe.FindAllStringSubmatch(d, -1)
	if len(matches) == 0 {
		return nil, fmt.Errorf("no path commands in %q", d)
	}

	var points []Point
	var current, start Point

	for _, match := range matches {
		cmd := match[1]
		args := parseNumbers(match[2])
		relative := strings.ToLower(cmd) == cmd

		move := func(x, y float64) {
			if relative {
				current = Point{X: current.X + x, Y: current.Y + y}
			} else {
				current = Point{X: x, Y: y}
			}
			points = append(points, current)
		}

		switch strings.ToUpper(cmd) {
		case "M":
			// Pairs after the first are implicit line-tos.
			for i := 0; i+1 < len(args); i += 2 {
				move(args[i], args[i+1])
				if i == 0 {
					start = current
				}
			}

		case "L", "T":
			for i := 0; i+1 < len(args); i += 2 {
				move(args[i], args[i+1])
			}

		case "H":
			for _, x := range args {
				if relative {
					current.X += x
				} else {
					current.X = x
				}
				points = append(points, current)
			}

		case "V":
			for _, y := range args {
				if relative {
					current.Y += y
				} else {
					current.Y = y
				}
				points = append(points, current)
			}

		case "C":
			for i := 0; i+5 < len(args); i += 6 {
				move(args[i+4], args[i+5])
			}

		case "S", "Q":
			for i := 0; i+3 < len(args); i += 4 {
				move(args[i+2], args[i+3])
			}

		case "A":
			for i := 0; i+6 < len(args); i += 7 {
				move(args[i+5], args[i+6])
			}

		case "Z":
			current = start
			if len(points) > 0 {
				points = append(points, start)
			}
		}
	}

	if len(points) == 0 {
		return nil, fmt.Errorf("path %q has no coordinates", d)
	}
	return points, nil
}

// PathBounds is the bounding box of the points a path visits.
func PathBounds(d string) (Box, error) {
	points, err := ParsePath(d)
	if err != nil {
		return Box{}, err
	}
	box, _ := BoundsOf(points)
	return box, nil
}
