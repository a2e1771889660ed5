package geometry

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// ============================================================
// Affine transforms
// ============================================================

// Matrix is an SVG affine transform [a b c d e f]:
//
//	x' = a*x + c*y + e
//	y' = b*x + d*y + f
type Matrix struct {
	A, B, C, D, E, F float64
}

func Identity() Matrix {
	return Matrix{A: 1, D: 1}
}

func Translate(x, y float64) Matrix {
	return Matrix{A: 1, D: 1, E: x, F: y}
}

func Scale(sx, sy float64) Matrix {
	return Matrix{A: sx, D: sy}
}

// Rotate builds a rotation by deg degrees about the origin.
func Rotate(deg float64) Matrix {
	rad := deg * math.Pi / 180
	sin, cos := math.Sin(rad), math.Cos(rad)
	return Matrix{A: cos, B: sin, C: -sin, D: cos}
}

// Multiply returns m·n: n is applied first, then m.
func (m Matrix) Multiply(n Matrix) Matrix {
	return Matrix{
		A: m.A*n.A + m.C*n.B,
		B: m.B*n.A + m.D*n.B,
		C: m.A*n.C + m.C*n.D,
		D: m.B*n.C + m.D*n.D,
		E: m.A*n.E + m.C*n.F + m.E,
		F: m.B*n.E + m.D*n.F + m.F,
	}
}

func (m Matrix) Apply(p Point) Point {
	return Point{
		X: m.A*p.X + m.C*p.Y + m.E,
		Y: m.B*p.X + m.D*p.Y + m.F,
	}
}

// Inverse fails for singular matrices.
func (m Matrix) Inverse() (Matrix, error) {
	det := m.A*m.D - m.B*m.C
	if math.Abs(det) < 1e-12 {
		return Matrix{}, fmt.Errorf("singular transform %s", m)
	}
	return Matrix{
		A: m.D / det,
		B: -m.B / det,
		C: -m.C / det,
		D: m.A / det,
		E: (m.C*m.F - m.D*m.E) / det,
		F: (m.B*m.E - m.A*m.F) / det,
	}, nil
}

func (m Matrix) String() string {
	return fmt.Sprintf("matrix(%s %s %s %s %s %s)",
		FormatFloat(m.A), FormatFloat(m.B), FormatFloat(m.C),
		FormatFloat(m.D), FormatFloat(m.E), FormatFloat(m.F))
}

// ScreenToDiagram maps a screen point into diagram space given the
// diagram's screen transform.
func ScreenToDiagram(ctm Matrix, p Point) (Point, error) {
	inv, err := ctm.Inverse()
	if err != nil {
		return Point{}, err
	}
	return inv.Apply(p), nil
}

// ============================================================
// transform attribute parser
// ============================================================

var transformRe = regexp.MustCompile(`([a-zA-Z]+)\s*\(([^)]*)\)`)

// ParseTransform parses an SVG transform attribute such as
// "translate(5 5) rotate(90)". An empty string is the identity.
func ParseTransform(s string) (Matrix, error) {
	result := Identity()
	s = strings.TrimSpace(s)
	if s == "" {
		return result, nil
	}

	matches := transformRe.FindAllStringSubmatch(s, -1)
	if len(matches) == 0 {
		return Matrix{}, fmt.Errorf("invalid transform %q", s)
	}

	for _, match := range matches {
		args := parseNumbers(match[2])
		var t Matrix

		switch match[1] {
		case "matrix":
			if len(args) != 6 {
				return Matrix{}, fmt.Errorf("matrix needs 6 arguments, got %d", len(args))
			}
			t = Matrix{A: args[0], B: args[1], C: args[2], D: args[3], E: args[4], F: args[5]}
		case "translate":
			switch len(args) {
			case 1:
				t = Translate(args[0], 0)
			case 2:
				t = Translate(args[0], args[1])
			default:
				return Matrix{}, fmt.Errorf("translate needs 1 or 2 arguments, got %d", len(args))
			}
		case "scale":
			switch len(args) {
			case 1:
				t = Scale(args[0], args[0])
			case 2:
				t = Scale(args[0], args[1])
			default:
				return Matrix{}, fmt.Errorf("scale needs 1 or 2 arguments, got %d", len(args))
			}
		case "rotate":
			switch len(args) {
			case 1:
				t = Rotate(args[0])
			case 3:
				t = Translate(args[1], args[2]).Multiply(Rotate(args[0])).Multiply(Translate(-args[1], -args[2]))
			default:
				return Matrix{}, fmt.Errorf("rotate needs 1 or 3 arguments, got %d", len(args))
			}
		default:
			return Matrix{}, fmt.Errorf("unsupported transform %q", match[1])
		}

		result = result.Multiply(t)
	}

	return result, nil
}

var numberRe = regexp.MustCompile(`[-+]?(?:\d+\.?\d*|\.\d+)(?:[eE][-+]?\d+)?`)

func parseNumbers(s string) []float64 {
	var out []float64
	for _, tok := range numberRe.FindAllString(s, -1) {
		if v, err := strconv.ParseFloat(tok, 64); err == nil {
			out = append(out, v)
		}
	}
	return out
}
