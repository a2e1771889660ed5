package geometry

import "math"

// TargetScale enlarges the circumscribing circle so the target ring clears
// the shape.
const TargetScale = 1.2

// BoxRadius is the radius of the circle circumscribing the box.
func BoxRadius(b Box) float64 {
	hw := b.Width() / 2
	hh := b.Height() / 2
	return math.Sqrt(hw*hw + hh*hh)
}

func TargetRadius(b Box) float64 {
	return TargetScale * BoxRadius(b)
}

// PerimeterOffset is the vector from center to the circle perimeter along
// the direction pointing away from other. Subtracting it from center gives
// the perimeter point facing other.
func PerimeterOffset(center Point, radius float64, other Point) Point {
	angle := math.Atan2(center.Y-other.Y, center.X-other.X)
	return Point{X: radius * math.Cos(angle), Y: radius * math.Sin(angle)}
}
