// Package geometry converts between display space and native media space
// and clamps values into bounds. Every function is pure.
package geometry

import "math"

// Point is a position in either display or media space; callers track which.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Sub returns p - q.
func (p Point) Sub(q Point) Point {
	return Point{X: p.X - q.X, Y: p.Y - q.Y}
}

// Scale divides both coordinates by factor.
func (p Point) Scale(factor float64) Point {
	return Point{X: p.X / factor, Y: p.Y / factor}
}

// Size is the native pixel size of a media surface.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Known reports whether both dimensions have been reported.
func (s Size) Known() bool {
	return s.Width > 0 && s.Height > 0
}

// Rect is an axis aligned rectangle anchored at its top-left corner.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (r Rect) Right() float64 {
	return r.X + r.Width
}

func (r Rect) Bottom() float64 {
	return r.Y + r.Height
}

// Within reports whether r lies fully inside a surface of the given size.
func (r Rect) Within(s Size) bool {
	return r.X >= 0 && r.Y >= 0 && r.Right() <= s.Width && r.Bottom() <= s.Height
}

// IntRect is a rectangle in whole pixels, as stored by the media service.
type IntRect struct {
	X      int64 `json:"x"`
	Y      int64 `json:"y"`
	Width  int64 `json:"width"`
	Height int64 `json:"height"`
}

// Round rounds every component to the nearest pixel.
func (r Rect) Round() IntRect {
	return IntRect{
		X:      int64(math.Round(r.X)),
		Y:      int64(math.Round(r.Y)),
		Width:  int64(math.Round(r.Width)),
		Height: int64(math.Round(r.Height)),
	}
}

// Clamp limits v to [lo, hi]. When hi < lo the lower bound wins, so a
// position never goes negative on a surface smaller than the shape.
func Clamp(v, lo, hi float64) float64 {
	if v > hi {
		v = hi
	}
	if v < lo {
		v = lo
	}
	return v
}

// ScaleFactor is displayWidth / mediaWidth. It falls back to 1 while either
// width is unknown so deltas pass through unscaled.
func ScaleFactor(displayWidth, mediaWidth float64) float64 {
	if displayWidth <= 0 || mediaWidth <= 0 {
		return 1
	}
	return displayWidth / mediaWidth
}

// MediaDelta translates a display-space pointer movement into media units.
func MediaDelta(from, to Point, scale float64) Point {
	if scale <= 0 {
		scale = 1
	}
	return to.Sub(from).Scale(scale)
}

// ToDisplay maps a media-space rectangle onto the rendered surface.
func ToDisplay(r Rect, scale float64) Rect {
	return Rect{
		X:      r.X * scale,
		Y:      r.Y * scale,
		Width:  r.Width * scale,
		Height: r.Height * scale,
	}
}

// ToMedia maps a display-space point into media space.
func ToMedia(p Point, scale float64) Point {
	if scale <= 0 {
		return p
	}
	return p.Scale(scale)
}
