// Package region implements direct manipulation of a rectangular selection
// over a media surface. All math happens in native media pixels.
//
// The editor state is an explicit Session value. Every operation takes a
// Session and returns the next one, so callers own the state and can keep,
// copy or serialize it between pointer events.
package region

import (
	"fmt"
	"math"

	"github.com/heimdex/watermark-eraser/internal/geometry"
)

// MinSize is the smallest width and height a region may have.
const MinSize = 50

// Corner names a resize handle.
type Corner string

const (
	CornerNW Corner = "nw"
	CornerNE Corner = "ne"
	CornerSW Corner = "sw"
	CornerSE Corner = "se"
)

// ParseCorner validates a handle name coming from the UI.
func ParseCorner(s string) (Corner, error) {
	switch c := Corner(s); c {
	case CornerNW, CornerNE, CornerSW, CornerSE:
		return c, nil
	default:
		return "", fmt.Errorf("unknown corner %q", s)
	}
}

// Mode is the current interaction.
type Mode int

const (
	ModeIdle Mode = iota
	ModeDragging
	ModeResizing
)

func (m Mode) String() string {
	switch m {
	case ModeDragging:
		return "dragging"
	case ModeResizing:
		return "resizing"
	default:
		return "idle"
	}
}

// Session is the complete editor state for one media surface.
type Session struct {
	Media     geometry.Size  `json:"media"`
	Region    geometry.Rect  `json:"region"`
	HasRegion bool           `json:"has_region"`
	Mode      Mode           `json:"mode"`
	Corner    Corner         `json:"corner,omitempty"`
	Ref       geometry.Point `json:"ref"`
}

// DefaultRegion is 30% of the width by 20% of the height, centered.
func DefaultRegion(media geometry.Size) geometry.Rect {
	w := math.Min(math.Max(media.Width*3/10, MinSize), media.Width)
	h := math.Min(math.Max(media.Height*2/10, MinSize), media.Height)
	return geometry.Rect{
		X:      (media.Width - w) / 2,
		Y:      (media.Height - h) / 2,
		Width:  w,
		Height: h,
	}
}

// Initialize creates the default region the first time both media
// dimensions are known. It is a no-op once a region exists.
func Initialize(s Session, mediaWidth, mediaHeight float64) Session {
	media := geometry.Size{Width: mediaWidth, Height: mediaHeight}
	if s.HasRegion || !media.Known() {
		return s
	}
	s.Media = media
	s.Region = DefaultRegion(media)
	s.HasRegion = true
	s.Mode = ModeIdle
	s.Corner = ""
	return s
}

// BeginDrag starts translating the region. Ignored unless idle.
func BeginDrag(s Session, p geometry.Point) Session {
	if s.Mode != ModeIdle || !s.HasRegion {
		return s
	}
	s.Mode = ModeDragging
	s.Corner = ""
	s.Ref = p
	return s
}

// BeginResize starts resizing from the given corner. Ignored unless idle.
func BeginResize(s Session, c Corner, p geometry.Point) Session {
	if s.Mode != ModeIdle || !s.HasRegion {
		return s
	}
	if _, err := ParseCorner(string(c)); err != nil {
		return s
	}
	s.Mode = ModeResizing
	s.Corner = c
	s.Ref = p
	return s
}

// Update applies the pointer movement since the previous event. The delta is
// measured from the stored reference point, which then moves to p.
func Update(s Session, p geometry.Point, scale float64) Session {
	if s.Mode == ModeIdle || !s.HasRegion {
		return s
	}

	d := geometry.MediaDelta(s.Ref, p, scale)
	switch s.Mode {
	case ModeDragging:
		s.Region = drag(s.Region, d, s.Media)
	case ModeResizing:
		s.Region = resize(s.Region, s.Corner, d, s.Media)
	}
	s.Ref = p
	return s
}

// End returns to idle.
func End(s Session) Session {
	s.Mode = ModeIdle
	s.Corner = ""
	return s
}

// SetRegion replaces the region with a value typed in by the user, fitted
// into the media bounds.
func SetRegion(s Session, r geometry.Rect) Session {
	if !s.Media.Known() {
		return s
	}
	s.Region = fit(r, s.Media)
	s.HasRegion = true
	return s
}

// Reset drops the region. The next Initialize recreates the default.
func Reset(s Session) Session {
	s.Region = geometry.Rect{}
	s.HasRegion = false
	s.Mode = ModeIdle
	s.Corner = ""
	return s
}

func drag(r geometry.Rect, d geometry.Point, media geometry.Size) geometry.Rect {
	r.X = geometry.Clamp(r.X+d.X, 0, media.Width-r.Width)
	r.Y = geometry.Clamp(r.Y+d.Y, 0, media.Height-r.Height)
	return fit(r, media)
}

// resize moves the edges adjacent to corner; the opposite edges stay put.
// Near the media bounds the clamped edge position wins over the raw size
// delta, so a width or height only grows by as much as its edge could move.
func resize(r geometry.Rect, c Corner, d geometry.Point, media geometry.Size) geometry.Rect {
	right, bottom := r.Right(), r.Bottom()
	next := r

	switch c {
	case CornerNW, CornerSW:
		next.X = geometry.Clamp(r.X+d.X, 0, right-MinSize)
		next.Width = right - next.X
	case CornerNE, CornerSE:
		next.Width = math.Max(MinSize, r.Width+d.X)
	}

	switch c {
	case CornerNW, CornerNE:
		next.Y = geometry.Clamp(r.Y+d.Y, 0, bottom-MinSize)
		next.Height = bottom - next.Y
	case CornerSW, CornerSE:
		next.Height = math.Max(MinSize, r.Height+d.Y)
	}

	if next.Right() > media.Width {
		next.Width = media.Width - next.X
	}
	if next.Bottom() > media.Height {
		next.Height = media.Height - next.Y
	}
	return fit(next, media)
}

// fit enforces every invariant at once. On media smaller than MinSize the
// region spans the whole dimension.
func fit(r geometry.Rect, media geometry.Size) geometry.Rect {
	r.Width = math.Min(math.Max(r.Width, MinSize), media.Width)
	r.Height = math.Min(math.Max(r.Height, MinSize), media.Height)
	r.X = geometry.Clamp(r.X, 0, media.Width-r.Width)
	r.Y = geometry.Clamp(r.Y, 0, media.Height-r.Height)
	return r
}
