package region

import "github.com/heimdex/watermark-eraser/internal/geometry"

// EventType names a pointer or layout event fed into Transition.
type EventType string

const (
	EventInitialize  EventType = "initialize"
	EventBeginDrag   EventType = "begin_drag"
	EventBeginResize EventType = "begin_resize"
	EventMove        EventType = "move"
	EventEnd         EventType = "end"
	EventSetRegion   EventType = "set_region"
	EventReset       EventType = "reset"
)

// Event carries the inputs for one transition. Only the fields relevant to
// Type are read.
type Event struct {
	Type   EventType
	Point  geometry.Point
	Corner Corner
	// Scale is displayWidth / mediaWidth at the time of the event.
	Scale  float64
	Media  geometry.Size
	Region geometry.Rect
}

// Transition is the pure state transition function of the editor.
func Transition(s Session, ev Event) Session {
	switch ev.Type {
	case EventInitialize:
		return Initialize(s, ev.Media.Width, ev.Media.Height)
	case EventBeginDrag:
		return BeginDrag(s, ev.Point)
	case EventBeginResize:
		return BeginResize(s, ev.Corner, ev.Point)
	case EventMove:
		return Update(s, ev.Point, ev.Scale)
	case EventEnd:
		return End(s)
	case EventSetRegion:
		return SetRegion(s, ev.Region)
	case EventReset:
		return Reset(s)
	default:
		return s
	}
}

// Editor owns one Session for a UI loop that prefers method calls.
// It is not safe for concurrent use.
type Editor struct {
	session Session
}

func NewEditor() *Editor {
	return &Editor{}
}

// Restore returns an editor continuing from a saved session.
func Restore(s Session) *Editor {
	return &Editor{session: s}
}

func (e *Editor) Session() Session {
	return e.session
}

// Region returns the current region and whether one exists.
func (e *Editor) Region() (geometry.Rect, bool) {
	return e.session.Region, e.session.HasRegion
}

func (e *Editor) Initialize(mediaWidth, mediaHeight float64) geometry.Rect {
	e.session = Initialize(e.session, mediaWidth, mediaHeight)
	return e.session.Region
}

func (e *Editor) BeginDrag(p geometry.Point) {
	e.session = BeginDrag(e.session, p)
}

func (e *Editor) BeginResize(c Corner, p geometry.Point) {
	e.session = BeginResize(e.session, c, p)
}

// Update converts the display width into a scale factor for the current
// media and applies the move.
func (e *Editor) Update(p geometry.Point, displayWidth float64) geometry.Rect {
	scale := geometry.ScaleFactor(displayWidth, e.session.Media.Width)
	e.session = Update(e.session, p, scale)
	return e.session.Region
}

func (e *Editor) End() {
	e.session = End(e.session)
}

func (e *Editor) Apply(ev Event) geometry.Rect {
	e.session = Transition(e.session, ev)
	return e.session.Region
}
