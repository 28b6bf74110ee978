// Package playback implements the animation playback state machine and frame clock.
//
// A [Controller] is owned by the presentation context: every method must be called from
// that single goroutine. It holds no locks.
package playback

import (
	"fmt"
	"math"
	"time"

	"github.com/samse/lottiekit/internal/composition"
	"github.com/samse/lottiekit/internal/shared"
)

// Options configures a new [Controller].
type Options struct {
	Speed             float64
	RepeatMode        RepeatMode
	RepeatCount       int
	AutoPlay          bool
	CancelResetsFrame bool
}

// DefaultOptions plays once at normal speed.
func DefaultOptions() Options {
	return Options{Speed: 1, RepeatMode: Restart, RepeatCount: 0}
}

// bound is a range limit or position that may be given before a composition is known.
type bound struct {
	set        bool
	byProgress bool
	value      float64
}

func frameBound(f float64) bound    { return bound{set: true, value: f} }
func progressBound(p float64) bound { return bound{set: true, byProgress: true, value: clamp(p, 0, 1)} }

func (b bound) resolve(c *composition.Composition, fallback float64) float64 {
	if !b.set {
		return fallback
	}
	if b.byProgress {
		return c.FrameForProgress(b.value)
	}
	return clamp(b.value, c.StartFrame, c.EndFrame)
}

type listener struct {
	id ListenerID
	fn func(Event)
}

// Controller drives playback of one composition.
type Controller struct {
	comp  *composition.Composition
	state State
	frame float64

	minBound bound
	maxBound bound
	pending  bound // position requested before a composition arrived

	speed        float64
	repeatMode   RepeatMode
	repeatCount  int
	repeatsDone  int
	reversedPass bool

	visible  bool
	attached bool

	autoPlay       bool
	deferredPlay   bool // play requested while hidden
	resumeOnAttach bool // was playing when detached
	playOnLoad     bool // play requested with no composition

	cancelResetsFrame bool

	listeners []listener
	nextID    ListenerID
}

// NewController creates a controller for a visible, attached host.
func NewController(opts Options) *Controller {
	if opts.Speed == 0 {
		opts.Speed = 1
	}
	if opts.RepeatMode == 0 {
		opts.RepeatMode = Restart
	}
	if opts.RepeatCount < Infinite {
		opts.RepeatCount = 0
	}

	c := &Controller{
		state:             Idle,
		speed:             opts.Speed,
		repeatMode:        opts.RepeatMode,
		repeatCount:       opts.RepeatCount,
		visible:           true,
		attached:          true,
		cancelResetsFrame: opts.CancelResetsFrame,
	}
	// The host starts attached, so auto-play is a play request for the first composition.
	c.SetAutoPlay(opts.AutoPlay)
	return c
}

// SetComposition installs c and returns false if c is already installed.
//
// The controller moves to Ready. If it was playing, or a play request is outstanding,
// playback continues with the new composition using the current range, progress and speed.
func (c *Controller) SetComposition(comp *composition.Composition) bool {
	if comp == nil {
		c.ClearComposition()
		return true
	}
	if comp == c.comp {
		return false
	}

	position := c.pending
	if c.comp != nil && !position.set {
		position = progressBound(c.Progress())
	}
	resume := c.state == Playing || c.state == PlayingSuspended || c.deferredPlay || c.playOnLoad

	c.comp = comp
	c.state = Ready
	c.pending = bound{}
	c.playOnLoad = false
	c.reversedPass = false
	c.repeatsDone = 0

	min, max := c.bounds()
	c.frame = clamp(position.resolve(comp, min), min, max)

	if resume {
		c.deferredPlay = false
		c.Play()
	}
	c.emit(EventUpdate)
	return true
}

// ClearComposition drops the composition and returns to Idle. An active play request
// carries over to the next composition.
func (c *Controller) ClearComposition() {
	if c.comp == nil {
		return
	}
	if c.state == Playing || c.state == PlayingSuspended {
		c.playOnLoad = true
	}
	c.pending = progressBound(c.Progress())
	c.comp = nil
	c.state = Idle
	c.repeatsDone = 0
	c.reversedPass = false
}

// Composition returns the installed composition, or nil.
func (c *Controller) Composition() *composition.Composition { return c.comp }

// Play starts or resumes playback from the current frame.
//
// With no composition the request is remembered until one arrives. While the host is
// hidden or detached the request is deferred until it is shown again.
func (c *Controller) Play() {
	if c.comp == nil {
		c.playOnLoad = true
		return
	}
	if !c.shown() {
		c.deferredPlay = true
		return
	}
	if c.state == Playing {
		return
	}

	if c.state == Ready {
		c.repeatsDone = 0
		if c.atEnd() {
			c.rewind()
		}
	}
	c.state = Playing
	c.deferredPlay = false
	c.emit(EventStart)
}

// Pause stops the frame clock and forgets every pending play request, including auto-play.
func (c *Controller) Pause() {
	c.autoPlay = false
	c.deferredPlay = false
	c.resumeOnAttach = false
	c.playOnLoad = false

	if c.state == Playing || c.state == PlayingSuspended {
		c.state = Ready
		c.emit(EventPause)
	}
}

// Cancel stops the frame clock and forgets every pending play request, including a resume
// on the next attach. The current frame is kept unless the controller was built with
// CancelResetsFrame.
func (c *Controller) Cancel() {
	c.resumeOnAttach = false
	c.stop(c.cancelResetsFrame)
}

func (c *Controller) stop(reset bool) {
	c.deferredPlay = false
	c.playOnLoad = false

	if c.state != Playing && c.state != PlayingSuspended {
		return
	}
	c.state = Ready
	if reset {
		c.rewind()
	}
	c.emit(EventCancel)
}

// OnVisibilityChanged forwards the host's visibility.
func (c *Controller) OnVisibilityChanged(visible bool) {
	c.visible = visible
	c.applyVisibility()
}

// OnAttached forwards the host being attached. Auto-play and playback interrupted by a
// detach start here.
func (c *Controller) OnAttached() {
	c.attached = true
	if c.autoPlay || c.resumeOnAttach {
		c.autoPlay = false
		c.resumeOnAttach = false
		c.Play()
	}
	c.applyVisibility()
}

// OnDetached forwards the host being detached. Playing animations are cancelled at the
// current frame and resume on the next attach.
func (c *Controller) OnDetached() {
	c.attached = false
	if c.state == Playing {
		c.stop(false)
		c.resumeOnAttach = true
	}
}

func (c *Controller) applyVisibility() {
	if c.shown() {
		if c.deferredPlay && c.comp != nil {
			c.deferredPlay = false
			switch c.state {
			case PlayingSuspended:
				c.state = Playing
				c.emit(EventResume)
			case Ready:
				c.Play()
			}
		}
		return
	}

	if c.state == Playing {
		c.state = PlayingSuspended
		c.deferredPlay = true
	}
}

func (c *Controller) shown() bool { return c.visible && c.attached }

// SetAutoPlay requests playback on the next attach, or immediately if already attached.
func (c *Controller) SetAutoPlay(auto bool) {
	c.autoPlay = auto
	if auto && c.attached {
		c.autoPlay = false
		c.Play()
	}
}

// Tick advances the frame clock by dt. It does nothing unless Playing.
func (c *Controller) Tick(dt time.Duration) {
	if c.state != Playing || c.comp == nil || dt <= 0 {
		return
	}

	step := dt.Seconds() * c.comp.FrameRate * c.speed
	if c.reversedPass {
		step = -step
	}
	if step == 0 {
		return
	}

	min, max := c.bounds()
	next := c.frame + step
	if next >= min && next <= max {
		c.frame = next
		c.emit(EventUpdate)
		return
	}

	forward := step > 0
	over := pick(forward, next-max, min-next)
	if span := max - min; span > 0 && over > 0 {
		over = math.Mod(over, span)
	} else {
		over = 0
	}
	if c.repeatCount != Infinite && c.repeatsDone >= c.repeatCount {
		c.frame = pick(forward, max, min)
		c.state = Ready
		c.reversedPass = false
		c.emit(EventUpdate)
		c.emit(EventEnd)
		return
	}

	// The overshoot carries into the next pass.
	c.repeatsDone++
	if c.repeatMode == Reverse {
		c.reversedPass = !c.reversedPass
		c.frame = pick(forward, max-over, min+over)
	} else {
		c.frame = pick(forward, min+over, max-over)
	}
	c.emit(EventRepeat)
	c.emit(EventUpdate)
}

// SetFrame moves to frame, clamped to the active range.
func (c *Controller) SetFrame(frame float64) {
	if c.comp == nil {
		c.pending = frameBound(frame)
		return
	}
	min, max := c.bounds()
	c.frame = clamp(frame, min, max)
	c.emit(EventUpdate)
}

// SetProgress moves to progress across the whole composition, clamped to the active range.
func (c *Controller) SetProgress(progress float64) {
	if c.comp == nil {
		c.pending = progressBound(progress)
		return
	}
	c.SetFrame(c.comp.FrameForProgress(clamp(progress, 0, 1)))
}

// Frame is the current frame.
func (c *Controller) Frame() float64 { return c.frame }

// Progress is the current frame as a fraction of the whole composition.
func (c *Controller) Progress() float64 {
	if c.comp == nil {
		if c.pending.set && c.pending.byProgress {
			return c.pending.value
		}
		return 0
	}
	return c.comp.ProgressForFrame(c.frame)
}

// SetMinFrame limits playback to start at frame.
func (c *Controller) SetMinFrame(frame float64) error {
	return c.setRange(frameBound(frame), c.maxBound)
}

// SetMaxFrame limits playback to end at frame.
func (c *Controller) SetMaxFrame(frame float64) error {
	return c.setRange(c.minBound, frameBound(frame))
}

// SetMinAndMaxFrame limits playback to [min, max].
func (c *Controller) SetMinAndMaxFrame(min, max float64) error {
	if min > max {
		return fmt.Errorf("%w: min frame %v greater than max frame %v", shared.ErrInvalidArgument, min, max)
	}
	return c.setRange(frameBound(min), frameBound(max))
}

// SetMinProgress limits playback to start at progress.
func (c *Controller) SetMinProgress(progress float64) error {
	return c.setRange(progressBound(progress), c.maxBound)
}

// SetMaxProgress limits playback to end at progress.
func (c *Controller) SetMaxProgress(progress float64) error {
	return c.setRange(c.minBound, progressBound(progress))
}

// SetMinAndMaxProgress limits playback to [min, max] as fractions of the composition.
func (c *Controller) SetMinAndMaxProgress(min, max float64) error {
	if min > max {
		return fmt.Errorf("%w: min progress %v greater than max progress %v", shared.ErrInvalidArgument, min, max)
	}
	return c.setRange(progressBound(min), progressBound(max))
}

// SetMinFrameByMarker starts the range at the marker's start.
func (c *Controller) SetMinFrameByMarker(name string) error {
	m, err := c.marker(name)
	if err != nil {
		return err
	}
	return c.SetMinFrame(m.StartFrame)
}

// SetMaxFrameByMarker ends the range at the marker's end.
func (c *Controller) SetMaxFrameByMarker(name string) error {
	m, err := c.marker(name)
	if err != nil {
		return err
	}
	return c.SetMaxFrame(m.EndFrame())
}

// SetMinAndMaxFrameByMarker limits playback to the marker's span.
func (c *Controller) SetMinAndMaxFrameByMarker(name string) error {
	m, err := c.marker(name)
	if err != nil {
		return err
	}
	return c.SetMinAndMaxFrame(m.StartFrame, m.EndFrame())
}

// SetMinAndMaxFrameBetweenMarkers plays from the start of one marker to another. With
// includeEnd the end marker plays through to its own end.
func (c *Controller) SetMinAndMaxFrameBetweenMarkers(start, end string, includeEnd bool) error {
	sm, err := c.marker(start)
	if err != nil {
		return err
	}
	em, err := c.marker(end)
	if err != nil {
		return err
	}
	max := em.StartFrame
	if includeEnd {
		max = em.EndFrame()
	}
	return c.SetMinAndMaxFrame(sm.StartFrame, max)
}

func (c *Controller) marker(name string) (composition.Marker, error) {
	if c.comp == nil {
		return composition.Marker{}, fmt.Errorf("%w: no composition to look up marker %q", shared.ErrInvalidArgument, name)
	}
	m, ok := c.comp.Marker(name)
	if !ok {
		return composition.Marker{}, fmt.Errorf("%w: %q", shared.ErrMarkerNotFound, name)
	}
	return m, nil
}

// setRange validates against the composition when there is one; otherwise the range is
// applied once a composition arrives.
func (c *Controller) setRange(min, max bound) error {
	if c.comp != nil {
		lo := min.resolve(c.comp, c.comp.StartFrame)
		hi := max.resolve(c.comp, c.comp.EndFrame)
		if lo > hi {
			return fmt.Errorf("%w: min frame %v greater than max frame %v", shared.ErrInvalidArgument, lo, hi)
		}
	}

	c.minBound, c.maxBound = min, max
	if c.comp != nil {
		lo, hi := c.bounds()
		if f := clamp(c.frame, lo, hi); f != c.frame {
			c.frame = f
			c.emit(EventUpdate)
		}
	}
	return nil
}

// MinFrame is the active range start.
func (c *Controller) MinFrame() float64 {
	min, _ := c.bounds()
	return min
}

// MaxFrame is the active range end.
func (c *Controller) MaxFrame() float64 {
	_, max := c.bounds()
	return max
}

func (c *Controller) bounds() (float64, float64) {
	if c.comp == nil {
		return 0, 0
	}
	min := c.minBound.resolve(c.comp, c.comp.StartFrame)
	max := c.maxBound.resolve(c.comp, c.comp.EndFrame)
	if min > max {
		min = max
	}
	return min, max
}

// SetSpeed sets the playback rate; negative plays backwards.
func (c *Controller) SetSpeed(speed float64) { c.speed = speed }

// ReverseSpeed flips the playback direction.
func (c *Controller) ReverseSpeed() { c.speed = -c.speed }

// Speed is the playback rate.
func (c *Controller) Speed() float64 { return c.speed }

// SetRepeatMode sets the behaviour at the end of each pass.
func (c *Controller) SetRepeatMode(mode RepeatMode) error {
	if mode != Restart && mode != Reverse {
		return fmt.Errorf("%w: repeat mode %d", shared.ErrInvalidArgument, mode)
	}
	c.repeatMode = mode
	return nil
}

// RepeatMode returns the repeat mode.
func (c *Controller) RepeatMode() RepeatMode { return c.repeatMode }

// SetRepeatCount sets how many times the range repeats after the first pass; [Infinite] loops forever.
func (c *Controller) SetRepeatCount(count int) error {
	if count < Infinite {
		return fmt.Errorf("%w: repeat count %d", shared.ErrInvalidArgument, count)
	}
	c.repeatCount = count
	return nil
}

// RepeatCount returns the repeat count.
func (c *Controller) RepeatCount() int { return c.repeatCount }

// Loop toggles infinite repetition.
func (c *Controller) Loop(loop bool) {
	if loop {
		c.repeatCount = Infinite
	} else {
		c.repeatCount = 0
	}
}

// State returns the lifecycle state.
func (c *Controller) State() State { return c.state }

// IsAnimating reports whether the frame clock is running.
func (c *Controller) IsAnimating() bool { return c.state == Playing }

// WillAnimate reports whether the controller is playing or will play once shown or loaded.
func (c *Controller) WillAnimate() bool {
	return c.state == Playing || c.state == PlayingSuspended || c.deferredPlay || c.playOnLoad || c.resumeOnAttach
}

// Duration is the length of the composition at normal speed.
func (c *Controller) Duration() time.Duration {
	if c.comp == nil {
		return 0
	}
	return c.comp.Duration()
}

// Snapshot returns the externally visible state.
func (c *Controller) Snapshot() PlaybackState {
	min, max := c.bounds()
	return PlaybackState{
		State:                 c.state,
		CurrentFrame:          c.frame,
		MinFrame:              min,
		MaxFrame:              max,
		Progress:              c.Progress(),
		Speed:                 c.speed,
		RepeatMode:            c.repeatMode,
		RepeatCount:           c.repeatCount,
		IsPlaying:             c.state == Playing,
		SuspendedByVisibility: c.state == PlayingSuspended,
	}
}

// AddListener registers fn for every controller event.
func (c *Controller) AddListener(fn func(Event)) ListenerID {
	c.nextID++
	c.listeners = append(c.listeners, listener{id: c.nextID, fn: fn})
	return c.nextID
}

// RemoveListener detaches a listener.
func (c *Controller) RemoveListener(id ListenerID) {
	for i, l := range c.listeners {
		if l.id == id {
			c.listeners = append(c.listeners[:i], c.listeners[i+1:]...)
			return
		}
	}
}

func (c *Controller) emit(kind EventKind) {
	if len(c.listeners) == 0 {
		return
	}
	ev := Event{Kind: kind, Frame: c.frame, Progress: c.Progress()}
	for _, l := range append([]listener(nil), c.listeners...) {
		l.fn(ev)
	}
}

// forward reports the effective direction of the next tick.
func (c *Controller) forward() bool {
	return (c.speed >= 0) != c.reversedPass
}

func (c *Controller) atEnd() bool {
	min, max := c.bounds()
	if c.forward() {
		return c.frame >= max
	}
	return c.frame <= min
}

func (c *Controller) rewind() {
	min, max := c.bounds()
	c.frame = pick(c.forward(), min, max)
}

func pick(cond bool, a, b float64) float64 {
	if cond {
		return a
	}
	return b
}

func clamp(v, lo, hi float64) float64 {
	switch {
	case v < lo:
		return lo
	case v > hi:
		return hi
	default:
		return v
	}
}
