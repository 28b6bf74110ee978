package playback

import (
	"testing"
	"time"

	"github.com/samse/lottiekit/internal/composition"
	"github.com/samse/lottiekit/internal/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// oneFrame at 30fps.
const oneFrame = time.Second / 30

func testComposition() *composition.Composition {
	return &composition.Composition{
		Name:       "test",
		StartFrame: 0,
		EndFrame:   60,
		FrameRate:  30,
		Markers: []composition.Marker{
			{Name: "intro", StartFrame: 0, DurationFrames: 20},
			{Name: "loop", StartFrame: 20, DurationFrames: 20},
			{Name: "outro", StartFrame: 40, DurationFrames: 20},
		},
	}
}

func recordEvents(c *Controller) *[]EventKind {
	var kinds []EventKind
	c.AddListener(func(e Event) {
		if e.Kind != EventUpdate {
			kinds = append(kinds, e.Kind)
		}
	})
	return &kinds
}

func loaded(opts Options) *Controller {
	c := NewController(opts)
	c.SetComposition(testComposition())
	return c
}

func TestPlayBeforeComposition(t *testing.T) {
	c := NewController(DefaultOptions())
	c.Play()

	assert.Equal(t, Idle, c.State())
	assert.True(t, c.WillAnimate())

	c.SetComposition(testComposition())
	assert.Equal(t, Playing, c.State())
}

func TestSetCompositionIdempotent(t *testing.T) {
	c := NewController(DefaultOptions())
	comp := testComposition()

	assert.True(t, c.SetComposition(comp))
	assert.False(t, c.SetComposition(comp))
	assert.Equal(t, Ready, c.State())
}

func TestSetCompositionKeepsPlaying(t *testing.T) {
	c := loaded(DefaultOptions())
	c.Play()
	c.Tick(10 * oneFrame)
	progress := c.Progress()

	next := testComposition()
	next.EndFrame = 120
	require.True(t, c.SetComposition(next))

	assert.Equal(t, Playing, c.State())
	assert.InDelta(t, progress, c.Progress(), 1e-9)
}

func TestDeferredPlayWhileHidden(t *testing.T) {
	c := loaded(DefaultOptions())
	events := recordEvents(c)

	c.OnVisibilityChanged(false)
	c.Play()

	assert.Equal(t, Ready, c.State(), "hidden host must not start the clock")
	assert.True(t, c.WillAnimate())
	assert.False(t, c.IsAnimating())

	c.OnVisibilityChanged(true)
	assert.Equal(t, Playing, c.State())
	assert.Equal(t, []EventKind{EventStart}, *events)
}

func TestVisibilitySuspendsAndResumes(t *testing.T) {
	c := loaded(DefaultOptions())
	c.Play()
	c.Tick(5 * oneFrame)
	frame := c.Frame()
	events := recordEvents(c)

	c.OnVisibilityChanged(false)
	assert.Equal(t, PlayingSuspended, c.State())
	assert.True(t, c.Snapshot().SuspendedByVisibility)

	c.Tick(5 * oneFrame)
	assert.Equal(t, frame, c.Frame(), "frame frozen while suspended")

	c.OnVisibilityChanged(true)
	assert.Equal(t, Playing, c.State())
	assert.Equal(t, []EventKind{EventResume}, *events)
}

func TestPauseWhileHiddenForgetsDeferredPlay(t *testing.T) {
	c := loaded(DefaultOptions())
	c.OnVisibilityChanged(false)
	c.Play()
	c.Pause()

	c.OnVisibilityChanged(true)
	assert.Equal(t, Ready, c.State())
	assert.False(t, c.WillAnimate())
}

func TestCancelWhileHiddenForgetsDeferredPlay(t *testing.T) {
	c := loaded(DefaultOptions())
	c.Play()
	c.OnVisibilityChanged(false)
	c.Cancel()

	c.OnVisibilityChanged(true)
	assert.Equal(t, Ready, c.State())
}

func TestDetachAttachResumesFromFrozenFrame(t *testing.T) {
	c := loaded(DefaultOptions())
	c.Play()
	c.Tick(12 * oneFrame)
	frame := c.Frame()
	events := recordEvents(c)

	c.OnDetached()
	assert.Equal(t, Ready, c.State())
	assert.Equal(t, frame, c.Frame(), "cancel keeps the frame")
	assert.True(t, c.WillAnimate())

	c.OnAttached()
	assert.Equal(t, Playing, c.State())
	assert.Equal(t, frame, c.Frame())
	assert.Equal(t, []EventKind{EventCancel, EventStart}, *events)

	t.Run("cancel resetting the frame does not apply to detach", func(t *testing.T) {
		c := loaded(Options{Speed: 1, CancelResetsFrame: true})
		c.Play()
		c.Tick(10 * oneFrame)
		frame := c.Frame()
		require.Greater(t, frame, 0.0)

		c.OnDetached()
		assert.Equal(t, frame, c.Frame())
		c.OnAttached()
		assert.Equal(t, Playing, c.State())
		assert.Equal(t, frame, c.Frame())
	})

	t.Run("explicit cancel while detached forgets the resume", func(t *testing.T) {
		c := loaded(DefaultOptions())
		c.Play()
		c.OnDetached()
		c.Cancel()
		assert.False(t, c.WillAnimate())

		c.OnAttached()
		assert.Equal(t, Ready, c.State())
	})
}

func TestCancelResetsFrame(t *testing.T) {
	c := loaded(Options{Speed: 1, CancelResetsFrame: true})
	c.Play()
	c.Tick(12 * oneFrame)
	c.Cancel()

	assert.Equal(t, 0.0, c.Frame())
}

func TestAutoPlay(t *testing.T) {
	t.Run("plays when the composition arrives", func(t *testing.T) {
		c := NewController(Options{Speed: 1, AutoPlay: true})
		assert.True(t, c.WillAnimate())

		c.SetComposition(testComposition())
		assert.Equal(t, Playing, c.State())
		c.Tick(time.Second)
		assert.InDelta(t, 30.0, c.Frame(), 1e-9)
	})

	t.Run("detached host plays on attach", func(t *testing.T) {
		c := NewController(Options{Speed: 1, AutoPlay: true})
		c.OnDetached()
		c.SetComposition(testComposition())
		assert.Equal(t, Ready, c.State())

		c.OnAttached()
		assert.Equal(t, Playing, c.State())
	})

	t.Run("setter plays immediately when attached", func(t *testing.T) {
		c := loaded(DefaultOptions())
		c.SetAutoPlay(true)
		assert.Equal(t, Playing, c.State())
	})

	t.Run("pause clears auto-play", func(t *testing.T) {
		c := loaded(Options{Speed: 1, AutoPlay: true})
		c.Pause()
		c.OnAttached()
		assert.Equal(t, Ready, c.State())
	})
}

func TestTickRunsToEnd(t *testing.T) {
	c := loaded(DefaultOptions())
	events := recordEvents(c)
	c.Play()

	c.Tick(time.Second)
	assert.InDelta(t, 30.0, c.Frame(), 1e-9)
	assert.InDelta(t, 0.5, c.Progress(), 1e-9)

	c.Tick(2 * time.Second)
	assert.Equal(t, 60.0, c.Frame())
	assert.Equal(t, Ready, c.State())
	assert.Equal(t, []EventKind{EventStart, EventEnd}, *events)

	// playing again from the end rewinds
	c.Play()
	assert.Equal(t, 0.0, c.Frame())
}

func TestRepeat(t *testing.T) {
	t.Run("restart", func(t *testing.T) {
		c := loaded(Options{Speed: 1, RepeatMode: Restart, RepeatCount: 1})
		events := recordEvents(c)
		c.Play()

		c.Tick(3 * time.Second)
		assert.InDelta(t, 30.0, c.Frame(), 1e-9, "overshoot carries into the next pass")
		assert.Equal(t, Playing, c.State())

		c.Tick(3 * time.Second)
		assert.Equal(t, Ready, c.State())
		assert.Equal(t, []EventKind{EventStart, EventRepeat, EventEnd}, *events)
	})

	t.Run("reverse", func(t *testing.T) {
		c := loaded(Options{Speed: 1, RepeatMode: Reverse, RepeatCount: 1})
		c.Play()

		c.Tick(2 * time.Second)
		assert.Equal(t, 60.0, c.Frame())

		c.Tick(time.Second)
		assert.InDelta(t, 30.0, c.Frame(), 1e-9, "second pass runs backwards")

		c.Tick(2 * time.Second)
		assert.Equal(t, 0.0, c.Frame())
		assert.Equal(t, Ready, c.State())
	})

	t.Run("coarse ticks keep the loop phase", func(t *testing.T) {
		c := loaded(DefaultOptions())
		c.Loop(true)
		c.Play()
		for range 5 {
			c.Tick(700 * time.Millisecond) // 21 frames
		}
		// 105 frames into a 60 frame loop
		assert.InDelta(t, 45.0, c.Frame(), 1e-6)
	})

	t.Run("infinite", func(t *testing.T) {
		c := loaded(DefaultOptions())
		c.Loop(true)
		c.Play()
		for range 20 {
			c.Tick(3 * time.Second)
		}
		assert.Equal(t, Playing, c.State())
	})
}

func TestNegativeSpeed(t *testing.T) {
	c := loaded(Options{Speed: -1})
	c.Play()
	assert.Equal(t, 60.0, c.Frame(), "reverse playback starts at the end")

	c.Tick(time.Second)
	assert.InDelta(t, 30.0, c.Frame(), 1e-9)
}

func TestFrameRange(t *testing.T) {
	t.Run("clamps frame", func(t *testing.T) {
		c := loaded(DefaultOptions())
		require.NoError(t, c.SetMinAndMaxFrame(10, 20))
		c.SetFrame(50)
		assert.Equal(t, 20.0, c.Frame())
		c.SetFrame(0)
		assert.Equal(t, 10.0, c.Frame())
	})

	t.Run("rejects inverted range", func(t *testing.T) {
		c := loaded(DefaultOptions())
		assert.ErrorIs(t, c.SetMinAndMaxFrame(30, 10), shared.ErrInvalidArgument)
		require.NoError(t, c.SetMaxFrame(20))
		assert.ErrorIs(t, c.SetMinFrame(40), shared.ErrInvalidArgument)
		assert.Equal(t, 0.0, c.MinFrame())
	})

	t.Run("progress", func(t *testing.T) {
		c := loaded(DefaultOptions())
		require.NoError(t, c.SetMinAndMaxProgress(0.25, 0.5))
		assert.Equal(t, 15.0, c.MinFrame())
		assert.Equal(t, 30.0, c.MaxFrame())
		assert.ErrorIs(t, c.SetMinAndMaxProgress(0.8, 0.2), shared.ErrInvalidArgument)
	})

	t.Run("applied when composition arrives", func(t *testing.T) {
		c := NewController(DefaultOptions())
		require.NoError(t, c.SetMinAndMaxProgress(0.5, 1))
		c.SetComposition(testComposition())
		assert.Equal(t, 30.0, c.MinFrame())
		assert.Equal(t, 30.0, c.Frame())
	})
}

func TestMarkers(t *testing.T) {
	t.Run("marker span", func(t *testing.T) {
		c := loaded(DefaultOptions())
		require.NoError(t, c.SetMinAndMaxFrameByMarker("LOOP"))
		assert.Equal(t, 20.0, c.MinFrame())
		assert.Equal(t, 40.0, c.MaxFrame())
	})

	t.Run("between markers", func(t *testing.T) {
		c := loaded(DefaultOptions())
		require.NoError(t, c.SetMinAndMaxFrameBetweenMarkers("intro", "outro", false))
		assert.Equal(t, 0.0, c.MinFrame())
		assert.Equal(t, 40.0, c.MaxFrame())

		require.NoError(t, c.SetMinAndMaxFrameBetweenMarkers("intro", "outro", true))
		assert.Equal(t, 60.0, c.MaxFrame())
	})

	t.Run("missing marker leaves state unchanged", func(t *testing.T) {
		c := loaded(DefaultOptions())
		require.NoError(t, c.SetMinAndMaxFrame(5, 25))
		before := c.Snapshot()

		assert.ErrorIs(t, c.SetMinFrameByMarker("nope"), shared.ErrMarkerNotFound)
		assert.ErrorIs(t, c.SetMaxFrameByMarker("nope"), shared.ErrMarkerNotFound)
		assert.ErrorIs(t, c.SetMinAndMaxFrameBetweenMarkers("intro", "nope", true), shared.ErrMarkerNotFound)
		assert.Equal(t, before, c.Snapshot())
	})

	t.Run("no composition", func(t *testing.T) {
		c := NewController(DefaultOptions())
		assert.ErrorIs(t, c.SetMinFrameByMarker("intro"), shared.ErrInvalidArgument)
	})
}

func TestClearCompositionCarriesPlayRequest(t *testing.T) {
	c := loaded(DefaultOptions())
	c.Play()
	c.Tick(time.Second)

	c.ClearComposition()
	assert.Equal(t, Idle, c.State())
	assert.InDelta(t, 0.5, c.Progress(), 1e-9)
	assert.True(t, c.WillAnimate())

	c.SetComposition(testComposition())
	assert.Equal(t, Playing, c.State())
	assert.InDelta(t, 30.0, c.Frame(), 1e-9)
}

func TestPendingProgress(t *testing.T) {
	c := NewController(DefaultOptions())
	c.SetProgress(0.25)
	assert.Equal(t, 0.25, c.Progress())

	c.SetComposition(testComposition())
	assert.Equal(t, 15.0, c.Frame())
}

func TestRepeatSettings(t *testing.T) {
	c := NewController(DefaultOptions())
	assert.ErrorIs(t, c.SetRepeatCount(-2), shared.ErrInvalidArgument)
	assert.ErrorIs(t, c.SetRepeatMode(RepeatMode(9)), shared.ErrInvalidArgument)
	require.NoError(t, c.SetRepeatMode(Reverse))
	assert.Equal(t, Reverse, c.RepeatMode())

	c.SetSpeed(2)
	c.ReverseSpeed()
	assert.Equal(t, -2.0, c.Speed())
}

func TestRemoveListener(t *testing.T) {
	c := loaded(DefaultOptions())
	calls := 0
	id := c.AddListener(func(Event) { calls++ })
	c.Play()
	c.RemoveListener(id)
	c.Pause()
	assert.Equal(t, 1, calls)
}

func TestParseRepeatMode(t *testing.T) {
	m, err := ParseRepeatMode("Reverse")
	require.NoError(t, err)
	assert.Equal(t, Reverse, m)

	_, err = ParseRepeatMode("bounce")
	assert.ErrorIs(t, err, shared.ErrInvalidArgument)
}
