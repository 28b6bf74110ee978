package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/samse/lottiekit/internal/composition"
	"github.com/samse/lottiekit/internal/dispatch"
	"github.com/samse/lottiekit/internal/playback"
	"github.com/samse/lottiekit/internal/render"
	"github.com/samse/lottiekit/internal/shared"
	"github.com/samse/lottiekit/internal/view"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	LoadingView ViewState = iota
	PlayerView
	MarkerView
)

// speedSteps are the rates cycled by the faster and slower keys.
var speedSteps = []float64{0.25, 0.5, 1, 1.5, 2, 4}

// renderModes is the cycle order of the render mode key.
var renderModes = []render.Mode{render.Automatic, render.Hardware, render.Software}

// ModelOpts configures a [Model].
type ModelOpts struct {
	Source   string
	View     *view.AnimationView
	Loop     *dispatch.Loop
	Interval time.Duration
	Logger   *log.Logger
}

// Model represents the TUI application state.
type Model struct {
	ctx      context.Context
	state    ViewState
	source   string
	anim     *view.AnimationView
	loop     *dispatch.Loop
	interval time.Duration
	lastTick time.Time
	logger   *log.Logger

	visible  bool
	attached bool
	status   string
	err      error

	width      int
	height     int
	markerList list.Model
	bar        progress.Model
	help       help.Model
	keys       keyMap
}

// NewModel creates a player for opts.Source. The view must post its task results to
// opts.Loop, which the model drains on every tick.
func NewModel(ctx context.Context, opts ModelOpts) *Model {
	if opts.Interval <= 0 {
		opts.Interval = 16 * time.Millisecond
	}

	m := &Model{
		ctx:      ctx,
		state:    LoadingView,
		source:   opts.Source,
		anim:     opts.View,
		loop:     opts.Loop,
		interval: opts.Interval,
		logger:   shared.WithLogger(opts.Logger, "component", "ui"),
		visible:  true,
		attached: true,
		bar:      progress.New(progress.WithGradient(barFrom, barTo), progress.WithoutPercentage()),
		help:     help.New(),
		keys:     newKeyMap(),
	}
	m.markerList = list.New(nil, list.NewDefaultDelegate(), 0, 0)
	m.markerList.Title = "Markers"
	m.markerList.SetShowHelp(false)

	m.anim.AddOnCompositionLoaded(func(c *composition.Composition) { m.handle(loadedMsg(c)) })
	m.anim.SetFailureListener(func(err error) { m.handle(failedMsg(err)) })
	return m
}

// Init starts loading the source and the frame clock.
func (m *Model) Init() tea.Cmd {
	src := m.source
	return tea.Batch(
		func() tea.Msg { return loadMsg(src) },
		m.tick(),
	)
}

func (m *Model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bar.Width = max(msg.Width-4, 10)
		m.markerList.SetSize(msg.Width-4, msg.Height-6)
		return m, nil

	case tea.KeyMsg:
		switch m.state {
		case MarkerView:
			return m.handleMarkerKeys(msg)
		default:
			return m.handlePlayerKeys(msg)
		}

	case Msg:
		return m, m.handle(msg)
	}

	return m, nil
}

// handle applies a model message; it runs on the Update goroutine only.
func (m *Model) handle(msg Msg) tea.Cmd {
	switch msg.kind {
	case MsgLoad:
		if err := m.anim.SetAnimation(msg.data.(string)); err != nil {
			m.err = err
			return tea.Quit
		}
	case MsgTick:
		if m.ctx.Err() != nil {
			return tea.Quit
		}
		at := msg.data.(time.Time)
		m.loop.Drain()
		if !m.lastTick.IsZero() {
			m.anim.Tick(at.Sub(m.lastTick))
		}
		m.lastTick = at
		return m.tick()
	case MsgLoaded:
		c := msg.data.(*composition.Composition)
		m.state = PlayerView
		m.err = nil
		m.status = fmt.Sprintf("loaded %s", c.Name)
		m.markerList.SetItems(markerItems(c))
		m.logger.Info("composition loaded", "name", c.Name, "frames", c.DurationFrames())
	case MsgFailed:
		m.err = msg.data.(error)
		m.logger.Error("load failed", "error", m.err)
	}
	return nil
}

func (m *Model) handlePlayerKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	p := m.anim.Player()

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.play):
		if p.WillAnimate() {
			m.anim.Pause()
			m.status = "paused"
		} else {
			m.anim.Play()
			m.status = "playing"
		}
	case key.Matches(msg, m.keys.cancel):
		m.anim.Cancel()
		m.status = "cancelled"
	case key.Matches(msg, m.keys.visibility):
		m.visible = !m.visible
		m.anim.OnVisibilityChanged(m.visible)
		m.status = "host " + visibleLabel(m.visible)
	case key.Matches(msg, m.keys.attach):
		m.attached = !m.attached
		if m.attached {
			m.anim.OnAttached()
			m.status = "attached"
		} else {
			m.anim.OnDetached()
			m.status = "detached"
		}
	case key.Matches(msg, m.keys.reverse):
		p.ReverseSpeed()
		m.status = fmt.Sprintf("speed %.2fx", p.Speed())
	case key.Matches(msg, m.keys.faster):
		p.SetSpeed(stepSpeed(p.Speed(), 1))
		m.status = fmt.Sprintf("speed %.2fx", p.Speed())
	case key.Matches(msg, m.keys.slower):
		p.SetSpeed(stepSpeed(p.Speed(), -1))
		m.status = fmt.Sprintf("speed %.2fx", p.Speed())
	case key.Matches(msg, m.keys.loop):
		p.Loop(p.RepeatCount() != playback.Infinite)
		m.status = "loop " + onOff(p.RepeatCount() == playback.Infinite)
	case key.Matches(msg, m.keys.clearRange):
		if err := p.SetMinAndMaxProgress(0, 1); err != nil {
			m.status = err.Error()
		} else {
			m.status = "full range"
		}
	case key.Matches(msg, m.keys.renderMode):
		m.anim.SetRenderMode(nextMode(m.anim.RequestedRenderMode()))
		m.status = fmt.Sprintf("render mode %s → %s", m.anim.RequestedRenderMode(), m.anim.RenderMode())
	case key.Matches(msg, m.keys.markers):
		if len(m.markerList.Items()) == 0 {
			m.status = "no markers"
			return m, nil
		}
		m.state = MarkerView
	}
	return m, nil
}

func (m *Model) handleMarkerKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		m.state = PlayerView
		return m, nil
	case key.Matches(msg, m.keys.enter):
		if item, ok := m.markerList.SelectedItem().(markerItem); ok {
			if err := m.anim.Player().SetMinAndMaxFrameByMarker(item.marker.Name); err != nil {
				m.status = err.Error()
			} else {
				m.status = "range " + item.marker.Name
			}
		}
		m.state = PlayerView
		return m, nil
	}

	var cmd tea.Cmd
	m.markerList, cmd = m.markerList.Update(msg)
	return m, cmd
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.state {
	case LoadingView:
		return m.renderLoading()
	case MarkerView:
		return fmt.Sprintf("%s\n\n%s", m.markerList.View(), m.help.ShortHelpView([]key.Binding{m.keys.enter, m.keys.back, m.keys.quit}))
	default:
		return m.renderPlayer()
	}
}

func (m *Model) renderLoading() string {
	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress q to quit", m.err))
	}
	return fmt.Sprintf("%s\n\n%s", styles.title.Render("Loading "+m.source), styles.help.Render("q to quit"))
}

func (m *Model) renderPlayer() string {
	c := m.anim.Composition()
	s := m.anim.Player().Snapshot()

	var b strings.Builder
	b.WriteString(styles.title.Render(fmt.Sprintf("%s  %dx%d", c.Name, c.Width, c.Height)))
	b.WriteString("\n")

	row := func(label, value string) {
		fmt.Fprintf(&b, "%s%s\n", styles.label.Render(label), value)
	}
	row("state", stateLabel(s))
	row("frame", fmt.Sprintf("%s / %s-%s", frame(s.CurrentFrame), frame(s.MinFrame), frame(s.MaxFrame)))
	row("speed", fmt.Sprintf("%.2fx", s.Speed))
	row("repeat", repeatLabel(s))
	row("render", fmt.Sprintf("%s (requested %s)", styles.mode(m.anim.RenderMode()), m.anim.RequestedRenderMode()))
	row("host", fmt.Sprintf("%s, %s", visibleLabel(m.visible), attachedLabel(m.attached)))

	b.WriteString("\n")
	b.WriteString(m.bar.ViewAs(s.Progress))
	b.WriteString("\n\n")

	if m.err != nil {
		b.WriteString(styles.err.Render(fmt.Sprintf("last error: %v", m.err)))
		b.WriteString("\n")
	} else if m.status != "" {
		b.WriteString(styles.warn.Render(m.status))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.help.FullHelpView(m.keys.FullHelp()))
	return b.String()
}

func stateLabel(s playback.PlaybackState) string {
	if s.IsPlaying {
		return styles.ok.Render(s.State.String())
	}
	return s.State.String()
}

func repeatLabel(s playback.PlaybackState) string {
	switch s.RepeatCount {
	case playback.Infinite:
		return fmt.Sprintf("%s forever", s.RepeatMode)
	case 0:
		return "once"
	default:
		return fmt.Sprintf("%s x%d", s.RepeatMode, s.RepeatCount)
	}
}

func stepSpeed(current float64, dir int) float64 {
	sign := 1.0
	if current < 0 {
		sign, current = -1, -current
	}
	i := 0
	for i < len(speedSteps)-1 && speedSteps[i] < current {
		i++
	}
	i = min(max(i+dir, 0), len(speedSteps)-1)
	return sign * speedSteps[i]
}

func nextMode(m render.Mode) render.Mode {
	for i, mode := range renderModes {
		if mode == m {
			return renderModes[(i+1)%len(renderModes)]
		}
	}
	return render.Automatic
}

func visibleLabel(v bool) string {
	if v {
		return "visible"
	}
	return "hidden"
}

func attachedLabel(a bool) string {
	if a {
		return "attached"
	}
	return "detached"
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
