// Package view ties source resolution, playback and render selection together for one
// host surface.
//
// An [AnimationView] belongs to the presentation context. Task results arrive on worker
// goroutines and are posted through the view's [dispatch.Dispatcher] before they touch any
// state, so every method must be called from the goroutine draining that dispatcher.
package view

import (
	"fmt"
	"image"
	"time"

	"github.com/charmbracelet/log"
	"github.com/samse/lottiekit/internal/composition"
	"github.com/samse/lottiekit/internal/dispatch"
	"github.com/samse/lottiekit/internal/overrides"
	"github.com/samse/lottiekit/internal/playback"
	"github.com/samse/lottiekit/internal/render"
	"github.com/samse/lottiekit/internal/shared"
	"github.com/samse/lottiekit/internal/source"
	"github.com/samse/lottiekit/internal/task"
)

// Options configures an [AnimationView].
type Options struct {
	Resolver   *source.Resolver
	Dispatcher dispatch.Dispatcher
	Surface    render.Surface
	Renderer   render.Renderer
	Platform   render.Platform
	RenderMode render.Mode
	Playback   playback.Options
	Logger     *log.Logger
}

// LoadedListenerID identifies an on-composition-loaded listener.
type LoadedListenerID uint64

type loadedListener struct {
	id LoadedListenerID
	fn func(*composition.Composition)
}

// AnimationView shows one composition at a time.
type AnimationView struct {
	resolver *source.Resolver
	dispatch dispatch.Dispatcher
	surface  render.Surface
	renderer render.Renderer
	platform render.Platform
	logger   *log.Logger

	player    *playback.Controller
	overrides *overrides.Registry

	requestedMode render.Mode
	appliedMode   render.Mode
	modeApplied   bool

	task       *source.Task
	successID  task.ListenerID
	failureID  task.ListenerID
	generation uint64
	lastErr    error

	animationName     string
	animationResID    int
	imageAssetsFolder string

	failureListener func(error)
	loaded          []loadedListener
	nextLoadedID    LoadedListenerID
}

// New creates a view. Dispatcher defaults to [dispatch.Immediate].
func New(opts Options) *AnimationView {
	if opts.Dispatcher == nil {
		opts.Dispatcher = dispatch.Immediate
	}

	v := &AnimationView{
		resolver:      opts.Resolver,
		dispatch:      opts.Dispatcher,
		surface:       opts.Surface,
		renderer:      opts.Renderer,
		platform:      opts.Platform,
		logger:        shared.WithLogger(opts.Logger, "component", "view"),
		player:        playback.NewController(opts.Playback),
		overrides:     overrides.NewRegistry(),
		requestedMode: opts.RenderMode,
	}
	v.updateRenderMode()
	return v
}

// Player exposes the playback controller for range, speed and repeat settings.
func (v *AnimationView) Player() *playback.Controller { return v.player }

// Composition returns the composition on screen, or nil.
func (v *AnimationView) Composition() *composition.Composition { return v.player.Composition() }

// LastError is the most recent load failure since a composition was last set.
func (v *AnimationView) LastError() error { return v.lastErr }

// Loading reports whether a source is still resolving.
func (v *AnimationView) Loading() bool { return v.task != nil }

// SetAnimationResource loads a bundled composition.
func (v *AnimationView) SetAnimationResource(id int) {
	v.animationResID, v.animationName = id, ""
	v.setCompositionTask(v.resolver.FromResource(id), nil)
}

// SetAnimationAsset loads a composition from the asset filesystem.
func (v *AnimationView) SetAnimationAsset(name string) {
	v.animationName, v.animationResID = name, 0
	v.setCompositionTask(v.resolver.FromAsset(name), nil)
}

// SetAnimationFromJSON parses an inline document; cacheKey may be empty.
func (v *AnimationView) SetAnimationFromJSON(payload, cacheKey string) {
	v.forgetSource()
	v.setCompositionTask(v.resolver.FromJSON(payload, cacheKey), nil)
}

// SetAnimationFromURL downloads, caches and loads a remote document.
func (v *AnimationView) SetAnimationFromURL(url string) {
	v.forgetSource()
	v.setCompositionTask(v.resolver.FromURL(url), nil)
}

// SetAnimationFromFile loads a local file.
func (v *AnimationView) SetAnimationFromFile(path string) {
	v.forgetSource()
	v.setCompositionTask(v.resolver.FromFile(path), nil)
}

// SetAnimationFromLocal loads localPath, downloading it from remoteURL first when absent.
// cb, if set, runs on the presentation context once the load settles.
func (v *AnimationView) SetAnimationFromLocal(localPath, remoteURL string, cb func(ok bool, err error)) {
	v.forgetSource()
	v.setCompositionTask(v.resolver.FromLocal(localPath, remoteURL), cb)
}

// SetAnimation parses a source string and loads it.
func (v *AnimationView) SetAnimation(s string) error {
	src, err := source.Parse(s)
	if err != nil {
		return err
	}
	switch src.Kind {
	case source.KindResource:
		v.SetAnimationResource(src.ResID)
	case source.KindAsset:
		v.SetAnimationAsset(src.Value)
	default:
		v.forgetSource()
		v.setCompositionTask(v.resolver.Load(src), nil)
	}
	return nil
}

func (v *AnimationView) forgetSource() {
	v.animationName, v.animationResID = "", 0
}

// setCompositionTask supersedes any outstanding task. Listeners on the old task are removed
// first, and the generation check drops a result that was already posted for it.
func (v *AnimationView) setCompositionTask(t *source.Task, done func(bool, error)) {
	v.cancelTask()

	v.generation++
	gen := v.generation
	v.task = t

	v.successID = t.AddListener(func(c *composition.Composition) {
		v.dispatch.Post(func() {
			if gen != v.generation {
				return
			}
			v.task = nil
			v.applyComposition(c)
			if done != nil {
				done(true, nil)
			}
		})
	})
	v.failureID = t.AddFailureListener(func(err error) {
		v.dispatch.Post(func() {
			if gen != v.generation {
				return
			}
			v.task = nil
			v.fail(err)
			if done != nil {
				done(false, err)
			}
		})
	})
}

func (v *AnimationView) cancelTask() {
	if v.task == nil {
		return
	}
	v.task.RemoveListener(v.successID)
	v.task.RemoveFailureListener(v.failureID)
	v.task = nil
}

// fail keeps the current composition; the error goes to the failure listener or the log.
func (v *AnimationView) fail(err error) {
	v.lastErr = err
	if v.failureListener != nil {
		v.failureListener(err)
		return
	}
	v.logger.Error("unable to load composition", "error", err)
}

// SetFailureListener replaces the default of logging load failures.
func (v *AnimationView) SetFailureListener(fn func(error)) { v.failureListener = fn }

// SetComposition shows c directly, superseding any outstanding load.
func (v *AnimationView) SetComposition(c *composition.Composition) bool {
	v.cancelTask()
	v.generation++
	if c == nil {
		v.ClearComposition()
		return true
	}
	return v.applyComposition(c)
}

// ClearComposition removes the composition and any outstanding load.
func (v *AnimationView) ClearComposition() {
	v.cancelTask()
	v.generation++
	v.player.ClearComposition()
	v.updateRenderMode()
}

func (v *AnimationView) applyComposition(c *composition.Composition) bool {
	if !v.player.SetComposition(c) {
		return false
	}
	v.lastErr = nil
	v.updateRenderMode()

	for _, l := range append([]loadedListener(nil), v.loaded...) {
		l.fn(c)
	}
	return true
}

// AddOnCompositionLoaded registers fn for every composition change. It runs at once when a
// composition is already set.
func (v *AnimationView) AddOnCompositionLoaded(fn func(*composition.Composition)) LoadedListenerID {
	v.nextLoadedID++
	v.loaded = append(v.loaded, loadedListener{id: v.nextLoadedID, fn: fn})
	if c := v.player.Composition(); c != nil {
		fn(c)
	}
	return v.nextLoadedID
}

// RemoveOnCompositionLoaded detaches a listener.
func (v *AnimationView) RemoveOnCompositionLoaded(id LoadedListenerID) {
	for i, l := range v.loaded {
		if l.id == id {
			v.loaded = append(v.loaded[:i], v.loaded[i+1:]...)
			return
		}
	}
}

// Play starts playback.
func (v *AnimationView) Play() {
	v.player.Play()
	v.updateRenderMode()
}

// Pause stops playback and forgets pending play requests.
func (v *AnimationView) Pause() {
	v.player.Pause()
	v.updateRenderMode()
}

// Cancel stops playback.
func (v *AnimationView) Cancel() {
	v.player.Cancel()
	v.updateRenderMode()
}

// Tick advances the frame clock.
func (v *AnimationView) Tick(dt time.Duration) { v.player.Tick(dt) }

// OnVisibilityChanged forwards the host's visibility.
func (v *AnimationView) OnVisibilityChanged(visible bool) { v.player.OnVisibilityChanged(visible) }

// OnAttached forwards the host being attached.
func (v *AnimationView) OnAttached() { v.player.OnAttached() }

// OnDetached forwards the host being detached.
func (v *AnimationView) OnDetached() { v.player.OnDetached() }

// SetRenderMode requests a strategy; [render.Automatic] lets the composition decide.
func (v *AnimationView) SetRenderMode(m render.Mode) {
	v.requestedMode = m
	v.updateRenderMode()
}

// RenderMode is the strategy currently applied to the surface.
func (v *AnimationView) RenderMode() render.Mode { return v.appliedMode }

// RequestedRenderMode is the strategy last passed to SetRenderMode.
func (v *AnimationView) RequestedRenderMode() render.Mode { return v.requestedMode }

// updateRenderMode touches the surface only when the selection changes.
func (v *AnimationView) updateRenderMode() {
	mode := render.Select(v.requestedMode, render.CharacteristicsOf(v.player.Composition()), v.platform)
	if v.modeApplied && mode == v.appliedMode {
		return
	}
	v.appliedMode, v.modeApplied = mode, true
	if v.surface != nil {
		v.surface.SetMode(mode)
	}
	v.logger.Debug("render mode selected", "mode", mode)
}

// AddValueCallback overrides property on every layer path addresses.
func (v *AnimationView) AddValueCallback(path overrides.KeyPath, property overrides.Property, cb overrides.Callback) (overrides.ID, error) {
	return v.overrides.Add(path, property, cb)
}

// AddValue overrides property with a constant.
func (v *AnimationView) AddValue(path overrides.KeyPath, property overrides.Property, value any) (overrides.ID, error) {
	return v.overrides.AddValue(path, property, value)
}

// RemoveValue drops an override.
func (v *AnimationView) RemoveValue(id overrides.ID) bool { return v.overrides.Remove(id) }

// ResolveKeyPath lists the layers path addresses in the current composition.
func (v *AnimationView) ResolveKeyPath(path overrides.KeyPath) []overrides.KeyPath {
	return path.Resolve(v.player.Composition())
}

// FrameValues evaluates every override at the current frame.
func (v *AnimationView) FrameValues() map[string]map[overrides.Property]any {
	return v.overrides.Values(v.player.Composition(), v.player.Frame())
}

// Draw renders the current frame.
func (v *AnimationView) Draw() (image.Image, error) {
	if v.renderer == nil {
		return nil, fmt.Errorf("%w: no renderer", shared.ErrMissingConfig)
	}
	c := v.player.Composition()
	if c == nil {
		return nil, fmt.Errorf("%w: no composition to draw", shared.ErrInvalidArgument)
	}
	return v.renderer.RenderFrame(c, v.player.Frame())
}

// SetImageAssetsFolder records where image assets live relative to the asset filesystem.
func (v *AnimationView) SetImageAssetsFolder(dir string) { v.imageAssetsFolder = dir }

// ImageAssetsFolder returns the image assets folder.
func (v *AnimationView) ImageAssetsFolder() string { return v.imageAssetsFolder }

// SaveState captures the source and playback position.
func (v *AnimationView) SaveState() SavedState {
	return SavedState{
		AnimationName:     v.animationName,
		AnimationResID:    v.animationResID,
		Progress:          v.player.Progress(),
		IsAnimating:       v.player.WillAnimate(),
		ImageAssetsFolder: v.imageAssetsFolder,
		RepeatMode:        v.player.RepeatMode(),
		RepeatCount:       v.player.RepeatCount(),
	}
}

// RestoreState reloads the saved source and playback position.
func (v *AnimationView) RestoreState(s SavedState) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if s.RepeatMode != 0 {
		if err := v.player.SetRepeatMode(s.RepeatMode); err != nil {
			return err
		}
	}
	if err := v.player.SetRepeatCount(s.RepeatCount); err != nil {
		return err
	}

	v.imageAssetsFolder = s.ImageAssetsFolder
	switch {
	case s.AnimationName != "":
		v.SetAnimationAsset(s.AnimationName)
	case s.AnimationResID != 0:
		v.SetAnimationResource(s.AnimationResID)
	}
	v.player.SetProgress(s.Progress)
	if s.IsAnimating {
		v.Play()
	}
	return nil
}
