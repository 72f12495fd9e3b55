package bridge

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"synthfilter/internal/engine"
	"synthfilter/internal/format"
	"synthfilter/internal/logging"
	"synthfilter/internal/services"
	"synthfilter/internal/timeline"
)

const (
	// SourceFunctionName returns the placeholder source clip to scripts.
	SourceFunctionName = "FilterSource"
	// DisconnectFunctionName returns the disconnect sentinel to scripts.
	DisconnectFunctionName = "FilterDisconnect"

	unknownVersion = "unknown engine version"
)

// Options configures NewHandle.
type Options struct {
	// Module is a registered engine name or the path of an engine plugin.
	Module        string
	ScriptPath    string
	OutputThreads int
	Logger        *slog.Logger
	Dialog        Dialog
	// Language selects the dialog language; empty uses the environment.
	Language string
}

// Handle owns one engine environment and the state committed by reloads.
//
// Reload, StopScript and Close are serialized internally. Accessors are
// safe to call from any goroutine; clip references obtained through
// ScriptClip stay valid across later reloads until released.
type Handle struct {
	logger    *slog.Logger
	sessionID string
	threads   int

	module  engine.Module
	env     engine.Environment
	link    engine.Linkage
	version string

	source    *SourceClip
	sourceRef *engine.ClipRef

	mu         sync.Mutex
	closed     bool
	scriptPath atomic.Pointer[string]
	errorText  atomic.Pointer[string]
	snapshot   atomic.Pointer[Snapshot]
}

// NewHandle loads the engine module and prepares an environment. Failures
// are logged, shown through the dialog, and returned wrapping ErrFatal.
func NewHandle(opts Options) (*Handle, error) {
	logger, sessionID := logging.WithSession(logging.NewComponentLogger(opts.Logger, "bridge"), "")
	h := &Handle{
		logger:    logger,
		sessionID: sessionID,
		threads:   opts.OutputThreads,
		version:   unknownVersion,
		source:    newSourceClip(),
	}
	h.sourceRef = engine.NewClipRef(h.source)
	h.setScriptPath(opts.ScriptPath)

	lang := opts.Language
	if lang == "" {
		lang = LanguageFromEnv()
	}
	dialog := opts.Dialog
	if dialog == nil {
		dialog = StderrDialog{}
	}
	fatal := func(op, key string, cause error, args ...any) error {
		text := LocalizedMessage(lang, key, args...)
		logging.ErrorWithContext(h.logger, text, "engine_load_failed",
			logging.String(logging.FieldOperation, op),
			logging.String(logging.FieldErrorHint, "check the engine setting and reinstall the engine module"),
			logging.Error(cause),
		)
		dialog.ShowError(LocalizedMessage(lang, MsgDialogTitle), text)
		_ = h.teardown()
		return services.Wrap(services.ErrEngine, "bridge", op, text, fmt.Errorf("%w: %w", ErrFatal, cause))
	}

	module, err := engine.Open(opts.Module)
	if err != nil {
		if errors.Is(err, engine.ErrEntryPointNotFound) {
			return nil, fatal("open module", MsgEntryPoint, err, engine.EntryPointName, opts.Module)
		}
		return nil, fatal("open module", MsgModuleLoad, err, opts.Module)
	}
	h.module = module

	env, err := module.CreateEnvironment(engine.MinimumInterfaceVersion)
	if err != nil {
		return nil, fatal("create environment", MsgCreateEnvironment, err, err)
	}
	if env == nil {
		return nil, fatal("create environment", MsgNilEnvironment, engine.ErrNilEnvironment, engine.EntryPointName)
	}
	h.env = env
	if linker, ok := env.(engine.Linker); ok {
		h.link = linker.Link()
	}

	if v, err := env.Invoke("Eval", []engine.Value{engine.String("VersionString()")}, nil); err == nil && v.Kind() == engine.KindString {
		h.version = v.AsString()
	} else if err != nil {
		h.logger.Warn("engine version unavailable", logging.Error(err))
	}

	sourceFn := func(engine.Args) (engine.Value, error) {
		return engine.ClipValue(h.source), nil
	}
	disconnectFn := func(engine.Args) (engine.Value, error) {
		return engine.Void(), nil
	}
	if err := env.AddFunction(SourceFunctionName, sourceFn); err != nil {
		return nil, fatal("register functions", MsgRegisterFunction, err, SourceFunctionName, err)
	}
	if err := env.AddFunction(DisconnectFunctionName, disconnectFn); err != nil {
		return nil, fatal("register functions", MsgRegisterFunction, err, DisconnectFunctionName, err)
	}

	h.logger.Info("engine loaded",
		logging.String("module", module.Name()),
		logging.String("engine_version", h.version),
		logging.Script(h.ScriptPath()),
		logging.Int("output_threads", h.threads),
	)
	return h, nil
}

// Version returns the engine's version string.
func (h *Handle) Version() string { return h.version }

// SessionID identifies this handle in log records.
func (h *Handle) SessionID() string { return h.sessionID }

// Logger returns the handle's session logger.
func (h *Handle) Logger() *slog.Logger { return h.logger }

// OutputThreads is the worker count the fallback script prefetches for.
func (h *Handle) OutputThreads() int { return h.threads }

// ScriptPath returns the script imported by the next reload.
func (h *Handle) ScriptPath() string {
	if p := h.scriptPath.Load(); p != nil {
		return *p
	}
	return ""
}

// SetScriptPath changes the script for subsequent reloads.
func (h *Handle) SetScriptPath(path string) {
	h.setScriptPath(path)
	h.logger.Info("script path changed", logging.Script(path))
}

func (h *Handle) setScriptPath(path string) {
	h.scriptPath.Store(&path)
}

// ErrorString returns the message rendered by the fallback script of the
// latest reload, if any.
func (h *Handle) ErrorString() (string, bool) {
	p := h.errorText.Load()
	if p == nil || *p == "" {
		return "", false
	}
	return *p, true
}

func (h *Handle) setErrorString(text string) {
	h.errorText.Store(&text)
}

// Snapshot returns the latest committed state, or nil before the first
// successful reload.
func (h *Handle) Snapshot() *Snapshot {
	return h.snapshot.Load()
}

// SourceClip returns the placeholder clip scripts see as FilterSource().
func (h *Handle) SourceClip() *SourceClip { return h.source }

// SourceInfo returns the current upstream descriptor. It changes at the
// start of every reload, even one that ends disconnected.
func (h *Handle) SourceInfo() engine.VideoInfo {
	return h.source.VideoInfo()
}

// ScriptInfo returns the committed script descriptor.
func (h *Handle) ScriptInfo() engine.VideoInfo {
	if snap := h.snapshot.Load(); snap != nil {
		return snap.Script
	}
	return engine.VideoInfo{}
}

// ScriptPixelType returns the committed clip's pixel type.
func (h *Handle) ScriptPixelType() engine.PixelType {
	return h.ScriptInfo().PixelType
}

// ScriptClip acquires the committed clip. The caller must Release it.
func (h *Handle) ScriptClip() *engine.ClipRef {
	return h.snapshot.Load().Clip()
}

// DrainFrame returns the blank frame sized to the current source format.
func (h *Handle) DrainFrame() *engine.VideoFrame {
	return h.source.drainFrame()
}

// Figures returns the committed timeline figures.
func (h *Handle) Figures() timeline.Figures {
	if snap := h.snapshot.Load(); snap != nil {
		return snap.Figures
	}
	return timeline.Figures{}
}

// LinkFrameHandler routes source frame requests to handler. Passing nil
// unlinks the current handler.
func (h *Handle) LinkFrameHandler(handler FrameHandler) {
	h.source.setHandler(handler)
}

// GenerateMediaType builds the downstream descriptor for formatName from
// template using the committed script descriptor.
func (h *Handle) GenerateMediaType(formatName string, template format.MediaType) (format.MediaType, error) {
	return format.Translate(template, formatName, h.ScriptInfo())
}

// StopScript drops the committed clip. The descriptor and figures stay
// readable; ScriptClip returns nil until the next reload.
func (h *Handle) StopScript() {
	h.mu.Lock()
	snap := h.snapshot.Load()
	if snap == nil {
		h.mu.Unlock()
		return
	}
	stopped := *snap
	stopped.clip = nil
	h.snapshot.Store(&stopped)
	h.mu.Unlock()
	if err := snap.clip.Release(); err != nil {
		h.logger.Warn("release script clip", logging.Error(err))
	}
}

// Close tears the engine down. Later calls return ErrClosed.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrClosed
	}
	h.closed = true
	err := h.teardown()
	h.logger.Info("engine unloaded")
	return err
}

// teardown releases in dependency order: script clip, source clip, drain
// frame, environment, linkage, module.
func (h *Handle) teardown() error {
	var errs []error
	if snap := h.snapshot.Swap(nil); snap != nil {
		if err := snap.clip.Release(); err != nil {
			errs = append(errs, fmt.Errorf("release script clip: %w", err))
		}
	}
	h.source.setHandler(nil)
	if err := h.sourceRef.Release(); err != nil {
		errs = append(errs, fmt.Errorf("release source clip: %w", err))
	}
	h.source.releaseDrain()
	if h.env != nil {
		if err := h.env.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close environment: %w", err))
		}
		h.env = nil
	}
	if h.link != nil {
		h.link.Revoke()
		h.link = nil
	}
	if h.module != nil {
		if err := h.module.Unload(); err != nil {
			errs = append(errs, fmt.Errorf("unload module: %w", err))
		}
		h.module = nil
	}
	return errors.Join(errs...)
}
