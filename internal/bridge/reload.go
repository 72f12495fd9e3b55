package bridge

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"synthfilter/internal/engine"
	"synthfilter/internal/format"
	"synthfilter/internal/logging"
	"synthfilter/internal/services"
	"synthfilter/internal/timeline"
)

// NotAClipMessage is rendered when a script returns something other than a clip.
const NotAClipMessage = "Error: Script does not return a clip."

// OutcomeKind classifies the result of importing the user script.
type OutcomeKind int

const (
	OutcomeDefined OutcomeKind = iota
	OutcomeDisconnected
	OutcomeNotAClip
	OutcomeScriptError
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeDefined:
		return "defined"
	case OutcomeDisconnected:
		return "disconnected"
	case OutcomeNotAClip:
		return "not_a_clip"
	case OutcomeScriptError:
		return "script_error"
	default:
		return "outcome(" + strconv.Itoa(int(k)) + ")"
	}
}

// ImportOutcome is the classified result of a script import.
type ImportOutcome struct {
	Kind OutcomeKind
	// Clip is set for OutcomeDefined.
	Clip engine.Clip
	// Message is set for OutcomeNotAClip and OutcomeScriptError.
	Message string
}

// ClassifyImport turns the raw result of an engine invocation into an
// ImportOutcome. Errors other than *engine.ScriptError are returned as-is.
func ClassifyImport(value engine.Value, err error) (ImportOutcome, error) {
	if err != nil {
		var scriptErr *engine.ScriptError
		if errors.As(err, &scriptErr) {
			return ImportOutcome{Kind: OutcomeScriptError, Message: scriptErr.Message}, nil
		}
		return ImportOutcome{}, err
	}
	switch {
	case !value.Defined():
		return ImportOutcome{Kind: OutcomeDisconnected}, nil
	case !value.IsClip():
		return ImportOutcome{Kind: OutcomeNotAClip, Message: NotAClipMessage}, nil
	default:
		return ImportOutcome{Kind: OutcomeDefined, Clip: value.AsClip()}, nil
	}
}

// FallbackScript returns the script that captions message over the source
// clip. With more than one output thread the result is prefetched with
// exactly that many threads so concurrent frame pulls keep working.
func FallbackScript(message string, threads int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "last = Subtitle(%s(), ReplaceStr(%s, \"\\n\", \"\\\\n\"), lsp=0)\n",
		SourceFunctionName, quoteScriptString(message))
	if threads > 1 {
		fmt.Fprintf(&b, "last = Prefetch(last, %d)\n", threads)
	}
	return b.String()
}

// quoteScriptString renders s as a double-quoted literal using only the
// escapes Go and Starlark share.
func quoteScriptString(s string) string {
	return strconv.Quote(strings.ToValidUTF8(s, "\uFFFD"))
}

// Reload runs one reload cycle against mt, the new upstream format. A
// script that disconnects returns ErrDisconnected unless ignoreDisconnect
// is set, in which case the source passes through unchanged. Script errors
// are rendered by the fallback script and do not produce an error.
func (h *Handle) Reload(mt format.MediaType, ignoreDisconnect bool) error {
	h.mu.Lock()
	prev, err := h.reloadLocked(mt, ignoreDisconnect)
	h.mu.Unlock()
	// The previous clip may own engine workers; they are released without
	// holding the handle lock so status readers never wait on them.
	if prev != nil {
		if releaseErr := prev.clip.Release(); releaseErr != nil {
			h.logger.Warn("release previous script clip", logging.Error(releaseErr))
		}
	}
	return err
}

func (h *Handle) reloadLocked(mt format.MediaType, ignoreDisconnect bool) (*Snapshot, error) {
	if h.closed {
		return nil, ErrClosed
	}
	logger := h.logger.With(logging.String(logging.FieldOperation, "reload"))

	// Start.
	h.setErrorString("")
	sourceFormat, err := format.VideoFormatOf(mt)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "bridge", "reload", "source format", err)
	}
	drain, err := h.env.NewVideoFrame(sourceFormat.Info)
	if err != nil {
		return nil, services.Wrap(services.ErrEngine, "bridge", "reload", "allocate drain frame", fmt.Errorf("%w: %w", ErrReload, err))
	}
	h.source.setFormat(sourceFormat.Info, drain)
	logger.Debug("source format", logging.String("format", sourceFormat.Name), logging.String("source", sourceFormat.Info.String()))

	// Import.
	outcome := ImportOutcome{Kind: OutcomeDisconnected}
	scriptPath := h.ScriptPath()
	if scriptPath != "" {
		value, invokeErr := h.env.Invoke("Import",
			[]engine.Value{engine.String(scriptPath), engine.Bool(true)},
			[]string{"", "utf8"})
		outcome, err = ClassifyImport(value, invokeErr)
		if err != nil {
			logging.ErrorWithContext(logger, "script import failed", "reload_failed",
				logging.Script(scriptPath), logging.Error(err))
			return nil, services.Wrap(services.ErrEngine, "bridge", "reload", "import "+scriptPath, fmt.Errorf("%w: %w", ErrReload, err))
		}
	}

	// Classify.
	var clip engine.Clip
	switch outcome.Kind {
	case OutcomeDefined:
		clip = outcome.Clip
	case OutcomeDisconnected:
		if !ignoreDisconnect {
			logger.Info("script disconnected", logging.Script(scriptPath))
			return nil, ErrDisconnected
		}
		clip = h.source
	case OutcomeNotAClip, OutcomeScriptError:
		h.setErrorString(outcome.Message)
	}

	// Fallback.
	fallback := clip == nil
	if fallback {
		logging.WarnWithContext(logger, "script failed; rendering error into stream", "script_error",
			logging.Script(scriptPath),
			logging.String("outcome", outcome.Kind.String()),
			logging.String("error", outcome.Message),
			logging.String(logging.FieldErrorHint, "fix the script and reload"),
		)
		value, evalErr := h.env.Invoke("Eval", []engine.Value{engine.String(FallbackScript(outcome.Message, h.threads))}, nil)
		if evalErr == nil && !value.IsClip() {
			evalErr = errors.New("fallback script did not return a clip")
		}
		if evalErr != nil {
			logging.ErrorWithContext(logger, "fallback script failed", "reload_failed", logging.Error(evalErr))
			return nil, services.Wrap(services.ErrScript, "bridge", "reload", "fallback script", fmt.Errorf("%w: %w", ErrReload, evalErr))
		}
		clip = value.AsClip()
	}

	// Commit.
	scriptInfo := clip.VideoInfo()
	next := &Snapshot{
		Source:   sourceFormat.Info,
		Script:   scriptInfo,
		Fallback: fallback,
		Figures: timeline.Reconcile(
			timeline.Rate{Num: sourceFormat.Info.FPSNumerator, Den: sourceFormat.Info.FPSDenominator},
			timeline.Rate{Num: scriptInfo.FPSNumerator, Den: scriptInfo.FPSDenominator},
		),
		clip: engine.NewClipRef(clip),
	}
	prev := h.snapshot.Swap(next)
	logger.Info("script committed",
		logging.Script(scriptPath),
		logging.String("outcome", outcome.Kind.String()),
		logging.Bool("fallback", fallback),
		logging.String("script_format", scriptInfo.String()),
		logging.StreamTime("source_frame_duration", next.Figures.SourceAvgFrameDuration),
		logging.StreamTime("script_frame_duration", next.Figures.ScriptAvgFrameDuration),
	)
	return prev, nil
}
