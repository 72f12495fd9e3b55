package bridge_test

import (
	"bytes"
	"errors"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"

	"synthfilter/internal/bridge"
	"synthfilter/internal/engine"
	_ "synthfilter/internal/engine/starlarkenv"
	"synthfilter/internal/format"
	"synthfilter/internal/logging"
	"synthfilter/internal/testsupport"
)

type recordingDialog struct {
	mu     sync.Mutex
	titles []string
	texts  []string
}

func (d *recordingDialog) ShowError(title, message string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.titles = append(d.titles, title)
	d.texts = append(d.texts, message)
}

func newStarlarkHandle(t *testing.T, script string, threads int) *bridge.Handle {
	t.Helper()
	path := ""
	if script != "" {
		path = testsupport.WriteScript(t, t.TempDir(), "filter.star", script)
	}
	h, err := bridge.NewHandle(bridge.Options{
		Module:        "starlark",
		ScriptPath:    path,
		OutputThreads: threads,
		Logger:        logging.NewNop(),
		Dialog:        &recordingDialog{},
		Language:      "en",
	})
	if err != nil {
		t.Fatalf("NewHandle: %v", err)
	}
	t.Cleanup(func() { _ = h.Close() })
	return h
}

func sourceType(t *testing.T) format.MediaType {
	t.Helper()
	mt, err := format.NewMediaType("NV12", 720, 480, 400000, 16, 9)
	if err != nil {
		t.Fatalf("NewMediaType: %v", err)
	}
	return mt
}

func TestNewHandleReportsVersion(t *testing.T) {
	h := newStarlarkHandle(t, "", 1)
	if !strings.Contains(h.Version(), "Starlark") {
		t.Fatalf("unexpected version %q", h.Version())
	}
	if h.SessionID() == "" {
		t.Fatal("expected session id")
	}
	if h.Snapshot() != nil || h.ScriptClip() != nil {
		t.Fatal("expected no committed state before the first reload")
	}
}

func TestReloadEmptyScriptPassthrough(t *testing.T) {
	h := newStarlarkHandle(t, "", 1)
	if err := h.Reload(sourceType(t), true); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if h.ScriptInfo() != h.SourceInfo() {
		t.Fatalf("expected passthrough descriptor, got %v want %v", h.ScriptInfo(), h.SourceInfo())
	}
	if _, ok := h.ErrorString(); ok {
		t.Fatal("expected no error state")
	}
	figures := h.Figures()
	if figures.SourceAvgFrameDuration != 400000 || figures.ScriptAvgFrameDuration != 400000 {
		t.Fatalf("unexpected figures %+v", figures)
	}
	ref := h.ScriptClip()
	if ref == nil {
		t.Fatal("expected committed clip")
	}
	defer ref.Release()
	frame, err := ref.Clip().GetFrame(0)
	if err != nil {
		t.Fatalf("GetFrame: %v", err)
	}
	if frame != h.DrainFrame() {
		t.Fatal("expected unlinked source to serve the drain frame")
	}
}

func TestReloadEmptyScriptWithoutOverrideDisconnects(t *testing.T) {
	h := newStarlarkHandle(t, "", 1)
	err := h.Reload(sourceType(t), false)
	if !errors.Is(err, bridge.ErrDisconnected) {
		t.Fatalf("expected ErrDisconnected, got %v", err)
	}
	if h.Snapshot() != nil {
		t.Fatal("disconnect on first connection must leave state unset")
	}
	if h.DrainFrame() == nil || h.SourceInfo().Width != 720 {
		t.Fatal("expected source descriptor and drain frame to be refreshed")
	}
}

func TestReloadDisconnectKeepsPreviousSnapshot(t *testing.T) {
	h := newStarlarkHandle(t, "AssumeFPS(FilterSource(), 50)\n", 1)
	if err := h.Reload(sourceType(t), false); err != nil {
		t.Fatalf("first reload: %v", err)
	}
	before := h.Snapshot()
	held := h.ScriptClip()
	defer held.Release()

	disconnect := testsupport.WriteScript(t, t.TempDir(), "off.star", "FilterDisconnect()\n")
	h.SetScriptPath(disconnect)
	other, err := format.NewMediaType("YV24", 1280, 720, 333667, 16, 9)
	if err != nil {
		t.Fatalf("NewMediaType: %v", err)
	}
	if err := h.Reload(other, false); !errors.Is(err, bridge.ErrDisconnected) {
		t.Fatalf("expected ErrDisconnected, got %v", err)
	}
	if h.Snapshot() != before {
		t.Fatal("snapshot replaced on disconnect")
	}
	if h.Figures() != before.Figures || h.ScriptInfo() != before.Script {
		t.Fatal("committed figures or descriptor changed on disconnect")
	}
	if held.Clip() == nil {
		t.Fatal("held clip reference invalidated by disconnect")
	}

	if err := h.Reload(other, true); err != nil {
		t.Fatalf("reload with override: %v", err)
	}
	if h.ScriptInfo() != h.SourceInfo() || h.ScriptInfo().Width != 1280 {
		t.Fatalf("expected passthrough of the new source, got %v", h.ScriptInfo())
	}
}

func TestReloadCommitsScriptFigures(t *testing.T) {
	h := newStarlarkHandle(t, "AssumeFPS(FilterSource(), 50)\n", 1)
	if err := h.Reload(sourceType(t), false); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	snap := h.Snapshot()
	if snap.Fallback {
		t.Fatal("unexpected fallback")
	}
	if snap.Script.FPSNumerator != 50 || snap.Script.FPSDenominator != 1 {
		t.Fatalf("unexpected script rate %d/%d", snap.Script.FPSNumerator, snap.Script.FPSDenominator)
	}
	want := struct{ src, script, rate int64 }{400000, 200000, 25000}
	if snap.Figures.SourceAvgFrameDuration != want.src ||
		snap.Figures.ScriptAvgFrameDuration != want.script ||
		snap.Figures.SourceAvgFrameRate != want.rate {
		t.Fatalf("unexpected figures %+v", snap.Figures)
	}
	if h.ScriptPixelType() != engine.PixelYUV420P8 {
		t.Fatalf("unexpected pixel type %q", h.ScriptPixelType())
	}
}

func TestReloadScriptErrorCommitsFallback(t *testing.T) {
	h := newStarlarkHandle(t, "undefined_function()\n", 4)
	if err := h.Reload(sourceType(t), false); err != nil {
		t.Fatalf("Reload must absorb script errors, got %v", err)
	}
	msg, ok := h.ErrorString()
	if !ok || !strings.Contains(msg, "undefined_function") {
		t.Fatalf("expected error state naming the failure, got %q", msg)
	}
	snap := h.Snapshot()
	if snap == nil || !snap.Fallback {
		t.Fatal("expected fallback snapshot")
	}
	if snap.Script.Width != 720 || snap.Script.Height != 480 {
		t.Fatalf("fallback should caption the source geometry, got %v", snap.Script)
	}
	ref := h.ScriptClip()
	defer ref.Release()
	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for n := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := ref.Clip().GetFrame(n); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent fallback frame: %v", err)
	}
}

func TestReloadNonClipResult(t *testing.T) {
	tests := []struct {
		name   string
		script string
	}{
		{"int", "42\n"},
		{"none", "None\n"},
		{"trailing print", "last = FilterSource()\nprint(\"debug\")\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newStarlarkHandle(t, tc.script, 1)
			if err := h.Reload(sourceType(t), false); err != nil {
				t.Fatalf("Reload: %v", err)
			}
			msg, ok := h.ErrorString()
			if !ok || msg != bridge.NotAClipMessage {
				t.Fatalf("unexpected error state %q", msg)
			}
			if !h.Snapshot().Fallback {
				t.Fatal("expected fallback clip")
			}
		})
	}
}

func TestReloadClearsErrorOnSuccess(t *testing.T) {
	dir := t.TempDir()
	bad := testsupport.WriteScript(t, dir, "bad.star", "1 +\n")
	good := testsupport.WriteScript(t, dir, "good.star", "FilterSource()\n")
	h := newStarlarkHandle(t, "", 1)
	h.SetScriptPath(bad)
	if err := h.Reload(sourceType(t), false); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if _, ok := h.ErrorString(); !ok {
		t.Fatal("expected syntax error state")
	}
	h.SetScriptPath(good)
	if err := h.Reload(sourceType(t), false); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if msg, ok := h.ErrorString(); ok {
		t.Fatalf("expected error state cleared, got %q", msg)
	}
}

func TestScriptClipSurvivesReload(t *testing.T) {
	h := newStarlarkHandle(t, "FilterSource()\n", 1)
	if err := h.Reload(sourceType(t), false); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	held := h.ScriptClip()
	if err := h.Reload(sourceType(t), false); err != nil {
		t.Fatalf("second reload: %v", err)
	}
	if held.Clip() == nil {
		t.Fatal("held reference released by reload")
	}
	if err := held.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if held.Clip() != nil {
		t.Fatal("expected old clip released once the holder lets go")
	}
}

type countingHandler struct {
	mu       sync.Mutex
	requests []int
	frame    *engine.VideoFrame
}

func (c *countingHandler) GetSourceFrame(n int) (*engine.VideoFrame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, n)
	return c.frame, nil
}

func TestLinkFrameHandlerRoutesSourceFrames(t *testing.T) {
	h := newStarlarkHandle(t, "FilterSource()\n", 1)
	if err := h.Reload(sourceType(t), false); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	frame, err := testsupport.SolidFrame(h.SourceInfo(), 99)
	if err != nil {
		t.Fatalf("SolidFrame: %v", err)
	}
	handler := &countingHandler{frame: frame}
	h.LinkFrameHandler(handler)
	ref := h.ScriptClip()
	defer ref.Release()
	got, err := ref.Clip().GetFrame(7)
	if err != nil {
		t.Fatalf("GetFrame: %v", err)
	}
	if got != frame || !slices.Equal(handler.requests, []int{7}) {
		t.Fatalf("expected routed request for frame 7, got %v", handler.requests)
	}
}

func TestGenerateMediaTypeUsesCommittedScript(t *testing.T) {
	h := newStarlarkHandle(t, "Crop(FilterSource(), 0, 0, 640, 480)\n", 1)
	if err := h.Reload(sourceType(t), false); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	out, err := h.GenerateMediaType("YV12", sourceType(t))
	if err != nil {
		t.Fatalf("GenerateMediaType: %v", err)
	}
	if out.Header.Bitmap.Width != 640 || out.Header.Bitmap.Height != 480 {
		t.Fatalf("unexpected geometry %dx%d", out.Header.Bitmap.Width, out.Header.Bitmap.Height)
	}
	if _, err := h.GenerateMediaType("Y410", sourceType(t)); !errors.Is(err, format.ErrUnknownFormat) {
		t.Fatalf("expected ErrUnknownFormat, got %v", err)
	}
}

func TestStopScriptDropsClip(t *testing.T) {
	h := newStarlarkHandle(t, "FilterSource()\n", 1)
	if err := h.Reload(sourceType(t), false); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	h.StopScript()
	if h.ScriptClip() != nil {
		t.Fatal("expected no clip after StopScript")
	}
	if h.ScriptInfo().Width != 720 {
		t.Fatal("descriptor should stay readable after StopScript")
	}
}

func TestFallbackScriptPrefetchMatchesThreads(t *testing.T) {
	for _, threads := range []int{-1, 0, 1, 2, 4, 16} {
		script := bridge.FallbackScript("boom", threads)
		hasPrefetch := strings.Contains(script, "Prefetch(")
		if threads > 1 {
			want := "Prefetch(last, " + strconv.Itoa(threads) + ")"
			if strings.Count(script, "Prefetch(") != 1 || !strings.Contains(script, want) {
				t.Fatalf("threads=%d: expected %q in %q", threads, want, script)
			}
		} else if hasPrefetch {
			t.Fatalf("threads=%d: unexpected prefetch in %q", threads, script)
		}
		if !strings.Contains(script, "Subtitle(FilterSource(), ReplaceStr(") || !strings.Contains(script, "lsp=0") {
			t.Fatalf("unexpected fallback script %q", script)
		}
	}
}

func TestFallbackScriptQuotesMessage(t *testing.T) {
	script := bridge.FallbackScript("line \"one\"\nline two\\", 1)
	if !strings.Contains(script, `"line \"one\"\nline two\\"`) {
		t.Fatalf("message not quoted as a literal: %q", script)
	}
}

func TestClassifyImport(t *testing.T) {
	clip := &testsupport.SolidClip{Info: testsupport.VideoInfo(4, 4, engine.PixelRGB32, 25, 1, 10)}
	boom := errors.New("io failure")
	tests := []struct {
		name    string
		value   engine.Value
		err     error
		want    bridge.OutcomeKind
		wantErr error
	}{
		{"clip", engine.ClipValue(clip), nil, bridge.OutcomeDefined, nil},
		{"void", engine.Void(), nil, bridge.OutcomeDisconnected, nil},
		{"undefined", engine.Undefined(), nil, bridge.OutcomeDisconnected, nil},
		{"int", engine.Int(1), nil, bridge.OutcomeNotAClip, nil},
		{"none", engine.None(), nil, bridge.OutcomeNotAClip, nil},
		{"script error", engine.Value{}, engine.NewScriptError("bad token"), bridge.OutcomeScriptError, nil},
		{"other error", engine.Value{}, boom, 0, boom},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := bridge.ClassifyImport(tc.value, tc.err)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error %v", err)
			}
			if got.Kind != tc.want {
				t.Fatalf("got %s want %s", got.Kind, tc.want)
			}
			if tc.want == bridge.OutcomeScriptError && got.Message != "bad token" {
				t.Fatalf("unexpected message %q", got.Message)
			}
		})
	}
}

func TestNewHandleUnknownModuleIsFatal(t *testing.T) {
	dialog := &recordingDialog{}
	_, err := bridge.NewHandle(bridge.Options{Module: "no-such-engine", Logger: logging.NewNop(), Dialog: dialog, Language: "de_DE.UTF-8"})
	if !errors.Is(err, bridge.ErrFatal) || !errors.Is(err, engine.ErrModuleNotFound) {
		t.Fatalf("expected fatal module error, got %v", err)
	}
	if len(dialog.texts) != 1 || !strings.Contains(dialog.texts[0], "konnte nicht geladen werden") {
		t.Fatalf("expected German dialog, got %v", dialog.texts)
	}
}

func TestNewHandleNilEnvironmentIsFatal(t *testing.T) {
	events := &testsupport.Events{}
	name := testsupport.RegisterFakeModule(t, &testsupport.FakeModule{Events: events})
	dialog := &recordingDialog{}
	_, err := bridge.NewHandle(bridge.Options{Module: name, Logger: logging.NewNop(), Dialog: dialog, Language: "en"})
	if !errors.Is(err, bridge.ErrFatal) || !errors.Is(err, engine.ErrNilEnvironment) {
		t.Fatalf("expected fatal nil environment error, got %v", err)
	}
	if len(dialog.texts) != 1 {
		t.Fatalf("expected one dialog, got %d", len(dialog.texts))
	}
	if got := events.List(); !slices.Equal(got, []string{"module.create", "module.unload"}) {
		t.Fatalf("unexpected events %v", got)
	}
}

func TestNewHandleRegisterFailureIsFatal(t *testing.T) {
	events := &testsupport.Events{}
	env := &testsupport.FakeEnvironment{Events: events, AddErr: errors.New("table full")}
	name := testsupport.RegisterFakeModule(t, &testsupport.FakeModule{Env: env, Events: events})
	_, err := bridge.NewHandle(bridge.Options{Module: name, Logger: logging.NewNop(), Dialog: &recordingDialog{}})
	if !errors.Is(err, bridge.ErrFatal) {
		t.Fatalf("expected ErrFatal, got %v", err)
	}
	if got := events.List(); !slices.Equal(got, []string{"module.create", "env.close", "linkage.revoke", "module.unload"}) {
		t.Fatalf("unexpected teardown %v", got)
	}
}

func TestCloseReleasesInOrder(t *testing.T) {
	events := &testsupport.Events{}
	script := &testsupport.SolidClip{
		Info:   testsupport.VideoInfo(720, 480, engine.PixelYUV420P8, 25, 1, 100),
		Label:  "script",
		Events: events,
	}
	env := &testsupport.FakeEnvironment{
		Events:     events,
		Version:    "fake 1.0",
		ImportFunc: func(string) (engine.Value, error) { return engine.ClipValue(script), nil },
	}
	name := testsupport.RegisterFakeModule(t, &testsupport.FakeModule{Env: env, Events: events})
	h, err := bridge.NewHandle(bridge.Options{Module: name, ScriptPath: "/scripts/a.star", Logger: logging.NewNop()})
	if err != nil {
		t.Fatalf("NewHandle: %v", err)
	}
	if h.Version() != "fake 1.0" {
		t.Fatalf("unexpected version %q", h.Version())
	}
	if err := h.Reload(sourceType(t), false); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if err := h.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	want := []string{"module.create", "script.close", "env.close", "linkage.revoke", "module.unload"}
	if got := events.List(); !slices.Equal(got, want) {
		t.Fatalf("unexpected teardown order %v want %v", got, want)
	}
	if h.DrainFrame() != nil {
		t.Fatal("expected drain frame released")
	}
	if err := h.Close(); !errors.Is(err, bridge.ErrClosed) {
		t.Fatalf("expected ErrClosed on second close, got %v", err)
	}
	if err := h.Reload(sourceType(t), false); !errors.Is(err, bridge.ErrClosed) {
		t.Fatalf("expected ErrClosed on reload after close, got %v", err)
	}
}

func TestFallbackFailureIsReloadError(t *testing.T) {
	events := &testsupport.Events{}
	env := &testsupport.FakeEnvironment{
		Events:     events,
		ImportFunc: func(string) (engine.Value, error) { return engine.Value{}, engine.NewScriptError("syntax error") },
		EvalFunc:   func(string) (engine.Value, error) { return engine.Value{}, engine.NewScriptError("no Subtitle") },
	}
	name := testsupport.RegisterFakeModule(t, &testsupport.FakeModule{Env: env, Events: events})
	h, err := bridge.NewHandle(bridge.Options{Module: name, ScriptPath: "/scripts/a.star", OutputThreads: 3, Logger: logging.NewNop()})
	if err != nil {
		t.Fatalf("NewHandle: %v", err)
	}
	defer h.Close()

	err = h.Reload(sourceType(t), false)
	if !errors.Is(err, bridge.ErrReload) {
		t.Fatalf("expected ErrReload, got %v", err)
	}
	if errors.Is(err, bridge.ErrFatal) {
		t.Fatal("fallback failure must not be fatal")
	}
	if h.Snapshot() != nil {
		t.Fatal("nothing should be committed when the fallback fails")
	}
	if msg, _ := h.ErrorString(); msg != "syntax error" {
		t.Fatalf("unexpected error state %q", msg)
	}
	evals := env.Evals()
	if len(evals) != 1 || !strings.Contains(evals[0], "Prefetch(last, 3)") {
		t.Fatalf("unexpected fallback evaluation %q", evals)
	}
}

func TestLocalizedMessage(t *testing.T) {
	if got := bridge.LocalizedMessage("en-US", bridge.MsgModuleLoad, "x.so"); got != `Failed to load the engine module "x.so"` {
		t.Fatalf("unexpected English message %q", got)
	}
	if got := bridge.LocalizedMessage("de", bridge.MsgModuleLoad, "x.so"); got != `Das Engine-Modul "x.so" konnte nicht geladen werden` {
		t.Fatalf("unexpected German message %q", got)
	}
	if got := bridge.LocalizedMessage("fr_FR.UTF-8", bridge.MsgNilEnvironment, "Create"); got != "Create() returned no environment" {
		t.Fatalf("expected English fallback, got %q", got)
	}
}

func TestStderrDialogRendersBox(t *testing.T) {
	var buf bytes.Buffer
	bridge.StderrDialog{Writer: &buf}.ShowError("Synthfilter", "engine missing")
	out := buf.String()
	if !strings.Contains(out, "Synthfilter") || !strings.Contains(out, "engine missing") || !strings.Contains(out, "╭") {
		t.Fatalf("unexpected dialog output %q", out)
	}
	if strings.Contains(out, "\x1b[") {
		t.Fatal("non-terminal writer must not receive colour codes")
	}
}
