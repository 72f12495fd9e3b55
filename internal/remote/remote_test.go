package remote_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"synthfilter/internal/bridge"
	"synthfilter/internal/delivery"
	_ "synthfilter/internal/engine/starlarkenv"
	"synthfilter/internal/format"
	"synthfilter/internal/logging"
	"synthfilter/internal/remote"
	"synthfilter/internal/testsupport"
)

type fakeController struct {
	mu      sync.Mutex
	reloads []string
}

func (f *fakeController) Status() remote.StatusResponse {
	return remote.StatusResponse{EngineVersion: "fake 1.0", SourcePath: remote.UnavailableSourcePath, OutputThreads: 2}
}

func (f *fakeController) Reload(path string) remote.ReloadResponse {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reloads = append(f.reloads, path)
	return remote.ReloadResponse{Reloaded: true, ScriptPath: path}
}

func socketPath(t *testing.T) string {
	t.Helper()
	// Unix socket paths are short; t.TempDir can exceed the limit.
	dir, err := os.MkdirTemp("", "sf")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	return filepath.Join(dir, "synth.sock")
}

func startServer(t *testing.T, path string, ctrl remote.Controller) *remote.Server {
	t.Helper()
	srv, err := remote.NewServer(context.Background(), path, ctrl, logging.NewNop())
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping remote server test: %v", err)
		}
		t.Fatalf("NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, path string) *remote.Client {
	t.Helper()
	client, err := remote.Dial(path)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestServerClientRoundTrip(t *testing.T) {
	path := socketPath(t)
	ctrl := &fakeController{}
	startServer(t, path, ctrl)
	client := dial(t, path)

	status, err := client.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.EngineVersion != "fake 1.0" || status.SourcePath != "N/A" || status.OutputThreads != 2 {
		t.Fatalf("unexpected status %+v", status)
	}

	resp, err := client.Reload("/scripts/next.star")
	if err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if !resp.Reloaded || resp.ScriptPath != "/scripts/next.star" {
		t.Fatalf("unexpected reload response %+v", resp)
	}
	ctrl.mu.Lock()
	defer ctrl.mu.Unlock()
	if len(ctrl.reloads) != 1 || ctrl.reloads[0] != "/scripts/next.star" {
		t.Fatalf("unexpected reloads %v", ctrl.reloads)
	}
}

func TestServerRejectsSecondInstance(t *testing.T) {
	path := socketPath(t)
	startServer(t, path, &fakeController{})
	_, err := remote.NewServer(context.Background(), path, &fakeController{}, logging.NewNop())
	if !errors.Is(err, remote.ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}
}

func TestServerCloseRemovesSocketAndLock(t *testing.T) {
	path := socketPath(t)
	srv, err := remote.NewServer(context.Background(), path, &fakeController{}, logging.NewNop())
	if err != nil {
		t.Skipf("skipping remote server test: %v", err)
	}
	srv.Serve()
	client := dial(t, path)
	srv.Close()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("socket still present: %v", err)
	}
	if _, err := os.Stat(remote.LockPath(path)); !os.IsNotExist(err) {
		t.Fatalf("lock file still present: %v", err)
	}
	if _, err := client.Status(); err == nil {
		t.Fatal("expected status to fail after close")
	}
}

func TestNewServerRequiresController(t *testing.T) {
	if _, err := remote.NewServer(context.Background(), socketPath(t), nil, nil); err == nil {
		t.Fatal("expected error without controller")
	}
}

func TestSessionControllerStatusAndReload(t *testing.T) {
	dir := t.TempDir()
	script := testsupport.WriteScript(t, dir, "pass.star", "FilterSource()\n")
	h, err := bridge.NewHandle(bridge.Options{
		Module:        "starlark",
		ScriptPath:    script,
		OutputThreads: 2,
		Logger:        logging.NewNop(),
		Language:      "en",
	})
	if err != nil {
		t.Fatalf("NewHandle: %v", err)
	}
	t.Cleanup(func() { _ = h.Close() })
	session, err := delivery.NewSession(delivery.SessionOptions{
		Handle:   h,
		Supplier: delivery.NewSupplier(0),
		Sink: delivery.SinkFunc(func(context.Context, delivery.OutputFrame) error {
			return nil
		}),
		Logger: logging.NewNop(),
	})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	t.Cleanup(session.Close)
	mt, err := format.NewMediaType("YV12", 640, 480, 333667, 4, 3)
	if err != nil {
		t.Fatalf("NewMediaType: %v", err)
	}
	if err := session.Open(context.Background(), mt); err != nil {
		t.Fatalf("Open: %v", err)
	}

	ctrl := &remote.SessionController{Handle: h, Session: session}
	status := ctrl.Status()
	if status.SourcePath != remote.UnavailableSourcePath {
		t.Fatalf("unexpected source path %q", status.SourcePath)
	}
	if status.ScriptPath != script || status.OutputThreads != 2 {
		t.Fatalf("unexpected status %+v", status)
	}
	if status.Script.Width != 640 || status.Script.Height != 480 || status.ScriptAvgFrameDuration != 333667 {
		t.Fatalf("unexpected script descriptor %+v / %d", status.Script, status.ScriptAvgFrameDuration)
	}
	if status.ErrorString != "" {
		t.Fatalf("unexpected error string %q", status.ErrorString)
	}

	broken := testsupport.WriteScript(t, dir, "broken.star", "FilterSource(\n")
	resp := ctrl.Reload(broken)
	if !resp.Reloaded || resp.ScriptPath != broken {
		t.Fatalf("unexpected reload response %+v", resp)
	}
	if resp.ErrorString == "" {
		t.Fatal("expected the script error to be reported")
	}
	if got := ctrl.Status().ErrorString; got != resp.ErrorString {
		t.Fatalf("status error %q does not match reload %q", got, resp.ErrorString)
	}

	withSource := &remote.SessionController{Handle: h, SourcePath: "/media/in.mkv"}
	if withSource.Status().SourcePath != "/media/in.mkv" {
		t.Fatal("expected the configured source path")
	}
	if r := withSource.Reload(""); r.Reloaded || r.Message == "" {
		t.Fatalf("expected failure without a session, got %+v", r)
	}
}
