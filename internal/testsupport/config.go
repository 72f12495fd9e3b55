package testsupport

import (
	"path/filepath"
	"testing"

	"synthfilter/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config rooted in a per-test temp directory. Logging
// goes to a file under that directory so tests never write to stderr.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.RemoteSocket = filepath.Join(base, "run", "synthfilter.sock")
	cfgVal.Logging.File = filepath.Join(base, "logs", "synthfilter.log")

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithScript writes src to a script file and points the config at it.
func WithScript(src string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.ScriptPath = WriteScript(b.t, b.baseDir, "filter.star", src)
	}
}

// WithOutputThreads sets the output worker count.
func WithOutputThreads(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.OutputThreads = n
	}
}

// WithRemoteControl enables the JSON-RPC control socket.
func WithRemoteControl() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.RemoteControl = true
	}
}

// WithDisabledFormats turns off the named input formats.
func WithDisabledFormats(names ...string) ConfigOption {
	return func(b *configBuilder) {
		for _, name := range names {
			if err := b.cfg.SetInputFormatEnabled(name, false); err != nil {
				b.t.Fatalf("disable format %s: %v", name, err)
			}
		}
	}
}
