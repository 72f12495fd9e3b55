package bridge

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Dialog presents a blocking error to the user. It is only used for fatal
// engine failures.
type Dialog interface {
	ShowError(title, message string)
}

// Message keys. The English text doubles as the key.
const (
	MsgDialogTitle       = "Synthfilter"
	MsgModuleLoad        = "Failed to load the engine module %q"
	MsgEntryPoint        = "Unable to locate %s() in the engine module %q"
	MsgNilEnvironment    = "%s() returned no environment"
	MsgCreateEnvironment = "Failed to create an engine environment: %v"
	MsgRegisterFunction  = "Failed to register %s() with the engine: %v"
)

var (
	supportedLanguages = []language.Tag{language.English, language.German}
	languageMatcher    = language.NewMatcher(supportedLanguages)

	catalogOnce sync.Once
	messages    *catalog.Builder
)

func messageCatalog() *catalog.Builder {
	catalogOnce.Do(func() {
		b := catalog.NewBuilder(catalog.Fallback(language.English))
		german := map[string]string{
			MsgDialogTitle:       "Synthfilter",
			MsgModuleLoad:        "Das Engine-Modul %q konnte nicht geladen werden",
			MsgEntryPoint:        "%s() wurde im Engine-Modul %q nicht gefunden",
			MsgNilEnvironment:    "%s() hat keine Umgebung geliefert",
			MsgCreateEnvironment: "Die Engine-Umgebung konnte nicht erstellt werden: %v",
			MsgRegisterFunction:  "%s() konnte nicht bei der Engine registriert werden: %v",
		}
		for key, text := range german {
			_ = b.SetString(language.English, key, key)
			_ = b.SetString(language.German, key, text)
		}
		messages = b
	})
	return messages
}

// LocalizedMessage formats key for lang, a BCP 47 tag or POSIX locale such
// as "de_DE.UTF-8". Unsupported languages fall back to English.
func LocalizedMessage(lang, key string, args ...any) string {
	printer := message.NewPrinter(matchLanguage(lang), message.Catalog(messageCatalog()))
	return printer.Sprintf(key, args...)
}

func matchLanguage(lang string) language.Tag {
	lang = strings.TrimSpace(lang)
	if idx := strings.IndexAny(lang, ".@"); idx >= 0 {
		lang = lang[:idx]
	}
	lang = strings.ReplaceAll(lang, "_", "-")
	if lang == "" || lang == "C" || lang == "POSIX" {
		return language.English
	}
	tag, err := language.Parse(lang)
	if err != nil {
		return language.English
	}
	_, idx, _ := languageMatcher.Match(tag)
	return supportedLanguages[idx]
}

// LanguageFromEnv returns the user's message language from LC_ALL,
// LC_MESSAGES or LANG.
func LanguageFromEnv() string {
	for _, key := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		if value := strings.TrimSpace(os.Getenv(key)); value != "" {
			return value
		}
	}
	return ""
}

// StderrDialog renders the error as a boxed message on a writer, stderr by
// default. Terminals get the message in red.
type StderrDialog struct {
	Writer io.Writer
}

func (d StderrDialog) ShowError(title, msg string) {
	w := d.Writer
	if w == nil {
		w = os.Stderr
	}
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.Style().Format.Header = text.FormatDefault
	tw.AppendHeader(table.Row{title})
	tw.AppendRow(table.Row{msg})
	out := tw.Render()
	if isTerminal(w) {
		out = "\x1b[31m" + out + "\x1b[0m"
	}
	fmt.Fprintln(w, out)
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
