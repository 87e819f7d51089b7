package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// FileName is the name of the rotating log file inside the log directory.
const FileName = "flowcast.log"

// Options configures the global logger.
type Options struct {
	Verbose bool
	// Dir receives the rotating log file. Empty disables file logging.
	Dir string
	// Console defaults to os.Stderr.
	Console io.Writer
}

// Init initializes the global logger with dual sinks: the console and a
// rotating file. Stdout is never written to, it belongs to command output.
func Init(opts Options) error {
	level := zerolog.InfoLevel
	if opts.Verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	console := opts.Console
	noColor := true
	if console == nil {
		console = os.Stderr
		noColor = !(isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()))
	}
	writers := []io.Writer{zerolog.ConsoleWriter{
		Out:        console,
		TimeFormat: time.RFC3339,
		NoColor:    noColor,
	}}

	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
			return fmt.Errorf("create log directory %q: %w", opts.Dir, err)
		}
		testFile := filepath.Join(opts.Dir, ".write-test")
		if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
			return fmt.Errorf("log directory %q is not writable: %w", opts.Dir, err)
		}
		_ = os.Remove(testFile)

		writers = append(writers, &lumberjack.Logger{
			Filename:   filepath.Join(opts.Dir, FileName),
			MaxSize:    16, // megabytes
			MaxBackups: 8,
			MaxAge:     90, // days
			Compress:   true,
		})
	}

	log.Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).
		With().
		Timestamp().
		Logger()
	return nil
}
