// Package logger configures the subsystem loggers shared by every entry
// point in this module. It follows the same shape as btcd-family daemons:
// a single backend fans out to rotating log files, and each subsystem gets
// its own named, independently levelled logger.
package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/btcsuite/btclog"
	"github.com/jrick/logrotate/rotator"
)

type logWriter struct{}

func (logWriter) Write(p []byte) (n int, err error) {
	os.Stdout.Write(p)
	if initiated {
		LogRotator.Write(p)
	}
	return len(p), nil
}

// Subsystem tags. Kept short and upper-case, mirroring the four-letter
// subsystem tag convention (ADXR, AMGR, ...).
const (
	TagCollector = "COLL"
	TagStorage   = "STOR"
	TagUpstream  = "UPST"
	TagCodec     = "CDEC"
	TagOffload   = "OFLD"
	TagConfig    = "CNFG"
	TagMain      = "MAIN"
	TagHTTP      = "HTTP"
)

var (
	// BackendLog is the logging backend used to create all subsystem loggers.
	BackendLog = btclog.NewBackend(logWriter{})

	// LogRotator writes rotated log files. It must be closed on shutdown.
	LogRotator *rotator.Rotator

	collLog = BackendLog.Logger(TagCollector)
	storLog = BackendLog.Logger(TagStorage)
	upstLog = BackendLog.Logger(TagUpstream)
	cdecLog = BackendLog.Logger(TagCodec)
	ofldLog = BackendLog.Logger(TagOffload)
	cnfgLog = BackendLog.Logger(TagConfig)
	mainLog = BackendLog.Logger(TagMain)
	httpLog = BackendLog.Logger(TagHTTP)

	initiated = false

	subsystemLoggers = map[string]btclog.Logger{
		TagCollector: collLog,
		TagStorage:   storLog,
		TagUpstream:  upstLog,
		TagCodec:     cdecLog,
		TagOffload:   ofldLog,
		TagConfig:    cnfgLog,
		TagMain:      mainLog,
		TagHTTP:      httpLog,
	}
)

// InitLogRotator initializes the rotating log file. Must be called before
// any logger is used if file output is desired.
func InitLogRotator(logFile string) {
	initiated = true
	logDir, _ := filepath.Split(logFile)
	if err := os.MkdirAll(logDir, 0700); err != nil {
		fmt.Fprintf(os.Stderr, "failed to create log directory: %s\n", err)
		os.Exit(1)
	}
	r, err := rotator.New(logFile, 10*1024, false, 3)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create file rotator: %s\n", err)
		os.Exit(1)
	}
	LogRotator = r
}

// Get returns the logger for the given subsystem tag, creating nothing new
// (all subsystem loggers are pre-registered above).
func Get(tag string) btclog.Logger {
	logger, ok := subsystemLoggers[tag]
	if !ok {
		return mainLog
	}
	return logger
}

// SetLogLevel sets the level of a single subsystem. Unknown subsystems are
// ignored.
func SetLogLevel(tag, level string) {
	l, ok := subsystemLoggers[tag]
	if !ok {
		return
	}
	lvl, ok := btclog.LevelFromString(level)
	if !ok {
		lvl = btclog.LevelInfo
	}
	l.SetLevel(lvl)
}

// SetLogLevels sets every subsystem to the given level.
func SetLogLevels(level string) {
	for tag := range subsystemLoggers {
		SetLogLevel(tag, level)
	}
}

// ParseAndSetDebugLevels parses the LOG_LEVEL environment grammar: either a
// single level applied to every subsystem, or a comma-separated list of
// "tag=level" pairs.
func ParseAndSetDebugLevels(spec string) error {
	if spec == "" {
		return nil
	}
	if !strings.Contains(spec, ",") && !strings.Contains(spec, "=") {
		SetLogLevels(spec)
		return nil
	}
	for _, pair := range strings.Split(spec, ",") {
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid LOG_LEVEL pair %q", pair)
		}
		SetLogLevel(parts[0], parts[1])
	}
	return nil
}

// SupportedSubsystems returns a sorted list of subsystem tags, for
// diagnostics and validation messages.
func SupportedSubsystems() []string {
	tags := make([]string, 0, len(subsystemLoggers))
	for tag := range subsystemLoggers {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}
