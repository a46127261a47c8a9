package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
)

// Environment variables configuring the log destination and level.
const (
	envLogPath  = "HOSTCACHE_LOG"
	envLogLevel = "HOSTCACHE_LOG_LEVEL"
)

// Stderr is the path value that sends logs to standard error.
const Stderr = "-"

type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var (
	// mu guards std, logFile and isInitialized.
	mu            sync.Mutex
	std           *log.Logger
	logFile       *os.File
	isInitialized bool
	minLevel      atomic.Int32
)

func init() { minLevel.Store(int32(LevelInfo)) }

// InitFromEnv initializes the logger using HOSTCACHE_LOG or a default path
// next to the executable.
func InitFromEnv(name string) error {
	if lvl := os.Getenv(envLogLevel); lvl != "" {
		SetLevelFromString(lvl)
	}
	path := os.Getenv(envLogPath)
	if path == "" {
		if exePath, err := os.Executable(); err == nil {
			path = filepath.Join(filepath.Dir(exePath), name+".log")
		} else {
			path = "./" + name + ".log"
		}
	}
	return Init(path)
}

// Init initializes the logger to write to the provided file path, or to
// stderr when path is Stderr. It creates parent directories if needed and
// opens the file in append mode.
func Init(path string) error {
	mu.Lock()
	defer mu.Unlock()
	if isInitialized {
		return nil
	}
	if path == Stderr {
		setWriter(os.Stderr)
		return nil
	}
	if err := ensureParentDir(path); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	logFile = f
	setWriter(f)
	return nil
}

// InitWriter directs log output to w.
func InitWriter(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	setWriter(w)
}

func setWriter(w io.Writer) {
	std = log.New(w, "", log.Ldate|log.Ltime|log.Lmicroseconds)
	isInitialized = true
}

// Close closes the underlying log file, if open.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if logFile != nil {
		err := logFile.Close()
		logFile = nil
		return err
	}
	return nil
}

// SetLevel drops messages below l.
func SetLevel(l Level) { minLevel.Store(int32(l)) }

// SetLevelFromString accepts "debug", "info", "warn" or "error"; anything
// else leaves the level unchanged.
func SetLevelFromString(s string) {
	switch strings.ToLower(s) {
	case "debug":
		SetLevel(LevelDebug)
	case "info":
		SetLevel(LevelInfo)
	case "warn", "warning":
		SetLevel(LevelWarn)
	case "error":
		SetLevel(LevelError)
	}
}

// Debugf logs verbose diagnostics.
func Debugf(format string, args ...any) { write(LevelDebug, "DEBUG", format, args...) }

// Infof logs informational messages.
func Infof(format string, args ...any) { write(LevelInfo, "INFO", format, args...) }

// Warnf logs warnings.
func Warnf(format string, args ...any) { write(LevelWarn, "WARN", format, args...) }

// Errorf logs errors.
func Errorf(format string, args ...any) { write(LevelError, "ERROR", format, args...) }

func write(level Level, tag string, format string, args ...any) {
	if level < Level(minLevel.Load()) {
		return
	}
	output().Printf("[%s] %s", tag, fmt.Sprintf(format, args...))
}

func output() *log.Logger {
	mu.Lock()
	defer mu.Unlock()
	if std == nil {
		// Fallback for callers that never initialized the logger.
		setWriter(os.Stderr)
	}
	return std
}

func ensureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
