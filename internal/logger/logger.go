package logger

import (
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Default rotation parameters for the file sink.
const (
	DefaultMaxSizeMB  = 10 // MB
	DefaultMaxBackups = 3  // number of backup files
	DefaultMaxAgeDays = 7  // days
)

// Target selects where a log call is written.
type Target int

const (
	Console Target = iota
	File
	Journal
	Network
)

// Config describes the supervisor's own log sinks.
// Rotation of the file sink follows lumberjack semantics.
type Config struct {
	MinLevel    string `toml:"min_level" mapstructure:"min_level"`       // default "info"
	FilePath    string `toml:"file" mapstructure:"file"`                 // enables the File target
	MaxSizeMB   int    `toml:"max_size_mb" mapstructure:"max_size_mb"`   // megabytes before rotation
	MaxBackups  int    `toml:"max_backups" mapstructure:"max_backups"`   // rotated files to keep
	MaxAgeDays  int    `toml:"max_age_days" mapstructure:"max_age_days"` // days to keep
	Compress    bool   `toml:"compress" mapstructure:"compress"`
	JournalPath string `toml:"journal" mapstructure:"journal"` // default off; typically /dev/kmsg
	NetworkAddr string `toml:"network" mapstructure:"network"` // UDP collector, host:port
}

// Logger is the logging capability consumed by every supervisor component.
// Calls below the configured minimum severity are dropped. Line format for
// console/file sinks: [<unix_timestamp>] <service>/<LEVEL>: <message>\n
type Logger struct {
	min Level

	mu      sync.Mutex
	console io.Writer
	file    io.WriteCloser
	journal io.WriteCloser
	network net.Conn
	now     func() time.Time
}

// New builds a Logger from cfg. The console sink is always present; file,
// journal and network sinks are wired only when configured.
func New(cfg Config) (*Logger, error) {
	min := Info
	if cfg.MinLevel != "" {
		var err error
		min, err = ParseLevel(cfg.MinLevel)
		if err != nil {
			return nil, err
		}
	}
	l := &Logger{min: min, console: os.Stdout, now: time.Now}
	if cfg.FilePath != "" {
		l.file = &lj.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    valOr(cfg.MaxSizeMB, DefaultMaxSizeMB),
			MaxBackups: valOr(cfg.MaxBackups, DefaultMaxBackups),
			MaxAge:     valOr(cfg.MaxAgeDays, DefaultMaxAgeDays),
			Compress:   cfg.Compress,
		}
	}
	if cfg.JournalPath != "" {
		f, err := os.OpenFile(cfg.JournalPath, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o600)
		if err != nil {
			return nil, fmt.Errorf("open journal %s: %w", cfg.JournalPath, err)
		}
		l.journal = f
	}
	if cfg.NetworkAddr != "" {
		conn, err := net.Dial("udp", cfg.NetworkAddr)
		if err != nil {
			return nil, fmt.Errorf("dial log collector %s: %w", cfg.NetworkAddr, err)
		}
		l.network = conn
	}
	return l, nil
}

// Discard returns a logger that drops everything; used in tests.
func Discard() *Logger {
	return &Logger{min: Level(-1), console: io.Discard, now: time.Now}
}

// Log writes one line for service at level to target. Unconfigured targets
// fall back to the console so messages are never silently lost.
func (l *Logger) Log(service string, level Level, msg string, target Target) {
	if level > l.min {
		return
	}
	line := fmt.Sprintf("[%d] %s/%s: %s\n", l.now().Unix(), service, level, msg)
	l.mu.Lock()
	defer l.mu.Unlock()
	switch target {
	case File:
		if l.file != nil {
			_, _ = io.WriteString(l.file, line)
			return
		}
	case Journal:
		if l.journal != nil {
			_, _ = io.WriteString(l.journal, line)
			return
		}
	case Network:
		if l.network != nil {
			_, _ = l.network.Write([]byte(line))
			return
		}
	}
	_, _ = io.WriteString(l.console, line)
}

// Logf is Log with fmt-style formatting.
func (l *Logger) Logf(service string, level Level, target Target, format string, args ...any) {
	if level > l.min {
		return
	}
	l.Log(service, level, fmt.Sprintf(format, args...), target)
}

// Close releases the file, journal and network sinks.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	var first error
	if l.file != nil {
		if err := l.file.Close(); err != nil {
			first = err
		}
		l.file = nil
	}
	if l.journal != nil {
		if err := l.journal.Close(); err != nil && first == nil {
			first = err
		}
		l.journal = nil
	}
	if l.network != nil {
		if err := l.network.Close(); err != nil && first == nil {
			first = err
		}
		l.network = nil
	}
	return first
}

func valOr(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
