package logger

import (
	"fmt"
	"io"
	"path/filepath"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// CaptureConfig is the deployment-wide policy for service stdout/stderr.
// When Dir is empty both streams are discarded; otherwise each stream is
// captured to a rotated file under Dir. CaptureStdout may be disabled
// independently so only stderr is kept.
type CaptureConfig struct {
	Dir           string `toml:"dir" mapstructure:"dir"`
	CaptureStdout bool   `toml:"capture_stdout" mapstructure:"capture_stdout"`
	MaxSizeMB     int    `toml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups    int    `toml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays    int    `toml:"max_age_days" mapstructure:"max_age_days"`
	Compress      bool   `toml:"compress" mapstructure:"compress"`
}

// Writers returns stdout and stderr write-closers for the named service.
// A nil writer means the stream should be discarded.
func (c CaptureConfig) Writers(name string) (stdout, stderr io.WriteCloser) {
	if c.Dir == "" {
		return nil, nil
	}
	mk := func(suffix string) io.WriteCloser {
		return &lj.Logger{
			Filename:   filepath.Join(c.Dir, fmt.Sprintf("%s.%s.log", name, suffix)),
			MaxSize:    valOr(c.MaxSizeMB, DefaultMaxSizeMB),
			MaxBackups: valOr(c.MaxBackups, DefaultMaxBackups),
			MaxAge:     valOr(c.MaxAgeDays, DefaultMaxAgeDays),
			Compress:   c.Compress,
		}
	}
	if c.CaptureStdout {
		stdout = mk("stdout")
	}
	stderr = mk("stderr")
	return stdout, stderr
}
