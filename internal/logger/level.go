package logger

import (
	"fmt"
	"strings"
)

// Level is an ordered severity; the most severe level is 0.
type Level int

const (
	Emergency Level = iota
	Alert
	Critical
	Error
	Warning
	Notice
	Info
	Debug
	Trace
)

var levelNames = [...]string{
	Emergency: "EMERGENCY",
	Alert:     "ALERT",
	Critical:  "CRITICAL",
	Error:     "ERROR",
	Warning:   "WARNING",
	Notice:    "NOTICE",
	Info:      "INFO",
	Debug:     "DEBUG",
	Trace:     "TRACE",
}

func (l Level) String() string {
	if l < Emergency || l > Trace {
		return fmt.Sprintf("LEVEL(%d)", int(l))
	}
	return levelNames[l]
}

// ParseLevel accepts level names case-insensitively (e.g. "info", "ERROR").
func ParseLevel(s string) (Level, error) {
	u := strings.ToUpper(strings.TrimSpace(s))
	for i, name := range levelNames {
		if u == name {
			return Level(i), nil
		}
	}
	return Info, fmt.Errorf("unknown log level: %q", s)
}
