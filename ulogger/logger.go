// Package ulogger provides the structured logger used across the indexer,
// a thin wrapper around zerolog in the same spirit as the teacher's
// util.NewZeroLogger (util/logger.go), with the logger dependency-injected
// into every component instead of reached for as a global.
package ulogger

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the surface every component in this repo depends on. It mirrors
// github.com/ordishs/go-utils.Logger, the interface the teacher's stores and
// services accept.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Fatalf(format string, args ...interface{})
}

type ZLogger struct {
	zerolog.Logger
	service string
}

// New returns a pretty console logger for service, with level set from
// logLevel (DEBUG/INFO/WARN/ERROR/FATAL, default INFO).
func New(service string, logLevel ...string) *ZLogger {
	if service == "" {
		service = "brc20indexer"
	}

	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	output.FormatTimestamp = func(i interface{}) string {
		parsed, err := time.Parse(time.RFC3339, fmt.Sprintf("%v", i))
		if err != nil {
			return fmt.Sprintf("%v", i)
		}
		return parsed.Format("15:04:05")
	}
	output.FormatMessage = func(i interface{}) string {
		return fmt.Sprintf("| %-8s| %s", service, i)
	}

	z := &ZLogger{
		zerolog.New(output).With().Timestamp().Logger(),
		service,
	}

	if len(logLevel) > 0 {
		setLevel(logLevel[0], z)
	}

	return z
}

func setLevel(level string, z *ZLogger) {
	switch strings.ToUpper(level) {
	case "DEBUG":
		z.Logger = z.Logger.Level(zerolog.DebugLevel)
	case "WARN":
		z.Logger = z.Logger.Level(zerolog.WarnLevel)
	case "ERROR":
		z.Logger = z.Logger.Level(zerolog.ErrorLevel)
	case "FATAL":
		z.Logger = z.Logger.Level(zerolog.FatalLevel)
	default:
		z.Logger = z.Logger.Level(zerolog.InfoLevel)
	}
}

func (z *ZLogger) Debugf(format string, args ...interface{}) { z.Logger.Debug().Msgf(format, args...) }
func (z *ZLogger) Infof(format string, args ...interface{})  { z.Logger.Info().Msgf(format, args...) }
func (z *ZLogger) Warnf(format string, args ...interface{})  { z.Logger.Warn().Msgf(format, args...) }
func (z *ZLogger) Errorf(format string, args ...interface{}) { z.Logger.Error().Msgf(format, args...) }
func (z *ZLogger) Fatalf(format string, args ...interface{}) { z.Logger.Fatal().Msgf(format, args...) }

// TestLogger collects messages in memory instead of writing them, so unit
// tests can assert on log content without capturing stdout.
type TestLogger struct {
	Lines []string
}

func NewTest() *TestLogger { return &TestLogger{} }

func (t *TestLogger) Debugf(format string, args ...interface{}) { t.log("DEBUG", format, args...) }
func (t *TestLogger) Infof(format string, args ...interface{})  { t.log("INFO", format, args...) }
func (t *TestLogger) Warnf(format string, args ...interface{})  { t.log("WARN", format, args...) }
func (t *TestLogger) Errorf(format string, args ...interface{}) { t.log("ERROR", format, args...) }
func (t *TestLogger) Fatalf(format string, args ...interface{}) { t.log("FATAL", format, args...) }

func (t *TestLogger) log(level, format string, args ...interface{}) {
	t.Lines = append(t.Lines, level+": "+fmt.Sprintf(format, args...))
}
