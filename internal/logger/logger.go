// Package logger provides centralized logging for the tutor.
// It configures a charmbracelet/log logger with level and output taken from flags or environment.
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
)

// Logger is the global logger instance used throughout the tutor.
var Logger *log.Logger

// output is where component loggers write; it follows the global logger's destination.
var output io.Writer = os.Stderr

func init() {
	Logger = log.New(os.Stderr)
	Logger.SetTimeFormat("")
	Logger.SetLevel(log.InfoLevel)
}

// Configure sets up the logger from CLI flags and environment variables.
// CLI flags take precedence over TUTOR_LOG_LEVEL.
func Configure(logLevel string, logFile string) error {
	level := logLevel
	if level == "" {
		level = strings.ToLower(os.Getenv("TUTOR_LOG_LEVEL"))
	}

	var w io.Writer = os.Stderr
	if logFile != "" {
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			return err
		}
		w = file
	}

	output = w
	Logger = log.New(w)
	Logger.SetTimeFormat("")
	Logger.SetLevel(parseLogLevel(level))
	return nil
}

// SetOutput redirects the global logger, mostly useful in tests.
func SetOutput(w io.Writer) {
	output = w
	Logger.SetOutput(w)
}

// parseLogLevel maps a level name to a log.Level, falling back to info.
func parseLogLevel(level string) log.Level {
	if level == "" {
		return log.InfoLevel
	}
	parsed, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return log.InfoLevel
	}
	return parsed
}

// IsDebug reports whether debug output is enabled on the global logger.
func IsDebug() bool {
	return Logger.GetLevel() <= log.DebugLevel
}

// Debug logs a debug message with optional key-value pairs.
func Debug(msg interface{}, keyvals ...interface{}) {
	Logger.Debug(msg, keyvals...)
}

// Info logs an info message with optional key-value pairs.
func Info(msg interface{}, keyvals ...interface{}) {
	Logger.Info(msg, keyvals...)
}

// Warn logs a warning message with optional key-value pairs.
func Warn(msg interface{}, keyvals ...interface{}) {
	Logger.Warn(msg, keyvals...)
}

// Error logs an error message with optional key-value pairs.
func Error(msg interface{}, keyvals ...interface{}) {
	Logger.Error(msg, keyvals...)
}

// Fatal logs a fatal message with optional key-value pairs and exits.
func Fatal(msg interface{}, keyvals ...interface{}) {
	Logger.Fatal(msg, keyvals...)
}

// levelBadges are the background colors of the level labels in component loggers.
var levelBadges = []struct {
	level log.Level
	label string
	color string
}{
	{log.DebugLevel, "DEBUG", "240"},
	{log.InfoLevel, "INFO", "33"},
	{log.WarnLevel, "WARN", "214"},
	{log.ErrorLevel, "ERROR", "196"},
}

// NewStyledLogger creates a component logger with a prefix such as "Pipeline" or "Store".
func NewStyledLogger(prefix string) *log.Logger {
	styles := log.DefaultStyles()
	for _, badge := range levelBadges {
		styles.Levels[badge.level] = lipgloss.NewStyle().
			SetString(badge.label).
			Padding(0, 1, 0, 1).
			Background(lipgloss.Color(badge.color)).
			Foreground(lipgloss.Color("15"))
	}

	// Keys that show up on every turn log line
	styles.Keys["turn"] = lipgloss.NewStyle().Foreground(lipgloss.Color("99"))
	styles.Keys["stage"] = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	styles.Keys["attempt"] = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	styles.Keys["error"] = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	styles.Values["error"] = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))

	componentLogger := log.NewWithOptions(output, log.Options{
		Prefix: prefix + " ",
		Level:  Logger.GetLevel(),
	})
	componentLogger.SetStyles(styles)

	return componentLogger
}
