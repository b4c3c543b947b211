package logging

import (
	"log"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger writes run logs to a rotating file under the project's dot
// directory. Console output is handled separately by pkg/console; the file
// log keeps the full record, including entries too noisy for the terminal.
type Logger struct {
	logger  *log.Logger
	logFile *lumberjack.Logger
}

// New creates a logger rooted at projectDir. The log file lives at
// <projectDir>/.agentic-typer/run.log and rotates at 15 MB.
func New(projectDir string) *Logger {
	logFile := &lumberjack.Logger{
		Filename:   filepath.Join(projectDir, ".agentic-typer", "run.log"),
		MaxSize:    15, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	}
	return &Logger{
		logger:  log.New(logFile, "", log.LstdFlags),
		logFile: logFile,
	}
}

// Log writes a message to the log file only.
func (l *Logger) Log(message string) {
	l.logger.Print(message)
}

// Logf writes a formatted message to the log file only.
func (l *Logger) Logf(format string, v ...interface{}) {
	l.logger.Printf(format, v...)
}

// LogError records an error without terminating the run.
func (l *Logger) LogError(err error) {
	l.logger.Printf("Error: %s", err)
}

// LogProcessStep records a step of the repair process.
func (l *Logger) LogProcessStep(step string) {
	l.logger.Printf("Process Step: %s", step)
}

// LogScopeResult records the outcome of one repair scope.
func (l *Logger) LogScopeResult(scope string, remaining int, errMsg string) {
	l.logger.Printf("Scope Result - Scope: %s, Remaining: %d, Error: %s", scope, remaining, errMsg)
}

// Close flushes and closes the underlying log file.
func (l *Logger) Close() error {
	if l.logFile != nil {
		return l.logFile.Close()
	}
	return nil
}

// Path returns the location of the log file for user-facing messages.
func (l *Logger) Path() string {
	return l.logFile.Filename
}
