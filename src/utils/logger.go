package utils

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// logFiles lists the files managed by the logger, in rotation order
var logFiles = []string{"access.log", "server.log", "error.log", "audit.log", "debug.log"}

// Logger handles application logging to both stdout and files
type Logger struct {
	accessLog *log.Logger
	serverLog *log.Logger
	errorLog  *log.Logger
	auditLog  *log.Logger
	debugLog  *log.Logger
	files     []*os.File
	logDir    string
	isDebug   bool
	mu        sync.Mutex
}

// AuditEntry is one line of audit.log
type AuditEntry struct {
	Timestamp string `json:"timestamp"`
	RequestID string `json:"request_id,omitempty"`
	Actor     string `json:"actor"`
	Action    string `json:"action"`
	Resource  string `json:"resource"`
	IP        string `json:"ip,omitempty"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
}

// NewLogger creates a new logger writing under logDir
func NewLogger(logDir string, debug bool) (*Logger, error) {
	// Permissions - root: 0755, user: 0700
	dirPerm := os.FileMode(0700)
	if os.Geteuid() == 0 {
		dirPerm = 0755
	}
	if err := os.MkdirAll(logDir, dirPerm); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	l := &Logger{
		logDir:  logDir,
		isDebug: debug,
	}

	open := func(name string) (*os.File, error) {
		f, err := os.OpenFile(filepath.Join(logDir, name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			l.Close()
			return nil, fmt.Errorf("failed to open %s: %w", name, err)
		}
		l.files = append(l.files, f)
		return f, nil
	}

	accessFile, err := open("access.log")
	if err != nil {
		return nil, err
	}
	serverFile, err := open("server.log")
	if err != nil {
		return nil, err
	}
	errorFile, err := open("error.log")
	if err != nil {
		return nil, err
	}
	auditFile, err := open("audit.log")
	if err != nil {
		return nil, err
	}

	l.accessLog = log.New(io.MultiWriter(accessFile, os.Stdout), "", 0)
	l.serverLog = log.New(io.MultiWriter(serverFile, os.Stdout), "", 0)
	l.errorLog = log.New(io.MultiWriter(errorFile, os.Stderr), "", 0)
	// Audit only to file, not stdout
	l.auditLog = log.New(auditFile, "", 0)

	// Debug log only in debug mode
	if debug {
		debugFile, err := open("debug.log")
		if err != nil {
			return nil, err
		}
		l.debugLog = log.New(io.MultiWriter(debugFile, os.Stdout), "", 0)
	}

	return l, nil
}

// NewDiscardLogger returns a logger that writes nowhere, for tests and
// one-shot CLI commands
func NewDiscardLogger() *Logger {
	discard := log.New(io.Discard, "", 0)
	return &Logger{
		accessLog: discard,
		serverLog: discard,
		errorLog:  discard,
		auditLog:  discard,
	}
}

func stamp() string {
	return time.Now().Format("2006-01-02 15:04:05")
}

// Info logs an informational message
func (l *Logger) Info(format string, v ...interface{}) {
	l.serverLog.Printf("[%s] [INFO] %s", stamp(), fmt.Sprintf(format, v...))
}

// Warn logs a warning message
func (l *Logger) Warn(format string, v ...interface{}) {
	l.serverLog.Printf("[%s] [WARN] %s", stamp(), fmt.Sprintf(format, v...))
}

// Error logs an error message
func (l *Logger) Error(format string, v ...interface{}) {
	l.errorLog.Printf("[%s] [ERROR] %s", stamp(), fmt.Sprintf(format, v...))
}

// Fatal logs a fatal error and exits
func (l *Logger) Fatal(format string, v ...interface{}) {
	l.errorLog.Printf("[%s] [FATAL] %s", stamp(), fmt.Sprintf(format, v...))
	os.Exit(1)
}

// Debug logs a debug message (only in debug mode)
func (l *Logger) Debug(format string, v ...interface{}) {
	l.mu.Lock()
	debugLog := l.debugLog
	if !l.isDebug {
		debugLog = nil
	}
	l.mu.Unlock()

	if debugLog != nil {
		debugLog.Printf("[%s] [DEBUG] %s", stamp(), fmt.Sprintf(format, v...))
	}
}

// IsDebug reports whether debug messages are being written
func (l *Logger) IsDebug() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.isDebug
}

// SetDebug turns debug output on or off at runtime. debug.log is opened
// the first time debug is turned on and stays open until Close.
func (l *Logger) SetDebug(on bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if on && l.debugLog == nil {
		if l.logDir == "" {
			return fmt.Errorf("debug logging needs a log directory")
		}
		f, err := os.OpenFile(filepath.Join(l.logDir, "debug.log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("failed to open debug.log: %w", err)
		}
		l.files = append(l.files, f)
		l.debugLog = log.New(io.MultiWriter(f, os.Stdout), "", 0)
	}
	l.isDebug = on
	return nil
}

// Printf writes general output to the server log
func (l *Logger) Printf(format string, v ...interface{}) {
	l.serverLog.Printf(format, v...)
}

// Access logs an access entry (Apache Combined Log Format)
func (l *Logger) Access(ip, user, method, path, protocol string, status int, size int64, referer, userAgent string) {
	timestamp := time.Now().Format("02/Jan/2006:15:04:05 -0700")
	if user == "" {
		user = "-"
	}
	if referer == "" {
		referer = "-"
	}
	if userAgent == "" {
		userAgent = "-"
	}

	l.accessLog.Printf(
		`%s - %s [%s] "%s %s %s" %d %d "%s" "%s"`,
		ip, user, timestamp, method, path, protocol, status, size, referer, userAgent,
	)
}

// Audit logs an audit entry as one JSON line
func (l *Logger) Audit(entry AuditEntry) {
	if entry.Timestamp == "" {
		entry.Timestamp = time.Now().Format(time.RFC3339)
	}
	line, err := json.Marshal(entry)
	if err != nil {
		l.Error("Failed to encode audit entry: %v", err)
		return
	}
	l.auditLog.Println(string(line))
}

// Close closes every open log file
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var firstErr error
	for _, f := range l.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	l.files = nil
	return firstErr
}

// RotateLogs archives every non-empty log file with a date suffix, truncates
// the live file and removes archives past the retention period. Called by
// the scheduler.
func (l *Logger) RotateLogs() error {
	if l.logDir == "" {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	timestamp := time.Now().Format("2006-01-02")

	for _, logFile := range logFiles {
		currentPath := filepath.Join(l.logDir, logFile)
		archivePath := filepath.Join(l.logDir, fmt.Sprintf("%s.%s", logFile, timestamp))

		info, err := os.Stat(currentPath)
		if err != nil || info.Size() == 0 {
			continue
		}

		if err := copyFile(currentPath, archivePath); err != nil {
			return fmt.Errorf("failed to archive %s: %w", logFile, err)
		}

		// Files are opened with O_APPEND so writers continue at the new end
		if err := os.Truncate(currentPath, 0); err != nil {
			return fmt.Errorf("failed to truncate %s: %w", logFile, err)
		}
	}

	if err := l.cleanOldLogs(30 * 24 * time.Hour); err != nil {
		return fmt.Errorf("failed to clean old logs: %w", err)
	}

	return nil
}

// cleanOldLogs removes archived logs older than retention
func (l *Logger) cleanOldLogs(retention time.Duration) error {
	cutoff := time.Now().Add(-retention)

	entries, err := os.ReadDir(l.logDir)
	if err != nil {
		return err
	}

	live := make(map[string]bool, len(logFiles))
	for _, name := range logFiles {
		live[name] = true
	}

	for _, entry := range entries {
		if entry.IsDir() || live[entry.Name()] {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(l.logDir, entry.Name())); err != nil {
				l.Error("Failed to remove old log %s: %v", entry.Name(), err)
			}
		}
	}

	return nil
}

// copyFile copies a file from src to dst
func copyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	destFile, err := os.OpenFile(dst, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer destFile.Close()

	_, err = io.Copy(destFile, sourceFile)
	return err
}
