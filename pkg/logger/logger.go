package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// LogLevel represents the logging level
type LogLevel int

const (
	// DebugLevel logs debug messages
	DebugLevel LogLevel = iota
	// InfoLevel logs info messages
	InfoLevel
	// WarnLevel logs warning messages
	WarnLevel
	// ErrorLevel logs error messages
	ErrorLevel
)

// String returns string representation of log level
func (l LogLevel) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLogLevel parses a log level from string
func ParseLogLevel(level string) LogLevel {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return DebugLevel
	case "INFO":
		return InfoLevel
	case "WARN", "WARNING":
		return WarnLevel
	case "ERROR":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// LogFormat represents the output format
type LogFormat int

const (
	// TextFormat outputs logs in human-readable text format
	TextFormat LogFormat = iota
	// JSONFormat outputs logs in JSON format
	JSONFormat
)

// Logger is a structured logger. Field values must already be log-safe:
// raw record values never reach a logger, only masked copies do.
type Logger struct {
	level   LogLevel
	format  LogFormat
	output  io.Writer
	fields  map[string]interface{}
	service string
	version string
}

// Config represents logger configuration
type Config struct {
	Level   LogLevel  `yaml:"level" json:"level"`
	Format  LogFormat `yaml:"format" json:"format"`
	Output  io.Writer `yaml:"-" json:"-"`
	Service string    `yaml:"service" json:"service"`
	Version string    `yaml:"version" json:"version"`
}

// LogEntry represents a single log entry
type LogEntry struct {
	Timestamp string                 `json:"timestamp"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Service   string                 `json:"service,omitempty"`
	Version   string                 `json:"version,omitempty"`
	TenantID  string                 `json:"tenant_id,omitempty"`
	Domain    string                 `json:"domain,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// NewLogger creates a new structured logger
func NewLogger(config *Config) *Logger {
	if config == nil {
		config = &Config{
			Level:  InfoLevel,
			Format: JSONFormat,
		}
	}
	if config.Output == nil {
		config.Output = os.Stdout
	}

	return &Logger{
		level:   config.Level,
		format:  config.Format,
		output:  config.Output,
		fields:  make(map[string]interface{}),
		service: config.Service,
		version: config.Version,
	}
}

// NewDefaultLogger creates a logger with default configuration
func NewDefaultLogger(service, version string) *Logger {
	return NewLogger(&Config{
		Level:   InfoLevel,
		Format:  JSONFormat,
		Output:  os.Stdout,
		Service: service,
		Version: version,
	})
}

// WithField creates a new logger with an additional field
func (l *Logger) WithField(key string, value interface{}) *Logger {
	fields := make(map[string]interface{}, len(l.fields)+1)
	for k, v := range l.fields {
		fields[k] = v
	}
	fields[key] = value
	return l.withFields(fields)
}

// WithFields creates a new logger with additional fields
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return l.withFields(merged)
}

// WithTenant creates a new logger scoped to a tenant and domain.
func (l *Logger) WithTenant(tenantID, domain string) *Logger {
	fields := make(map[string]interface{}, len(l.fields)+2)
	for k, v := range l.fields {
		fields[k] = v
	}
	if tenantID != "" {
		fields["tenant_id"] = tenantID
	}
	if domain != "" {
		fields["domain"] = domain
	}
	return l.withFields(fields)
}

func (l *Logger) withFields(fields map[string]interface{}) *Logger {
	return &Logger{
		level:   l.level,
		format:  l.format,
		output:  l.output,
		fields:  fields,
		service: l.service,
		version: l.version,
	}
}

// Debug logs a debug message
func (l *Logger) Debug(message string, args ...interface{}) {
	l.log(DebugLevel, message, args...)
}

// Info logs an info message
func (l *Logger) Info(message string, args ...interface{}) {
	l.log(InfoLevel, message, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(message string, args ...interface{}) {
	l.log(WarnLevel, message, args...)
}

// Error logs an error message
func (l *Logger) Error(message string, args ...interface{}) {
	l.log(ErrorLevel, message, args...)
}

func (l *Logger) log(level LogLevel, message string, args ...interface{}) {
	if level < l.level {
		return
	}

	if len(args) > 0 {
		message = fmt.Sprintf(message, args...)
	}

	entry := &LogEntry{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Level:     level.String(),
		Message:   message,
		Service:   l.service,
		Version:   l.version,
		Fields:    make(map[string]interface{}),
	}

	for k, v := range l.fields {
		switch k {
		case "tenant_id":
			if s, ok := v.(string); ok {
				entry.TenantID = s
			}
		case "domain":
			if s, ok := v.(string); ok {
				entry.Domain = s
			}
		case "request_id":
			if s, ok := v.(string); ok {
				entry.RequestID = s
			}
		default:
			entry.Fields[k] = v
		}
	}
	if len(entry.Fields) == 0 {
		entry.Fields = nil
	}

	switch l.format {
	case JSONFormat:
		if data, err := json.Marshal(entry); err == nil {
			fmt.Fprintln(l.output, string(data))
		}
	default:
		l.writeText(entry)
	}
}

func (l *Logger) writeText(entry *LogEntry) {
	var sb strings.Builder
	sb.WriteString(entry.Timestamp)
	sb.WriteString(" [")
	sb.WriteString(entry.Level)
	sb.WriteString("] ")
	if entry.Service != "" {
		sb.WriteString(entry.Service)
		sb.WriteString(": ")
	}
	sb.WriteString(entry.Message)
	if entry.TenantID != "" {
		sb.WriteString(" tenant_id=")
		sb.WriteString(entry.TenantID)
	}
	if entry.Domain != "" {
		sb.WriteString(" domain=")
		sb.WriteString(entry.Domain)
	}
	for k, v := range entry.Fields {
		sb.WriteString(fmt.Sprintf(" %s=%v", k, v))
	}
	fmt.Fprintln(l.output, sb.String())
}
