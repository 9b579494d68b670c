package logger

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

type Level int

const (
	Debug Level = iota
	Info
	Warn
	Error
)

func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return Debug
	case "info", "":
		return Info
	case "warn", "warning":
		return Warn
	case "error":
		return Error
	default:
		return Info
	}
}

func (l Level) String() string {
	switch l {
	case Debug:
		return "debug"
	case Info:
		return "info"
	case Warn:
		return "warn"
	case Error:
		return "error"
	default:
		return "info"
	}
}

func (l Level) logrus() logrus.Level {
	switch l {
	case Debug:
		return logrus.DebugLevel
	case Warn:
		return logrus.WarnLevel
	case Error:
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

func ParseFormat(s string) Format {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON
	default:
		return FormatText
	}
}

// Logger es la interfaz que reciben servicios y adapters.
// Los campos van como map para no acoplar a los callers con logrus.
type Logger interface {
	With(fields map[string]any) Logger

	Debug(msg string, fields map[string]any)
	Info(msg string, fields map[string]any)
	Warn(msg string, fields map[string]any)
	Error(msg string, fields map[string]any)
}

type Options struct {
	Level  Level
	Format Format
	App    string

	// Output por defecto es stdout; en tests se puede inyectar un buffer.
	Output io.Writer
}

// logrusLogger implementa Logger sobre un *logrus.Entry (comparte el logger base).
type logrusLogger struct {
	entry *logrus.Entry
}

func New(opts Options) Logger {
	l := logrus.New()

	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	l.SetOutput(out)
	l.SetLevel(opts.Level.logrus())

	switch opts.Format {
	case FormatJSON:
		l.SetFormatter(&logrus.JSONFormatter{
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime: "ts",
			},
		})
	default:
		// logrus ordena las keys por defecto: salida estable en tests/logs.
		l.SetFormatter(&logrus.TextFormatter{
			DisableColors: true,
			FullTimestamp: true,
		})
	}

	entry := logrus.NewEntry(l)
	if app := strings.TrimSpace(opts.App); app != "" {
		entry = entry.WithField("app", app)
	}
	return &logrusLogger{entry: entry}
}

// Nop descarta todo. Útil en tests y como default de constructores.
func Nop() Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return &logrusLogger{entry: logrus.NewEntry(l)}
}

func (l *logrusLogger) With(fields map[string]any) Logger {
	if len(fields) == 0 {
		return l
	}
	return &logrusLogger{entry: l.entry.WithFields(clean(fields))}
}

func (l *logrusLogger) Debug(msg string, fields map[string]any) {
	l.entry.WithFields(clean(fields)).Debug(msg)
}

func (l *logrusLogger) Info(msg string, fields map[string]any) {
	l.entry.WithFields(clean(fields)).Info(msg)
}

func (l *logrusLogger) Warn(msg string, fields map[string]any) {
	l.entry.WithFields(clean(fields)).Warn(msg)
}

func (l *logrusLogger) Error(msg string, fields map[string]any) {
	l.entry.WithFields(clean(fields)).Error(msg)
}

// clean descarta keys vacías y convierte errores a string para que el
// JSONFormatter no los serialice como {}.
func clean(fields map[string]any) logrus.Fields {
	out := logrus.Fields{}
	for k, v := range fields {
		if strings.TrimSpace(k) == "" {
			continue
		}
		if err, ok := v.(error); ok && err != nil {
			out[k] = err.Error()
			continue
		}
		out[k] = v
	}
	return out
}
