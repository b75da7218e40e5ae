package logging

import (
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
)

// Setup wires the process-wide structured logger: JSON on stdout with
// severity/timestamp/message keys, tagged with the service name and, when
// provided, the deployment environment. The standard library logger is
// bridged so legacy call sites keep working. The returned logger is also
// installed as the slog default.
func Setup(service, env string) *slog.Logger {
	return SetupWithWriter(os.Stdout, service, env)
}

// SetupWithWriter is Setup with an explicit output destination.
func SetupWithWriter(w io.Writer, service, env string) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{ReplaceAttr: renameAttr})

	attrs := []slog.Attr{slog.String("service", strings.TrimSpace(service))}
	if env = strings.TrimSpace(env); env != "" {
		attrs = append(attrs, slog.String("env", env))
	}
	tagged := handler.WithAttrs(attrs)

	logger := slog.New(tagged)
	slog.SetDefault(logger)

	bridge := slog.NewLogLogger(tagged, slog.LevelInfo)
	bridge.SetFlags(0)
	log.SetOutput(bridge.Writer())
	log.SetFlags(0)
	log.SetPrefix("")

	return logger
}

func renameAttr(groups []string, attr slog.Attr) slog.Attr {
	switch attr.Key {
	case slog.TimeKey:
		attr.Key = "timestamp"
	case slog.LevelKey:
		return slog.String("severity", strings.ToUpper(attr.Value.String()))
	case slog.MessageKey:
		attr.Key = "message"
	}
	return attr
}
