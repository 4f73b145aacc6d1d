package log

import (
	"io"
	"log/slog"
	"os"
)

// Setup инициализирует глобальный slog.Logger с выводом в stderr.
// Если debug=true — уровень Debug; если verbose=true — Info; иначе — Warn.
// Функция также делает этот логгер логгером по-умолчанию (slog.SetDefault).
func Setup(debug bool, verbose bool) *slog.Logger {
	return SetupWriter(os.Stderr, debug, verbose)
}

// SetupWriter — то же, что Setup, но с произвольным writer.
// Используется в режиме TUI, где stderr занят отрисовкой экрана.
func SetupWriter(w io.Writer, debug bool, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelInfo
	}
	if debug {
		level = slog.LevelDebug
	}

	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	l := slog.New(h)
	slog.SetDefault(l)
	return l
}
