package devslog

import (
	"io"
	"log/slog"
	"os"

	"github.com/golang-cz/devslog"
)

// NewDefault writes colored records to stderr, leaving stdout to command output.
func NewDefault(level slog.Level) *slog.Logger {
	return New(os.Stderr, level)
}

func New(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(devslog.NewHandler(w, &devslog.Options{
		HandlerOptions:     &slog.HandlerOptions{AddSource: true, Level: level},
		MaxErrorStackTrace: 20,
		MaxSlicePrintSize:  20,
		SortKeys:           true,
		TimeFormat:         "[15:04:05.000]",
		StringerFormatter:  true,
	}))
}
