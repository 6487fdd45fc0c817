package logging

import (
	"encoding/json"
	"io"
	"time"

	"github.com/rs/zerolog"
)

// runtimeLevels maps the numeric levels emitted by runtime loggers to names.
var runtimeLevels = map[int]string{
	10: "trace",
	20: "debug",
	30: "info",
	40: "warn",
	50: "error",
	60: "fatal",
}

// RecordRenderer prints raw runtime log records in human-readable form.
// Records that are not JSON objects are passed through unchanged.
type RecordRenderer struct {
	out     io.Writer
	console zerolog.ConsoleWriter
}

// NewRecordRenderer creates a renderer writing to w.
func NewRecordRenderer(w io.Writer, noColor bool) *RecordRenderer {
	return &RecordRenderer{
		out: w,
		console: zerolog.ConsoleWriter{
			Out:        w,
			NoColor:    noColor,
			TimeFormat: time.RFC3339,
		},
	}
}

// Render writes one record.
func (r *RecordRenderer) Render(record []byte) error {
	normalized, ok := normalizeRecord(record)
	if !ok {
		if _, err := r.out.Write(record); err != nil {
			return err
		}
		if len(record) == 0 || record[len(record)-1] != '\n' {
			_, err := r.out.Write([]byte{'\n'})
			return err
		}
		return nil
	}
	_, err := r.console.Write(normalized)
	return err
}

// normalizeRecord rewrites a runtime record into zerolog's field layout:
// "msg" becomes "message", numeric levels become names, and epoch
// millisecond timestamps become RFC3339 strings.
func normalizeRecord(record []byte) ([]byte, bool) {
	var fields map[string]any
	if err := json.Unmarshal(record, &fields); err != nil {
		return nil, false
	}

	if msg, ok := fields["msg"]; ok {
		if _, exists := fields[zerolog.MessageFieldName]; !exists {
			fields[zerolog.MessageFieldName] = msg
			delete(fields, "msg")
		}
	}

	if lvl, ok := fields[zerolog.LevelFieldName].(float64); ok {
		if name, known := runtimeLevels[int(lvl)]; known {
			fields[zerolog.LevelFieldName] = name
		}
	}

	if ts, ok := fields[zerolog.TimestampFieldName].(float64); ok {
		fields[zerolog.TimestampFieldName] = time.UnixMilli(int64(ts)).Format(time.RFC3339)
	}

	out, err := json.Marshal(fields)
	if err != nil {
		return nil, false
	}
	return out, true
}
