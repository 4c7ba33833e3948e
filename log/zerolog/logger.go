// Package zerolog implements syncbox.Logger over github.com/rs/zerolog,
// translating the interface's flat key, value, key, value... call
// signature into zerolog's structured event fields.
package zerolog

import (
	"github.com/rs/zerolog"

	"github.com/relaysync/syncbox"
)

// Logger implements syncbox.Logger by wrapping a zerolog.Logger.
type Logger struct {
	log zerolog.Logger
}

var _ syncbox.Logger = Logger{}

// New wraps log as a syncbox.Logger.
func New(log zerolog.Logger) Logger {
	return Logger{log: log}
}

// Debug implements syncbox.Logger.
func (l Logger) Debug(msg string, args ...any) {
	withFields(l.log.Debug(), args).Msg(msg)
}

// Info implements syncbox.Logger.
func (l Logger) Info(msg string, args ...any) {
	withFields(l.log.Info(), args).Msg(msg)
}

// Warn implements syncbox.Logger.
func (l Logger) Warn(msg string, args ...any) {
	withFields(l.log.Warn(), args).Msg(msg)
}

// Error implements syncbox.Logger.
func (l Logger) Error(msg string, args ...any) {
	withFields(l.log.Error(), args).Msg(msg)
}

// withFields pairs up args as key, value, key, value... and attaches them
// to event. A trailing unpaired key is attached with a nil value rather
// than dropped, so a caller's logging bug is visible instead of silent.
func withFields(event *zerolog.Event, args []any) *zerolog.Event {
	for i := 0; i < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		if i+1 >= len(args) {
			event = event.Interface(key, nil)

			continue
		}
		event = event.Interface(key, args[i+1])
	}

	return event
}
