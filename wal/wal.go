package wal

import "io"

// Config configures a Wal.
type Config struct {
	Path         string
	FsyncOnWrite bool
}

// Wal appends records to, and replays records from, a single log file. It
// opens a fresh Writer per Append, matching the reference implementation:
// the log is not meant to be held open across a long-lived process, only
// appended to at the moment a mutation must be made durable.
type Wal struct {
	cfg Config
}

// New constructs a Wal over cfg.
func New(cfg Config) *Wal {
	return &Wal{cfg: cfg}
}

// Append writes rec and returns the offset it was written at.
func (w *Wal) Append(rec Record) (int64, error) {
	writer, err := NewWriter(WriterConfig{Path: w.cfg.Path, FsyncOnWrite: w.cfg.FsyncOnWrite})
	if err != nil {
		return 0, err
	}
	defer writer.Close()

	return writer.Append(rec)
}

// Replay reads every record from fromOffset onward, calling onRecord for
// each, and returns the offset of the last record read or -1 if none were
// read. A truncated tail record stops the replay without error.
func (w *Wal) Replay(fromOffset int64, onRecord func(Record)) (int64, error) {
	reader, err := NewReader(w.cfg.Path)
	if err != nil {
		return -1, err
	}
	defer reader.Close()

	if err := reader.Seek(fromOffset); err != nil {
		return -1, err
	}

	last := int64(-1)
	for {
		rec, err := reader.Next()
		if err != nil {
			if err == io.EOF {
				break
			}

			return last, err
		}

		onRecord(rec)
		last = reader.CurrentOffset()
	}

	return last, nil
}
