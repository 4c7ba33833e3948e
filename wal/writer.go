package wal

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// WriterConfig configures a Writer.
type WriterConfig struct {
	// Path is the log file. Opened in append mode and created if missing.
	Path string
	// FsyncOnWrite calls Sync after every append. Slower, safer.
	FsyncOnWrite bool
}

// Writer appends Records to a single log file.
type Writer struct {
	cfg WriterConfig

	mu sync.Mutex
	f  *os.File
}

// NewWriter opens (or creates) the log file for appending.
func NewWriter(cfg WriterConfig) (*Writer, error) {
	w := &Writer{cfg: cfg}
	if err := w.open(); err != nil {
		return nil, err
	}

	return w, nil
}

func (w *Writer) open() error {
	if dir := filepath.Dir(w.cfg.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("wal: create dir: %w", err)
		}
	}

	f, err := os.OpenFile(w.cfg.Path, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("wal: open file: %w", err)
	}

	w.f = f

	return nil
}

// Append writes rec and returns the byte offset it was written at.
func (w *Writer) Append(rec Record) (int64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.f == nil {
		if err := w.open(); err != nil {
			return 0, err
		}
	}

	offset, err := w.f.Seek(0, os.SEEK_END)
	if err != nil {
		return 0, fmt.Errorf("wal: seek: %w", err)
	}

	buf := encode(rec)
	if _, err := w.f.Write(buf); err != nil {
		return 0, fmt.Errorf("wal: write: %w", err)
	}

	if w.cfg.FsyncOnWrite {
		if err := w.f.Sync(); err != nil {
			return 0, fmt.Errorf("wal: fsync: %w", err)
		}
	}

	return offset, nil
}

// Flush fsyncs the log file.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.f == nil {
		return nil
	}

	return w.f.Sync()
}

// Close closes the underlying file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.f == nil {
		return nil
	}

	err := w.f.Close()
	w.f = nil

	return err
}

func encode(r Record) []byte {
	idLen := uint32(len(r.ID))
	payloadLen := uint32(len(r.Payload))
	errorLen := uint32(len(r.Error))

	buf := make([]byte, headerSize+int(idLen)+int(payloadLen)+int(errorLen))

	off := 0
	binary.LittleEndian.PutUint32(buf[off:], magic)
	off += 4
	binary.LittleEndian.PutUint16(buf[off:], version)
	off += 2
	buf[off] = byte(r.Type)
	off++
	buf[off] = 0 // reserved
	off++
	binary.LittleEndian.PutUint64(buf[off:], uint64(r.TSMS))
	off += 8
	binary.LittleEndian.PutUint32(buf[off:], idLen)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], payloadLen)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], errorLen)
	off += 4
	binary.LittleEndian.PutUint64(buf[off:], uint64(r.NextRetryAtMS))
	off += 8

	off += copy(buf[off:], r.ID)
	off += copy(buf[off:], r.Payload)
	copy(buf[off:], r.Error)

	return buf
}
