package wal

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// Reader reads Records sequentially from a log file written by Writer.
type Reader struct {
	f      *os.File
	offset int64
}

// NewReader opens path for reading. A missing file yields an empty
// reader: Next always returns io.EOF.
func NewReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Reader{}, nil
		}

		return nil, fmt.Errorf("wal: open file: %w", err)
	}

	return &Reader{f: f}, nil
}

// Seek positions the reader at offset.
func (r *Reader) Seek(offset int64) error {
	r.offset = offset
	if r.f == nil {
		return nil
	}

	_, err := r.f.Seek(offset, io.SeekStart)
	if err != nil {
		return fmt.Errorf("wal: seek: %w", err)
	}

	return nil
}

// CurrentOffset returns the offset of the last record returned by Next.
func (r *Reader) CurrentOffset() int64 {
	return r.offset
}

// Next reads and returns the next record. It returns io.EOF at a clean
// end of file and also at a truncated tail record (a crash mid-append
// left a partial header or body) — callers should treat both the same
// way: stop replaying, the log has nothing more to offer.
func (r *Reader) Next() (Record, error) {
	if r.f == nil {
		return Record{}, io.EOF
	}

	start, err := r.f.Seek(0, io.SeekCurrent)
	if err != nil {
		return Record{}, fmt.Errorf("wal: tell: %w", err)
	}

	header := make([]byte, headerSize)
	if _, err := io.ReadFull(r.f, header); err != nil {
		return Record{}, io.EOF
	}

	off := 0
	gotMagic := binary.LittleEndian.Uint32(header[off:])
	off += 4
	gotVersion := binary.LittleEndian.Uint16(header[off:])
	off += 2
	recType := RecordType(header[off])
	off++
	off++ // reserved
	tsMS := int64(binary.LittleEndian.Uint64(header[off:]))
	off += 8
	idLen := binary.LittleEndian.Uint32(header[off:])
	off += 4
	payloadLen := binary.LittleEndian.Uint32(header[off:])
	off += 4
	errorLen := binary.LittleEndian.Uint32(header[off:])
	off += 4
	nextRetryAtMS := int64(binary.LittleEndian.Uint64(header[off:]))

	if gotMagic != magic || gotVersion != version {
		return Record{}, io.EOF
	}

	body := make([]byte, int(idLen)+int(payloadLen)+int(errorLen))
	if _, err := io.ReadFull(r.f, body); err != nil {
		return Record{}, io.EOF
	}

	rec := Record{
		Type:          recType,
		TSMS:          tsMS,
		NextRetryAtMS: nextRetryAtMS,
		ID:            string(body[:idLen]),
		Payload:       append([]byte(nil), body[idLen:idLen+payloadLen]...),
		Error:         string(body[idLen+payloadLen:]),
	}

	r.offset = start

	return rec, nil
}

// Close closes the underlying file, if any.
func (r *Reader) Close() error {
	if r.f == nil {
		return nil
	}

	return r.f.Close()
}
