package wal

// RecordType identifies which operation a Record describes.
type RecordType uint8

const (
	// PutOperation records an Outbox.Enqueue.
	PutOperation RecordType = 1
	// MarkDone records a successful delivery.
	MarkDone RecordType = 2
	// MarkFailed records a send failure, retryable or not. Error and
	// NextRetryAtMS distinguish a retry from a permanent failure: a
	// permanent failure carries NextRetryAtMS equal to TSMS.
	MarkFailed RecordType = 3
)

const (
	magic   uint32 = 0x56495857 // "VIXW"
	version uint16 = 1

	// headerSize is the fixed-width prefix of every record on disk:
	// magic(4) + version(2) + type(1) + reserved(1) + ts_ms(8) +
	// id_len(4) + payload_len(4) + error_len(4) + next_retry_at_ms(8).
	headerSize = 4 + 2 + 1 + 1 + 8 + 4 + 4 + 4 + 8
)

// Record is one write-ahead log entry.
type Record struct {
	ID            string
	Type          RecordType
	TSMS          int64
	Payload       []byte
	Error         string
	NextRetryAtMS int64
}
