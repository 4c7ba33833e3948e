package mysqlstore

import "github.com/relaysync/syncbox"

const defaultTable = "syncbox_operations"

// Config defines MySQL store behavior.
type Config struct {
	Table       string
	Clock       syncbox.Clock
	IDGenerator syncbox.IDGenerator
}

func (c Config) withDefaults() Config {
	if c.Table == "" {
		c.Table = defaultTable
	}
	if c.Clock == nil {
		c.Clock = syncbox.SystemClock{}
	}
	if c.IDGenerator == nil {
		c.IDGenerator = syncbox.NewUUIDv7Generator(c.Clock)
	}

	return c
}

// Option configures the MySQL store.
type Option func(*Config)

// WithTable sets the operations table name. May be schema-qualified
// ("schema.table").
func WithTable(name string) Option {
	return func(c *Config) {
		c.Table = name
	}
}

// WithClock overrides the time source used for timestamps not supplied by
// the caller's nowMS argument (used only to seed the default id generator).
func WithClock(clock syncbox.Clock) Option {
	return func(c *Config) {
		c.Clock = clock
	}
}

// WithIDGenerator sets Config.IDGenerator. The store itself never reads it
// and never generates ids: Put requires op.ID to be set, and ids are
// assigned by Outbox.Enqueue.
func WithIDGenerator(gen syncbox.IDGenerator) Option {
	return func(c *Config) {
		c.IDGenerator = gen
	}
}
