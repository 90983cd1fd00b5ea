package store

// Config holds settings for the bundled backends. Zero values fall back
// to defaults via validate.
type Config struct {
	// DynamoTable is the DynamoDB table holding one item per key.
	// Default: "lattice_keys"
	DynamoTable string

	// GCSBucket is the bucket name for the GCS backend. Required when
	// that backend is used.
	GCSBucket string

	// GCSPrefix is an optional object-name prefix scoping all keys
	// within the bucket. No trailing slash; empty means bucket root.
	GCSPrefix string

	// BadgerPath is the directory for badger database files. Ignored
	// when BadgerInMemory is set.
	BadgerPath string

	// BadgerInMemory opens badger without disk persistence. Useful for
	// tests.
	BadgerInMemory bool

	// BadgerSyncWrites enables synchronous writes for durability.
	BadgerSyncWrites bool
}

// DefaultConfig returns settings suitable for development use.
func DefaultConfig() Config {
	return Config{
		DynamoTable:      "lattice_keys",
		BadgerSyncWrites: true,
	}
}

// validate fills defaults for unset fields.
func (c *Config) validate() {
	if c.DynamoTable == "" {
		c.DynamoTable = "lattice_keys"
	}
}
