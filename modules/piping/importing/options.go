package importing

import "time"

// Options is the caller's knob bag for one import run. Zero value plus
// withDefaults gives the documented defaults.
type Options struct {
	// MaxRows caps how many data rows are read from the file.
	MaxRows int
	// MaxColumns caps how many columns are read from the file.
	MaxColumns int
	// BatchSize bounds validation batch size (memory, not semantics).
	BatchSize int
	// ChunkSize bounds each persistence transaction.
	ChunkSize int
	// ChunkTimeout bounds each persistence transaction in wall time.
	ChunkTimeout time.Duration

	// StrictMode makes reference and store-duplicate violations errors
	// instead of warnings.
	StrictMode bool
	// SkipDuplicates emits no new instances for keys whose persisted count
	// already covers the requested quantity.
	SkipDuplicates bool
	// UpdateExisting refreshes descriptive fields on persisted instances
	// of keys seen in the file. Never renumbers.
	UpdateExisting bool
	// CreateMissingDrawings creates bare drawings for unresolved
	// references instead of flagging them.
	CreateMissingDrawings bool
	// DryRun stops after validation; nothing is persisted.
	DryRun bool
	// AllOrNothing aborts remaining chunks after the first chunk failure.
	// Chunks committed before the failure stay committed.
	AllOrNothing bool
}

func (o Options) withDefaults() Options {
	if o.MaxRows <= 0 {
		o.MaxRows = 20000
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 5000
	}
	if o.ChunkSize <= 0 {
		o.ChunkSize = 150
	}
	if o.ChunkSize > 1000 {
		o.ChunkSize = 1000
	}
	if o.ChunkTimeout <= 0 {
		o.ChunkTimeout = 30 * time.Second
	}
	return o
}
