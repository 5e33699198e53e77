package db

// --------------------------------------------------------------------------
// Helper Types
// --------------------------------------------------------------------------

type Implementation string

const (
	ImplMaple Implementation = "maple"
	ImplPlain Implementation = "plain"
)

// Feature represents database features as bit flags
type Feature uint64

const (
	FeatureSet    Feature = 1 << iota // Support for Set operations
	FeatureGet                        // Support for Get operations
	FeatureDelete                     // Support for Delete operations
	FeatureHas                        // Support for Has operations
	FeatureRange                      // Support for Range operations
	FeatureClear                      // Support for Clear operations
	FeatureExpiry                     // Entries carry an expiry slot that Get honours
)

func (f Feature) String() string {
	switch f {
	case FeatureSet:
		return "Set"
	case FeatureGet:
		return "Get"
	case FeatureDelete:
		return "Delete"
	case FeatureHas:
		return "Has"
	case FeatureRange:
		return "Range"
	case FeatureClear:
		return "Clear"
	case FeatureExpiry:
		return "Expiry"
	default:
		return "Unknown"
	}
}

type DatabaseInfo struct {
	SizeBytes         int            `json:"size_bytes"`
	Keys              int            `json:"keys"`
	DbType            Implementation `json:"db_type"`
	SupportedFeatures []Feature      `json:"supported_features"`
	Metadata          interface{}    `json:"metadata"`
}

// --------------------------------------------------------------------------
// Entry Type (value with metadata)
// --------------------------------------------------------------------------

// Entry is the cached state of one key: the encoded value and the metadata
// copied from the record that wrote it.
type Entry struct {
	Value    []byte // encoded value.Value
	ExpireAt int64  // unix milliseconds, 0 = never
	Seq      uint64 // logical index of the write that produced this entry
}

// Expired reports whether the entry is expired at nowMs (unix milliseconds).
func (e Entry) Expired(nowMs int64) bool {
	return e.ExpireAt != 0 && nowMs >= e.ExpireAt
}

// --------------------------------------------------------------------------
// Database Interface
// --------------------------------------------------------------------------

// KVDB is the in-memory mirror of the data file: a key to Entry map.
// Implementations do no I/O and never evict on their own, the owning store
// decides when an entry is written, expired or removed.
//
// Implementations must be safe for concurrent readers. Mutations are issued by
// a single writer at a time (the store holds its exclusive lock).
type KVDB interface {

	// --------------------------------------------------------------------------
	// Write Operations
	// --------------------------------------------------------------------------

	// Set inserts or replaces the entry for key.
	// The entry value must not be modified by the caller afterward.
	Set(key string, entry Entry)

	// Delete removes key and reports whether it was present.
	Delete(key string) (deleted bool)

	// Clear removes all entries.
	Clear()

	// --------------------------------------------------------------------------
	// Query Operations
	// --------------------------------------------------------------------------

	// Get returns the entry for key, expired or not.
	// The returned Value is shared and must be treated as read-only.
	Get(key string) (entry Entry, loaded bool)

	// Has reports whether an entry for key exists, expired or not.
	Has(key string) (loaded bool)

	// Range calls fn for every entry until fn returns false.
	// The order is unspecified.
	Range(fn func(key string, entry Entry) bool)

	// Len returns the number of entries, expired ones included.
	Len() int

	// --------------------------------------------------------------------------
	// Feature Support
	// --------------------------------------------------------------------------

	// SupportsFeature checks if the database implementation supports the specified feature.
	// Multiple features can be checked at once using bitwise OR (|) operator.
	SupportsFeature(feature Feature) (ok bool)

	// GetInfo returns information about the database.
	GetInfo() (info DatabaseInfo)

	// Close releases the resources held by the database.
	Close() (err error)
}
