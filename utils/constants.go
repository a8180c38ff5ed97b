package utils

import (
	"time"
)

// Sequence constants
const (
	// OrderNumberCounter is the counter that mints customer order numbers
	OrderNumberCounter = "orderNumber"

	// MaxCounterNameLength mirrors the sequence_counters.name column size
	MaxCounterNameLength = 64

	// DefaultSequenceOperationTimeout bounds a store round trip when the
	// caller supplies no deadline
	DefaultSequenceOperationTimeout = 5 * time.Second

	// DefaultRequestTimeout bounds request handling in HTTP handlers
	DefaultRequestTimeout = 30 * time.Second
)

// CORS and security constants
const (
	// CORSMaxAge is the maximum age for CORS preflight requests (24 hours)
	CORSMaxAge = 86400

	APIKeyHeader = "X-API-Key"
)
