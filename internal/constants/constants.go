// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

import "time"

// Face matching constants
const (
	// HNSWMaxNeighbors is the M parameter of the in-memory roster index
	HNSWMaxNeighbors = 16

	// HNSWEfSearch is the minimum search candidate pool size
	HNSWEfSearch = 100
)

// Image normalization constants
const (
	// NormalizedWidth and NormalizedHeight are the dimensions every upload is
	// resized to before embedding extraction
	NormalizedWidth  = 640
	NormalizedHeight = 480

	// JPEGQuality is the quality used when re-encoding normalized images
	JPEGQuality = 90
)

// Processing constants
const (
	// WorkerPoolSize is the default number of parallel workers for bulk enrollment
	WorkerPoolSize = 4

	// NotifyTimeout bounds how long a check-in notification may block
	NotifyTimeout = 5 * time.Second
)
