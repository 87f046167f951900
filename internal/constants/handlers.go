// Package constants provides shared constants used across the codebase.
package constants

// File upload constants
const (
	// MaxRegisterImages is the maximum number of images accepted by one registration
	MaxRegisterImages = 10

	// MultipartMemory is the in-memory part of multipart parsing; the rest spills to disk
	MultipartMemory = 32 << 20
)

// Server constants
const (
	// RequestTimeout bounds every API request
	RequestTimeout = 60
)
