package database

import "time"

// FaceEmbeddingDim is the default dimension of face embeddings (128 for dlib ResNet,
// the model behind the reference embedding server).
const FaceEmbeddingDim = 128

// Connection pool defaults.
const (
	// DefaultMaxOpenConns is the default maximum number of open connections
	DefaultMaxOpenConns = 25

	// DefaultMaxIdleConns is the default maximum number of idle connections
	DefaultMaxIdleConns = 5

	ConnMaxLifetime = time.Hour
	ConnMaxIdleTime = 10 * time.Minute

	// ConnectTimeout bounds the initial ping when a pool is opened
	ConnectTimeout = 10 * time.Second
)
