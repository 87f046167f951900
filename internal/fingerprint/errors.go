package fingerprint

import "errors"

var (
	// ErrImageDecode is returned for payloads that are not a decodable image.
	ErrImageDecode = errors.New("image could not be decoded")
	// ErrExtractorUnavailable marks transient embedding server failures
	// (unreachable, 5xx, malformed responses, timeouts). Callers may retry.
	ErrExtractorUnavailable = errors.New("embedding extractor unavailable")
)
