package identity

import "errors"

// ErrMetadataUnavailable is returned when a required cloud-metadata field
// could not be fetched. It is fatal at startup.
var ErrMetadataUnavailable = errors.New("cloud metadata unavailable")
