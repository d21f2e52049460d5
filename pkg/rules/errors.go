package rules

import "errors"

// ErrInvalidAddress is returned when a synthesized rule would reference
// a malformed address - synthesis is aborted before install.
var ErrInvalidAddress = errors.New("rules: invalid address")

// ErrInvalidChain is returned when a synthesized rule would reference
// an unknown chain.
var ErrInvalidChain = errors.New("rules: invalid chain")

// ErrMissingPacketFilter is returned at construction when the loader
// binary cannot be located on the host. Fatal at startup.
var ErrMissingPacketFilter = errors.New("rules: packet filter loader not found")

// ErrInvalidPacketFilterVersion is returned at construction when the
// loader binary is present but older than the minimum supported
// version. Fatal at startup.
var ErrInvalidPacketFilterVersion = errors.New("rules: packet filter loader version too old")
