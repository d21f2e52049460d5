package membership

import "errors"

// ErrSelfAddressMissing is returned by Join when called before the
// overlay address, public address, or private address are known.
var ErrSelfAddressMissing = errors.New("membership: self address not yet known")
