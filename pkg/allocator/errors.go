package allocator

import "errors"

// ErrNoAvailableAddresses is returned by Register when the realm's
// overlay subnet has no free host address left, or when MAX_IP_TRIES
// candidate attempts are exhausted without a confirmed lease
// (spec.md §4.3).
var ErrNoAvailableAddresses = errors.New("no available overlay addresses")
