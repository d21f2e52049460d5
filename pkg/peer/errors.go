package peer

import "errors"

// ErrPatternMismatch is returned when a group member's identifier does
// not conform to the MemberIdentifier grammar (spec.md §3/§4.5).
var ErrPatternMismatch = errors.New("member identifier does not match expected pattern")
