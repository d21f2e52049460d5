// Package cloudtag applies a best-effort cloud-side label recording the
// overlay address leased to an instance (spec.md §4.3 step 6).
package cloudtag

import "context"

// Tagger tags instanceID with its leased overlay address. Implementations
// must treat failure as non-fatal to the caller - Allocator only logs it.
type Tagger interface {
	Tag(ctx context.Context, instanceID, overlayIP string) error
}

// NoOp never attempts to tag anything; used when neti.aws_key is empty,
// matching the original's silent-failure-is-fine posture for cloud
// tagging in non-EC2 or local/dev deployments.
type NoOp struct{}

// Tag implements Tagger and always succeeds without doing anything.
func (NoOp) Tag(context.Context, string, string) error { return nil }
