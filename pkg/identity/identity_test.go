package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeMetadataClient struct {
	values  map[string]string
	missing map[string]bool
}

func (f *fakeMetadataClient) GetMetadata(_ context.Context, path string) (string, error) {
	if f.missing[path] {
		return "", errors.New("404 not found")
	}
	v, ok := f.values[path]
	if !ok {
		return "", errors.New("404 not found")
	}
	return v, nil
}

func TestDiscoverVPC(t *testing.T) {
	mc := &fakeMetadataClient{values: map[string]string{
		instanceIDPath: "i-abc123",
		publicIPPath:   "1.2.3.4",
		privateIPPath:  "10.0.0.5",
		macPath:        "0a:1b:2c:3d:4e:5f",
		"network/interfaces/macs/0a:1b:2c:3d:4e:5f/vpc-id": "vpc-1234",
	}}

	h, err := Discover(context.Background(), mc)
	require.NoError(t, err)
	require.Equal(t, "i-abc123", h.InstanceID())
	require.Equal(t, "1.2.3.4", h.PublicAddress())
	require.Equal(t, "10.0.0.5", h.PrivateAddress())
	require.True(t, h.IsVPC())
}

func TestDiscoverLegacy(t *testing.T) {
	mc := &fakeMetadataClient{
		values: map[string]string{
			instanceIDPath: "i-abc123",
			publicIPPath:   "1.2.3.4",
			privateIPPath:  "10.0.0.5",
			macPath:        "0a:1b:2c:3d:4e:5f",
		},
		missing: map[string]bool{
			"network/interfaces/macs/0a:1b:2c:3d:4e:5f/vpc-id": true,
		},
	}

	h, err := Discover(context.Background(), mc)
	require.NoError(t, err)
	require.False(t, h.IsVPC())
}

func TestDiscoverFatalOnMissingRequiredField(t *testing.T) {
	mc := &fakeMetadataClient{values: map[string]string{
		instanceIDPath: "i-abc123",
		publicIPPath:   "1.2.3.4",
		// privateIPPath intentionally missing
		macPath: "0a:1b:2c:3d:4e:5f",
	}}

	_, err := Discover(context.Background(), mc)
	require.ErrorIs(t, err, ErrMetadataUnavailable)
}
