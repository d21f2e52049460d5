package identity

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/ec2/imds"
)

// imdsClient adapts the AWS SDK's EC2 Instance Metadata Service client
// (default options) to the MetadataClient interface. Using the AWS SDK's IMDS client, rather
// than a hand-rolled net/http GET against the fixed link-local base URL,
// gives us its built-in retry/backoff handling for free.
type imdsClient struct {
	client *imds.Client
}

// NewIMDSClient returns a MetadataClient backed by the default IMDS
// endpoint (http://169.254.169.254/latest/meta-data/).
func NewIMDSClient() MetadataClient {
	return &imdsClient{client: imds.New(imds.Options{})}
}

func (c *imdsClient) GetMetadata(ctx context.Context, path string) (string, error) {
	out, err := c.client.GetMetadata(ctx, &imds.GetMetadataInput{Path: path})
	if err != nil {
		return "", fmt.Errorf("fetching %q: %w", path, err)
	}
	return drain(out.Content)
}
