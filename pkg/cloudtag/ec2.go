package cloudtag

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
)

// overlayTagKey is the EC2 tag key neti sets on an instance once it has
// a confirmed overlay lease.
const overlayTagKey = "neti:overlay-address"

// EC2Tagger tags instances via the AWS EC2 API, authenticated with the
// static credentials configured in neti.conf's [neti] section.
type EC2Tagger struct {
	client *ec2.Client
}

// NewEC2Tagger builds an EC2Tagger from a static access key pair.
func NewEC2Tagger(ctx context.Context, accessKey, secretKey string) (*EC2Tagger, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return &EC2Tagger{client: ec2.NewFromConfig(cfg)}, nil
}

// Tag sets the overlay-address tag on instanceID.
func (t *EC2Tagger) Tag(ctx context.Context, instanceID, overlayIP string) error {
	_, err := t.client.CreateTags(ctx, &ec2.CreateTagsInput{
		Resources: []string{instanceID},
		Tags: []types.Tag{
			{Key: aws.String(overlayTagKey), Value: aws.String(overlayIP)},
		},
	})
	if err != nil {
		return fmt.Errorf("tagging instance %s: %w", instanceID, err)
	}
	return nil
}
