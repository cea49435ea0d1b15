package manifest

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront/types"

	"github.com/sketchstacker/server/internal/observability"
)

// Invalidator purges CDN paths after the manifest changes
type Invalidator interface {
	Invalidate(ctx context.Context, paths []string) error
}

// CloudFrontAPI is the subset of the CloudFront client used here
type CloudFrontAPI interface {
	CreateInvalidation(ctx context.Context, params *cloudfront.CreateInvalidationInput, optFns ...func(*cloudfront.Options)) (*cloudfront.CreateInvalidationOutput, error)
}

// CloudFrontInvalidator invalidates paths on one distribution
type CloudFrontInvalidator struct {
	client         CloudFrontAPI
	distributionID string
	now            func() time.Time
}

// NewCloudFrontInvalidator creates an invalidator from an AWS configuration
func NewCloudFrontInvalidator(awsCfg aws.Config, distributionID string) *CloudFrontInvalidator {
	return NewCloudFrontInvalidatorWithClient(cloudfront.NewFromConfig(awsCfg), distributionID)
}

// NewCloudFrontInvalidatorWithClient wraps an existing client
func NewCloudFrontInvalidatorWithClient(client CloudFrontAPI, distributionID string) *CloudFrontInvalidator {
	return &CloudFrontInvalidator{
		client:         client,
		distributionID: distributionID,
		now:            time.Now,
	}
}

// Invalidate submits one invalidation batch. The caller reference is the current
// time so repeated publishes are never deduplicated by CloudFront.
func (i *CloudFrontInvalidator) Invalidate(ctx context.Context, paths []string) (err error) {
	ctx, span := observability.StartClientSpan(ctx, "cdn.Invalidate")
	defer func() { observability.EndSpan(span, err) }()

	out, err := i.client.CreateInvalidation(ctx, &cloudfront.CreateInvalidationInput{
		DistributionId: aws.String(i.distributionID),
		InvalidationBatch: &types.InvalidationBatch{
			CallerReference: aws.String(i.now().UTC().Format(time.RFC3339Nano)),
			Paths: &types.Paths{
				Quantity: aws.Int32(int32(len(paths))),
				Items:    paths,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("create invalidation on %s: %w", i.distributionID, err)
	}

	if out.Invalidation != nil {
		observability.WithContext(ctx).
			WithField("invalidation_id", aws.ToString(out.Invalidation.Id)).
			Infof("Requested CDN invalidation for %v", paths)
	}
	return nil
}
