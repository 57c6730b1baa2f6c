package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/bitrise-io/go-assetpipe/contentaddr"
	"github.com/bitrise-io/go-assetpipe/network"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/docker/go-units"
)

// S3Client implements the same dedup protocol on top of the AWS SDK.
type S3Client struct {
	client       *s3.Client
	uploader     *manager.Uploader
	bucket       string
	publicDomain string
	logger       log.Logger
}

// NewS3Client ...
func NewS3Client(ctx context.Context, cfg Config, logger log.Logger) (*S3Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	awsCfg, err := awsConfig(ctx, cfg.Region, cfg.AccessKeyID, cfg.SecretAccessKey, logger)
	if err != nil {
		return nil, err
	}

	endpoint := strings.TrimSuffix(cfg.Endpoint, "/")
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
		// a single attempt per call, matching the signed client
		o.RetryMaxAttempts = 1
	})

	return &S3Client{
		client:       client,
		uploader:     manager.NewUploader(client),
		bucket:       cfg.Bucket,
		publicDomain: cfg.PublicDomain,
		logger:       logger,
	}, nil
}

// Upload ...
func (c *S3Client) Upload(ctx context.Context, payload []byte, key, contentType string) (string, error) {
	result, err := c.Store(ctx, contentaddr.UploadRequest{Key: key, Payload: payload, ContentType: contentType})
	if err != nil {
		return "", err
	}
	return result.URL, nil
}

// Store ...
func (c *S3Client) Store(ctx context.Context, req contentaddr.UploadRequest) (Result, error) {
	if c.Exists(ctx, req.Key) {
		c.logger.Debugf("Object %s already exists, skipping upload", req.Key)
		return Result{URL: c.PublicURL(req.Key), Deduplicated: true}, nil
	}

	c.logger.Debugf("Uploading %s (%s)", req.Key, units.HumanSize(float64(len(req.Payload))))
	input := &s3.PutObjectInput{
		Bucket:        aws.String(c.bucket),
		Key:           aws.String(req.Key),
		Body:          bytes.NewReader(req.Payload),
		ContentLength: aws.Int64(int64(len(req.Payload))),
	}
	if req.ContentType != "" {
		input.ContentType = aws.String(req.ContentType)
	}

	if _, err := c.uploader.Upload(ctx, input); err != nil {
		return Result{}, classifyPutError(req.Key, err)
	}
	return Result{URL: c.PublicURL(req.Key)}, nil
}

// Exists ...
func (c *S3Client) Exists(ctx context.Context, key string) bool {
	_, err := c.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true
	}

	var apiError smithy.APIError
	if errors.As(err, &apiError) {
		switch apiError.(type) {
		case *types.NotFound:
			c.logger.Debugf("Object %s not found in bucket", key)
		default:
			c.logger.Warnf("Check exists failed for %s: %s", key, err)
		}
		return false
	}
	c.logger.Warnf("Check exists failed for %s: %s", key, err)
	return false
}

// PublicURL ...
func (c *S3Client) PublicURL(key string) string {
	return PublicURL(c.publicDomain, key)
}

// classifyPutError maps SDK failures onto the error types of the signed client. The SDK consumes
// the response body while decoding it, so an UploadError carries the store's error message
// (or its error code when the message is empty) instead of the raw body.
func classifyPutError(key string, err error) error {
	var respErr *awshttp.ResponseError
	if !errors.As(err, &respErr) {
		return &network.NetworkError{Method: http.MethodPut, URL: key, Err: err}
	}

	body := respErr.Error()
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		body = apiErr.ErrorMessage()
		if body == "" {
			body = apiErr.ErrorCode()
		}
	}
	return &network.UploadError{Status: respErr.HTTPStatusCode(), Body: body}
}

// awsConfig builds the SDK configuration for the store region. Static credentials are used when
// both halves of the key pair are set; otherwise the default provider chain applies.
func awsConfig(ctx context.Context, region, accessKeyID, secretAccessKey string, logger log.Logger) (aws.Config, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if accessKeyID != "" && secretAccessKey != "" {
		logger.Debugf("Using static credentials for access key %s", accessKeyID)
		provider := credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, "")
		opts = append(opts, config.WithCredentialsProvider(provider))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return cfg, nil
}
