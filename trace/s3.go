package trace

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const s3Scheme = "s3://"

// S3Options configures access to traces stored in S3 or an S3-compatible
// object store. Credentials come from the default AWS credential chain.
type S3Options struct {
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	PathStyle bool   `yaml:"path_style"`
}

// SplitS3URI splits s3://bucket/key into its bucket and key.
func SplitS3URI(uri string) (bucket, key string, err error) {
	if !strings.HasPrefix(uri, s3Scheme) {
		return "", "", fmt.Errorf("%q is not an s3 URI", uri)
	}

	bucket, key, found := strings.Cut(strings.TrimPrefix(uri, s3Scheme), "/")
	if !found || bucket == "" || key == "" {
		return "", "", fmt.Errorf("s3 URI %q must be s3://bucket/key", uri)
	}

	return bucket, key, nil
}

func openS3Object(
	ctx context.Context,
	uri string,
	o S3Options,
) (io.ReadCloser, error) {
	bucket, key, err := SplitS3URI(uri)
	if err != nil {
		return nil, err
	}

	loadOpts := []func(*config.LoadOptions) error{}
	if o.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(o.Region))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(so *s3.Options) {
		if o.Endpoint != "" {
			so.BaseEndpoint = aws.String(o.Endpoint)
		}

		so.UsePathStyle = o.PathStyle
	})

	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", uri, err)
	}

	return out.Body, nil
}
