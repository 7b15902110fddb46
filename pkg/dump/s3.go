package dump

import (
	"bytes"
	"context"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ajitpratap0/grantsync/pkg/config"
	"github.com/ajitpratap0/grantsync/pkg/errors"
)

const uploadPartSize = 5 * 1024 * 1024

type getObjectAPI interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

type uploadAPI interface {
	Upload(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// s3Objects stores dumps as S3 objects.
type s3Objects struct {
	client   getObjectAPI
	uploader uploadAPI
}

func (d *Dumper) objects(ctx context.Context) (*s3Objects, error) {
	if d.s3 != nil {
		return d.s3, nil
	}
	o, err := newS3Objects(ctx, d.s3cfg)
	if err != nil {
		return nil, err
	}
	d.s3 = o
	return o, nil
}

func newS3Objects(ctx context.Context, cfg config.S3Config) (*s3Objects, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to load AWS configuration")
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	})
	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = uploadPartSize
	})
	return &s3Objects{client: client, uploader: uploader}, nil
}

func (o *s3Objects) put(ctx context.Context, bucket, key string, data []byte, metadata map[string]string) error {
	_, err := o.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
		Metadata:    metadata,
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "failed to upload to S3").
			WithDetail("bucket", bucket).WithDetail("key", key)
	}
	return nil
}

func (o *s3Objects) get(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	out, err := o.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to download from S3").
			WithDetail("bucket", bucket).WithDetail("key", key)
	}
	return out.Body, nil
}
