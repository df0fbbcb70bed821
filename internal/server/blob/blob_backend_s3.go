package blob

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"golang.org/x/sync/errgroup"
)

const (
	// object metadata key holding the client file time
	metaModTime = "gamebox-mtime"

	s3RequestTimeout = time.Minute
	headConcurrency  = 16
)

type S3Backend struct {
	s3Client *s3.Client
	config   *S3Config
}

func NewS3Backend(s3Client *s3.Client, config *S3Config) *S3Backend {
	return &S3Backend{
		s3Client: s3Client,
		config:   config,
	}
}

// NewS3BackendWithConfig builds a client from static credentials. A custom
// Endpoint switches to path-style addressing for S3-compatible stores.
func NewS3BackendWithConfig(ctx context.Context, cfg *S3Config) (*S3Backend, error) {
	httpClient := awshttp.NewBuildableClient().
		WithTimeout(s3RequestTimeout).
		WithTransportOptions(func(tr *http.Transport) {
			tr.MaxIdleConnsPerHost = 32
		})

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
		config.WithRegion(cfg.Region),
		config.WithHTTPClient(httpClient),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UseAccelerate = cfg.UseAccelerate
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewS3Backend(client, cfg), nil
}

func (s *S3Backend) GetObject(ctx context.Context, key string) (*GetObjectResponse, error) {
	if !ValidateKey(key) {
		return nil, ErrInvalidKey
	}

	resp, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.config.BucketName,
		Key:    &key,
	})
	if err != nil {
		if isNotFound(err) {
			return nil, ErrObjectNotFound
		}
		return nil, err
	}

	return &GetObjectResponse{
		Body:         resp.Body,
		Size:         aws.ToInt64(resp.ContentLength),
		LastModified: modTime(resp.Metadata, resp.LastModified),
	}, nil
}

func (s *S3Backend) PutObject(ctx context.Context, params *PutObjectParams) (*ObjectInfo, error) {
	if !ValidateKey(params.Key) {
		return nil, ErrInvalidKey
	}

	lastModified := formatTime(params.LastModified)
	_, err := s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        &s.config.BucketName,
		Key:           &params.Key,
		Body:          params.Body,
		ContentLength: aws.Int64(params.Size),
		Metadata:      map[string]string{metaModTime: lastModified},
	})
	if err != nil {
		return nil, fmt.Errorf("put %s: %w", params.Key, err)
	}

	return &ObjectInfo{
		Key:          params.Key,
		Size:         params.Size,
		LastModified: lastModified,
	}, nil
}

func (s *S3Backend) DeleteObject(ctx context.Context, key string) error {
	_, err := s.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: &s.config.BucketName,
		Key:    &key,
	})
	return err
}

// ListObjects pages through the bucket. Listing does not return user
// metadata, so each object gets a HeadObject to recover its file time; the
// heads run with bounded concurrency.
func (s *S3Backend) ListObjects(ctx context.Context) ([]*ObjectInfo, error) {
	var listed []types.Object

	paginator := s3.NewListObjectsV2Paginator(s.s3Client, &s3.ListObjectsV2Input{
		Bucket: &s.config.BucketName,
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		listed = append(listed, page.Contents...)
	}

	objects := make([]*ObjectInfo, len(listed))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(headConcurrency)
	for i, obj := range listed {
		g.Go(func() error {
			head, err := s.s3Client.HeadObject(gctx, &s3.HeadObjectInput{
				Bucket: &s.config.BucketName,
				Key:    obj.Key,
			})
			if err != nil {
				return fmt.Errorf("head %s: %w", aws.ToString(obj.Key), err)
			}
			objects[i] = &ObjectInfo{
				Key:          aws.ToString(obj.Key),
				Size:         aws.ToInt64(obj.Size),
				LastModified: formatTime(modTime(head.Metadata, obj.LastModified)),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return objects, nil
}

func modTime(meta map[string]string, fallback *time.Time) time.Time {
	if v, ok := meta[metaModTime]; ok {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t
		}
	}
	return aws.ToTime(fallback).UTC().Truncate(time.Second)
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	var nf *types.NotFound
	return errors.As(err, &nsk) || errors.As(err, &nf)
}

var _ Backend = (*S3Backend)(nil)
