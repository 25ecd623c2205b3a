package awss3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/sharedcode/kvom"
)

// multiOpThreadCount caps the per-key fan-out of GetMulti/SetMulti; S3 has no
// native multi-get/multi-put.
const multiOpThreadCount = 8

type coldStore struct {
	client *s3.Client
	bucket string
}

// NewColdStore returns an S3-backed implementation of kvom.ColdStore storing
// one object per record in the given bucket.
func NewColdStore(client *s3.Client, bucket string) (kvom.ColdStore, error) {
	if client == nil {
		return nil, fmt.Errorf("client parameter can't be nil")
	}
	if bucket == "" {
		return nil, fmt.Errorf("bucket parameter can't be empty")
	}
	return &coldStore{
		client: client,
		bucket: bucket,
	}, nil
}

// EnsureBucket creates the bucket if it does not exist.
func EnsureBucket(ctx context.Context, client *s3.Client, bucket, region string) error {
	_, err := client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(bucket),
		CreateBucketConfiguration: &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(region),
		},
	})
	if err != nil {
		var owned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &owned) {
			return nil
		}
		return fmt.Errorf("couldn't create bucket %s in region %s, details: %w", bucket, region, err)
	}
	return nil
}

func (c *coldStore) Get(ctx context.Context, key string) ([]byte, error) {
	result, err := c.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, nil
		}
		return nil, err
	}
	defer result.Body.Close()
	return io.ReadAll(result.Body)
}

func (c *coldStore) GetMulti(ctx context.Context, keys []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(keys))
	var mu sync.Mutex
	tr := kvom.NewTaskRunner(ctx, multiOpThreadCount)
	for _, key := range keys {
		tr.Go(func() error {
			ba, err := c.Get(tr.GetContext(), key)
			if err != nil {
				return err
			}
			mu.Lock()
			out[key] = ba
			mu.Unlock()
			return nil
		})
	}
	if err := tr.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *coldStore) Set(ctx context.Context, key string, value []byte) error {
	_, err := c.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(value),
	})
	return err
}

func (c *coldStore) SetMulti(ctx context.Context, entries map[string][]byte) error {
	tr := kvom.NewTaskRunner(ctx, multiOpThreadCount)
	for key, value := range entries {
		tr.Go(func() error {
			return c.Set(tr.GetContext(), key, value)
		})
	}
	return tr.Wait()
}

func (c *coldStore) Delete(ctx context.Context, key string) error {
	_, err := c.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	return err
}

// DeleteMulti uses the native batch delete API.
func (c *coldStore) DeleteMulti(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	ids := make([]types.ObjectIdentifier, len(keys))
	for i, k := range keys {
		ids[i] = types.ObjectIdentifier{Key: aws.String(k)}
	}
	_, err := c.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
		Bucket: aws.String(c.bucket),
		Delete: &types.Delete{Objects: ids},
	})
	return err
}
