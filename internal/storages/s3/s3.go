package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/transfermanager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/shyim/filestore/internal/storage"
)

func init() {
	storage.RegisterDriver(&S3StorageType{})
}

// S3StorageType is the factory for S3 storage
type S3StorageType struct{}

// Name returns the storage type identifier
func (t *S3StorageType) Name() string {
	return "s3"
}

// Create instantiates a new S3 storage from options
func (t *S3StorageType) Create(poolName string, options map[string]string) (storage.Driver, error) {
	bucket, ok := options["bucket"]
	if !ok || bucket == "" {
		return nil, fmt.Errorf("S3 storage requires 'bucket' option")
	}

	region := options["region"]
	if region == "" {
		region = "us-east-1"
	}

	endpoint := options["endpoint"]
	accessKey := options["access-key"]
	secretKey := options["secret-key"]
	pathStyle := options["path-style"] == "true"

	prefix := strings.Trim(options["prefix"], "/")

	ctx := context.Background()

	var cfgOpts []func(*config.LoadOptions) error
	cfgOpts = append(cfgOpts, config.WithRegion(region))

	// Use static credentials if provided
	if accessKey != "" && secretKey != "" {
		cfgOpts = append(cfgOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, cfgOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)

	if endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
		})
	}

	if pathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	client := s3.NewFromConfig(cfg, s3Opts...)

	return &S3Storage{
		client:   client,
		uploader: transfermanager.New(client),
		bucket:   bucket,
		prefix:   prefix,
		poolName: poolName,
	}, nil
}

// S3Storage implements storage.Driver for S3-compatible backends. Directories
// are zero-byte objects whose key ends in a slash.
type S3Storage struct {
	client   *s3.Client
	uploader *transfermanager.Client
	bucket   string
	prefix   string
	poolName string
}

// Store streams data to S3 using multipart upload
func (s *S3Storage) Store(ctx context.Context, key string, reader io.Reader) error {
	_, err := s.uploader.UploadObject(ctx, &transfermanager.UploadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.fullKey(key)),
		Body:   reader,
	})
	if err != nil {
		return fmt.Errorf("failed to upload to S3: %w", err)
	}

	return nil
}

// Get retrieves an object from S3
func (s *S3Storage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.fullKey(key)),
	})
	if err != nil {
		return nil, mapError(key, fmt.Errorf("failed to get from S3: %w", err))
	}

	return result.Body, nil
}

// Stat looks for an object at key, then for a directory marker or any
// object below key.
func (s *S3Storage) Stat(ctx context.Context, key string) (storage.Object, error) {
	head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.fullKey(key)),
	})
	if err == nil {
		return storage.Object{
			Key:          key,
			Size:         aws.ToInt64(head.ContentLength),
			LastModified: aws.ToTime(head.LastModified),
		}, nil
	}
	if !isNotFound(err) {
		return storage.Object{}, fmt.Errorf("failed to stat %s: %w", key, err)
	}

	out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(s.bucket),
		Prefix:  aws.String(s.fullKey(key) + "/"),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return storage.Object{}, fmt.Errorf("failed to stat %s: %w", key, err)
	}
	if len(out.Contents) == 0 {
		return storage.Object{}, fmt.Errorf("%s: %w", key, storage.ErrNotFound)
	}

	return storage.Object{
		Key:          key,
		LastModified: aws.ToTime(out.Contents[0].LastModified),
		Dir:          true,
	}, nil
}

// List returns all objects matching the prefix, skipping directory markers
func (s *S3Storage) List(ctx context.Context, prefix string) ([]storage.Object, error) {
	fullPrefix := s.fullKey(prefix)
	if prefix == "" && s.prefix != "" {
		fullPrefix = s.prefix + "/"
	}

	files := make([]storage.Object, 0)
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(fullPrefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}

		for _, obj := range page.Contents {
			relKey := aws.ToString(obj.Key)
			if s.prefix != "" {
				relKey = strings.TrimPrefix(relKey, s.prefix+"/")
			}
			if strings.HasSuffix(relKey, "/") {
				continue
			}

			files = append(files, storage.Object{
				Key:          relKey,
				Size:         aws.ToInt64(obj.Size),
				LastModified: aws.ToTime(obj.LastModified),
			})
		}
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Key < files[j].Key
	})

	return files, nil
}

// Delete removes an object from S3. S3 deletes are idempotent, so the object
// is checked first to report missing keys.
func (s *S3Storage) Delete(ctx context.Context, key string) error {
	fullKey := s.fullKey(key)

	if _, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(fullKey),
	}); err != nil {
		return mapError(key, fmt.Errorf("failed to delete from S3: %w", err))
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(fullKey),
	})
	if err != nil {
		return fmt.Errorf("failed to delete from S3: %w", err)
	}

	return nil
}

// MakeDir puts a directory marker object
func (s *S3Storage) MakeDir(ctx context.Context, key string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.fullKey(key) + "/"),
		Body:   strings.NewReader(""),
	})
	if err != nil {
		return fmt.Errorf("failed to create directory marker: %w", err)
	}
	return nil
}

func (s *S3Storage) Close() error {
	return nil
}

// fullKey returns the full S3 key including any prefix
func (s *S3Storage) fullKey(key string) string {
	key = strings.Trim(path.Clean("/"+key), "/")
	if s.prefix == "" {
		return key
	}
	if key == "" {
		return s.prefix
	}
	return s.prefix + "/" + key
}

func mapError(key string, err error) error {
	if isNotFound(err) {
		return fmt.Errorf("%s: %w: %w", key, storage.ErrNotFound, err)
	}
	return err
}

func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
		return true
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}

	var respErr *smithyhttp.ResponseError
	return errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusNotFound
}
