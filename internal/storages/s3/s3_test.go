package s3

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/shyim/filestore/internal/storage"
	"github.com/shyim/filestore/internal/storage/storagetest"
)

func TestS3StorageType_Name(t *testing.T) {
	st := &S3StorageType{}
	assert.Equal(t, "s3", st.Name())
}

func TestS3StorageType_Create_MissingBucket(t *testing.T) {
	st := &S3StorageType{}
	_, err := st.Create("archive", map[string]string{"region": "eu-central-1"})
	assert.Error(t, err)
}

func TestS3Storage_FullKey(t *testing.T) {
	tests := []struct {
		prefix   string
		key      string
		expected string
	}{
		{"", "docs/a.txt", "docs/a.txt"},
		{"", "/docs//a.txt", "docs/a.txt"},
		{"tenant", "docs/a.txt", "tenant/docs/a.txt"},
		{"tenant", "", "tenant"},
	}

	for _, tt := range tests {
		t.Run(tt.prefix+"_"+tt.key, func(t *testing.T) {
			s := &S3Storage{prefix: tt.prefix}
			assert.Equal(t, tt.expected, s.fullKey(tt.key))
		})
	}
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, isNotFound(fmt.Errorf("wrapped: %w", &types.NoSuchKey{})))
	assert.True(t, isNotFound(&types.NotFound{}))
	assert.True(t, isNotFound(&smithy.GenericAPIError{Code: "NoSuchKey"}))
	assert.True(t, isNotFound(&smithyhttp.ResponseError{
		Response: &smithyhttp.Response{Response: &http.Response{StatusCode: http.StatusNotFound}},
		Err:      errors.New("head failed"),
	}))
	assert.False(t, isNotFound(&smithy.GenericAPIError{Code: "AccessDenied"}))
	assert.False(t, isNotFound(errors.New("boom")))
}

func TestMapError(t *testing.T) {
	err := mapError("a.txt", &types.NoSuchKey{})
	assert.ErrorIs(t, err, storage.ErrNotFound)

	plain := errors.New("timeout")
	assert.Same(t, plain, mapError("a.txt", plain))
}

// TestS3Storage_Integration runs the driver conformance suite against a MinIO
// container.
func TestS3Storage_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	minio, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "minio/minio:latest",
			ExposedPorts: []string{"9000/tcp"},
			Env: map[string]string{
				"MINIO_ROOT_USER":     "minioadmin",
				"MINIO_ROOT_PASSWORD": "minioadmin",
			},
			Cmd: []string{"server", "/data"},
			WaitingFor: wait.ForHTTP("/minio/health/live").
				WithPort("9000/tcp").
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	defer func() {
		if err := minio.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}()

	endpoint, err := minio.PortEndpoint(ctx, "9000/tcp", "http")
	require.NoError(t, err)

	const bucket = "filestore"
	options := map[string]string{
		"bucket":     bucket,
		"endpoint":   endpoint,
		"access-key": "minioadmin",
		"secret-key": "minioadmin",
		"path-style": "true",
	}

	setup, err := (&S3StorageType{}).Create("setup", options)
	require.NoError(t, err)
	_, err = setup.(*S3Storage).client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(bucket)})
	require.NoError(t, err)

	// every driver gets its own prefix so subtests start empty
	storagetest.RunDriverTests(t, func(t *testing.T) storage.Driver {
		opts := map[string]string{"prefix": "t-" + uuid.NewString()}
		for k, v := range options {
			opts[k] = v
		}
		d, err := (&S3StorageType{}).Create("minio", opts)
		require.NoError(t, err)
		return d
	})

	t.Run("BackendRoundTrip", func(t *testing.T) {
		d, err := (&S3StorageType{}).Create("minio", options)
		require.NoError(t, err)

		fs := storage.New(storage.NewKey("s3", "minio"), d)
		require.NoError(t, fs.Initialize(ctx))
		defer func() {
			_ = fs.Terminate(ctx)
		}()

		require.NoError(t, fs.CreateDirectory(ctx, "reports"))

		objects, err := fs.FindAll(ctx)
		require.NoError(t, err)
		for _, obj := range objects {
			assert.False(t, strings.HasSuffix(obj.Key, "/"), "directory markers must not be listed")
		}
	})
}
