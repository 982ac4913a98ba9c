package storage

import (
	"context"
	"errors"
	"io"
	"regexp"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/erp/invoicesync/internal/domain/integration"
	"github.com/erp/invoicesync/internal/infrastructure/config"
)

type MockObjectAPI struct {
	mock.Mock
}

func (m *MockObjectAPI) PutObject(ctx context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*s3.PutObjectOutput), args.Error(1)
}

func (m *MockObjectAPI) HeadBucket(ctx context.Context, params *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*s3.HeadBucketOutput), args.Error(1)
}

func (m *MockObjectAPI) CreateBucket(ctx context.Context, params *s3.CreateBucketInput, _ ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*s3.CreateBucketOutput), args.Error(1)
}

func newTestArchive(t *testing.T, client *MockObjectAPI) *S3DiagnosticsArchive {
	t.Helper()
	a, err := NewS3DiagnosticsArchive(context.Background(), &config.StorageConfig{Bucket: "diag"}, WithClient(client))
	require.NoError(t, err)
	a.now = func() time.Time { return time.Date(2024, 3, 9, 23, 30, 0, 0, time.UTC) }
	return a
}

func TestNewS3DiagnosticsArchive_Validation(t *testing.T) {
	_, err := NewS3DiagnosticsArchive(context.Background(), nil)
	assert.ErrorContains(t, err, "configuration is required")

	_, err = NewS3DiagnosticsArchive(context.Background(), &config.StorageConfig{})
	assert.ErrorContains(t, err, "bucket is required")

	a, err := NewS3DiagnosticsArchive(context.Background(), &config.StorageConfig{
		Bucket:          "diag",
		Region:          "eu-west-2",
		Endpoint:        "minio.local:9000",
		AccessKeyID:     "key",
		SecretAccessKey: "secret",
		UsePathStyle:    true,
	})
	require.NoError(t, err)
	assert.NotNil(t, a.client)
}

func TestS3DiagnosticsArchive_Archive(t *testing.T) {
	client := new(MockObjectAPI)
	var put *s3.PutObjectInput
	client.On("PutObject", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { put = args.Get(1).(*s3.PutObjectInput) }).
		Return(&s3.PutObjectOutput{}, nil)

	key, err := newTestArchive(t, client).Archive(context.Background(), 1002, integration.OperationSyncInvoice, []byte(`{"errors":["bad"]}`))

	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^diagnostics/2024-03-09/1002/[0-9a-f-]{36}\.json$`), key)
	require.NotNil(t, put)
	assert.Equal(t, "diag", aws.ToString(put.Bucket))
	assert.Equal(t, key, aws.ToString(put.Key))
	assert.Equal(t, "application/json", aws.ToString(put.ContentType))
	assert.Equal(t, "SYNC_INVOICE", put.Metadata["operation"])
	body, _ := io.ReadAll(put.Body)
	assert.JSONEq(t, `{"errors":["bad"]}`, string(body))
}

func TestS3DiagnosticsArchive_ArchiveErrors(t *testing.T) {
	client := new(MockObjectAPI)
	a := newTestArchive(t, client)

	_, err := a.Archive(context.Background(), 1, integration.OperationSyncPayment, nil)
	assert.Error(t, err)
	client.AssertNotCalled(t, "PutObject", mock.Anything, mock.Anything)

	client.On("PutObject", mock.Anything, mock.Anything).Return(nil, errors.New("access denied"))
	_, err = a.Archive(context.Background(), 1, integration.OperationSyncPayment, []byte("<html>502</html>"))
	assert.ErrorContains(t, err, "order 1")
}

func TestS3DiagnosticsArchive_EnsureBucket(t *testing.T) {
	tests := []struct {
		name    string
		head    error
		create  error
		wantErr bool
		creates bool
	}{
		{name: "exists", head: nil},
		{name: "missing is created", head: &types.NotFound{}, creates: true},
		{name: "created concurrently", head: &types.NoSuchBucket{}, create: &types.BucketAlreadyOwnedByYou{}, creates: true},
		{name: "create fails", head: &types.NotFound{}, create: errors.New("denied"), creates: true, wantErr: true},
		{name: "head fails", head: errors.New("timeout"), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := new(MockObjectAPI)
			if tt.head == nil {
				client.On("HeadBucket", mock.Anything, mock.Anything).Return(&s3.HeadBucketOutput{}, nil)
			} else {
				client.On("HeadBucket", mock.Anything, mock.Anything).Return(nil, tt.head)
			}
			if tt.create == nil {
				client.On("CreateBucket", mock.Anything, mock.Anything).Return(&s3.CreateBucketOutput{}, nil).Maybe()
			} else {
				client.On("CreateBucket", mock.Anything, mock.Anything).Return(nil, tt.create).Maybe()
			}

			err := newTestArchive(t, client).EnsureBucket(context.Background())

			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			if tt.creates {
				client.AssertCalled(t, "CreateBucket", mock.Anything, mock.Anything)
			} else {
				client.AssertNotCalled(t, "CreateBucket", mock.Anything, mock.Anything)
			}
		})
	}
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "application/json", contentType([]byte(" [1]")))
	assert.Equal(t, "text/plain; charset=utf-8", contentType([]byte("Bad Gateway")))
}
