package staging

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/sas"

	"github.com/fogcitymarathoner/azure-batch-samples/pkg/model"
)

// AzureConfig holds the storage account settings.
type AzureConfig struct {
	AccountName string
	AccountKey  string
	// AccountURL is the blob service endpoint, e.g. https://acct.blob.core.windows.net.
	AccountURL string
	// MaxRetries of zero disables retries, matching the Batch client.
	MaxRetries int32
	// Transport overrides the HTTP client, for tests.
	Transport policy.Transporter
}

// AzureBlobStore implements BlobStore with the Azure Blob SDK. Shared key
// credentials are required so SAS URLs can be signed locally.
type AzureBlobStore struct {
	client *azblob.Client
}

// NewAzureBlobStore creates a BlobStore for one storage account.
func NewAzureBlobStore(cfg AzureConfig) (*AzureBlobStore, error) {
	cred, err := azblob.NewSharedKeyCredential(cfg.AccountName, cfg.AccountKey)
	if err != nil {
		return nil, fmt.Errorf("storage credential: %w", err)
	}
	opts := &azblob.ClientOptions{}
	opts.Retry.MaxRetries = cfg.MaxRetries
	if cfg.MaxRetries == 0 {
		opts.Retry.MaxRetries = -1
	}
	if cfg.Transport != nil {
		opts.Transport = cfg.Transport
	}
	client, err := azblob.NewClientWithSharedKeyCredential(cfg.AccountURL, cred, opts)
	if err != nil {
		return nil, fmt.Errorf("storage client: %w", err)
	}
	return &AzureBlobStore{client: client}, nil
}

func (s *AzureBlobStore) CreateContainer(ctx context.Context, container string) (model.CreateOutcome, error) {
	if _, err := s.client.CreateContainer(ctx, container, nil); err != nil {
		if bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
			return model.AlreadyExisted, nil
		}
		return "", err
	}
	return model.Created, nil
}

func (s *AzureBlobStore) DeleteContainer(ctx context.Context, container string) (model.DeleteOutcome, error) {
	if _, err := s.client.DeleteContainer(ctx, container, nil); err != nil {
		if bloberror.HasCode(err, bloberror.ContainerNotFound) {
			return model.NotFound, nil
		}
		return "", err
	}
	return model.Deleted, nil
}

func (s *AzureBlobStore) UploadFile(ctx context.Context, container, blobName, localPath string) (int64, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	if _, err := s.client.UploadFile(ctx, container, blobName, f, nil); err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func (s *AzureBlobStore) SignedURL(container, blobName string, start, expiry time.Time) (string, error) {
	bc := s.client.ServiceClient().NewContainerClient(container).NewBlobClient(blobName)
	return bc.GetSASURL(sas.BlobPermissions{Read: true}, expiry, &blob.GetSASURLOptions{StartTime: &start})
}
