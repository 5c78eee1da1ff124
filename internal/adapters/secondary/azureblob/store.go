// Package azureblob keeps explainability artifacts in an Azure Blob Storage container.
package azureblob

import (
	"bytes"
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	log "github.com/sirupsen/logrus"

	"scan-prediction-service/internal/config"
	"scan-prediction-service/internal/core/domain"
	"scan-prediction-service/internal/core/ports/output"
)

type Store struct {
	client    *azblob.Client
	container string
}

// New creates the blob client from a connection string, or from a SAS-bearing
// service URL when no connection string is configured.
func New(cfg *config.ArtifactConfig) (*Store, error) {
	var (
		client *azblob.Client
		err    error
	)
	switch {
	case cfg.AzureConnectionString != "":
		client, err = azblob.NewClientFromConnectionString(cfg.AzureConnectionString, nil)
	case cfg.AzureAccountURL != "":
		client, err = azblob.NewClientWithNoCredential(cfg.AzureAccountURL, nil)
	default:
		return nil, fmt.Errorf("azure blob store needs a connection string or account url")
	}
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}

	return &Store{client: client, container: cfg.AzureContainer}, nil
}

// EnsureContainer creates the artifact container if it does not exist yet.
func (s *Store) EnsureContainer(ctx context.Context) error {
	_, err := s.client.CreateContainer(ctx, s.container, nil)
	if err != nil && !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
		return fmt.Errorf("create container %s: %w", s.container, err)
	}
	log.WithField("container", s.container).Info("artifact container ready")
	return nil
}

func (s *Store) Put(ctx context.Context, ref, contentType string, data []byte) error {
	if err := domain.ValidateArtifactRef(ref); err != nil {
		return err
	}

	opts := &azblob.UploadStreamOptions{
		HTTPHeaders: &blob.HTTPHeaders{
			BlobContentType: &contentType,
		},
	}
	if _, err := s.client.UploadStream(ctx, s.container, ref, bytes.NewReader(data), opts); err != nil {
		return fmt.Errorf("upload blob %s: %w", ref, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, ref string) error {
	if err := domain.ValidateArtifactRef(ref); err != nil {
		return err
	}

	_, err := s.client.DeleteBlob(ctx, s.container, ref, nil)
	if err != nil && !bloberror.HasCode(err, bloberror.BlobNotFound) {
		return fmt.Errorf("delete blob %s: %w", ref, err)
	}
	return nil
}

var _ ports.ArtifactStore = (*Store)(nil)
