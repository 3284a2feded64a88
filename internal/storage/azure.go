package storage

import (
	"context"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/sas"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"voice-transcribe-go/internal/fault"
	"voice-transcribe-go/internal/logger"
)

// StoredObject is the reference handed to the transcription service. The
// SAS URL must stay readable for the whole polling window.
type StoredObject struct {
	Container string
	Name      string
	SASURL    string
	Expiry    time.Time
}

// Store uploads normalized audio and returns a time-limited read reference.
type Store interface {
	Put(ctx context.Context, data []byte) (StoredObject, error)
}

type BlobStore struct {
	client    *azblob.Client
	container string
	sasTTL    time.Duration
	log       *logrus.Entry
}

func NewBlobStore(connectionString, container string, sasTTL time.Duration, log *logger.Logger) (*BlobStore, error) {
	client, err := azblob.NewClientFromConnectionString(connectionString, nil)
	if err != nil {
		return nil, fault.Wrap(fault.Infrastructure, "blob client init", err)
	}
	return &BlobStore{
		client:    client,
		container: container,
		sasTTL:    sasTTL,
		log:       log.WithField("component", "storage"),
	}, nil
}

// Put uploads under a fresh uuid name. Names are never derived from the
// caller-supplied filename, so concurrent identical uploads cannot collide.
func (s *BlobStore) Put(ctx context.Context, data []byte) (StoredObject, error) {
	name := newBlobName()

	_, err := s.client.CreateContainer(ctx, s.container, nil)
	if err != nil && !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
		return StoredObject{}, fault.Wrap(fault.Infrastructure, "create container", err)
	}

	contentType := "audio/wav"
	_, err = s.client.UploadBuffer(ctx, s.container, name, data, &azblob.UploadBufferOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: &contentType},
	})
	if err != nil {
		return StoredObject{}, fault.Wrap(fault.Infrastructure, "upload blob", err)
	}

	expiry := time.Now().UTC().Add(s.sasTTL)
	blobClient := s.client.ServiceClient().NewContainerClient(s.container).NewBlobClient(name)
	sasURL, err := blobClient.GetSASURL(sas.BlobPermissions{Read: true}, expiry, nil)
	if err != nil {
		return StoredObject{}, fault.Wrap(fault.Infrastructure, "sign blob url", err)
	}

	s.log.WithFields(logrus.Fields{
		"container": s.container,
		"blob":      name,
		"bytes":     len(data),
		"expiry":    expiry.Format(time.RFC3339),
	}).Info("normalized audio uploaded")

	return StoredObject{
		Container: s.container,
		Name:      name,
		SASURL:    sasURL,
		Expiry:    expiry,
	}, nil
}

func newBlobName() string {
	return uuid.New().String() + ".wav"
}
