package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/nats-io/nats.go"
)

// NATSStore keeps audio objects in a JetStream object store bucket.
type NATSStore struct {
	bucket string
	store  nats.ObjectStore
}

// NewNATSStore creates the bucket if needed and binds to it.
func NewNATSStore(js nats.JetStreamContext, bucket string) (*NATSStore, error) {
	store, err := js.CreateObjectStore(&nats.ObjectStoreConfig{
		Bucket:      bucket,
		Description: fmt.Sprintf("Audio storage for the %s bucket", bucket),
		Storage:     nats.FileStorage,
		Replicas:    1,
	})
	if err != nil {
		// A bucket that already exists with a different config surfaces as a
		// stream name conflict on the backing stream.
		if !errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
			return nil, fmt.Errorf("create object store bucket %q: %w", bucket, err)
		}
		store, err = js.ObjectStore(bucket)
		if err != nil {
			return nil, fmt.Errorf("bind object store bucket %q: %w", bucket, err)
		}
	}
	return &NATSStore{bucket: bucket, store: store}, nil
}

// Upload puts the object, overwriting any prior version under the same key.
func (s *NATSStore) Upload(_ context.Context, key string, data []byte) (string, error) {
	_, err := s.store.Put(&nats.ObjectMeta{Name: key}, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("put object %q to bucket %q: %w", key, s.bucket, err)
	}
	return fmt.Sprintf("nats://%s/%s", s.bucket, key), nil
}

func (s *NATSStore) Download(_ context.Context, key string) ([]byte, error) {
	obj, err := s.store.Get(key)
	if err != nil {
		return nil, fmt.Errorf("get object %q from bucket %q: %w", key, s.bucket, err)
	}
	data, readErr := io.ReadAll(obj)
	closeErr := obj.Close()
	if readErr != nil {
		return nil, fmt.Errorf("read object %q: %w", key, readErr)
	}
	if closeErr != nil {
		return data, fmt.Errorf("close object %q: %w", key, closeErr)
	}
	return data, nil
}

func (s *NATSStore) Delete(_ context.Context, key string) error {
	err := s.store.Delete(key)
	if err != nil && !errors.Is(err, nats.ErrObjectNotFound) {
		return fmt.Errorf("delete object %q from bucket %q: %w", key, s.bucket, err)
	}
	return nil
}

var _ ObjectStore = (*NATSStore)(nil)
