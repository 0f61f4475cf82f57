// Package objectstore stores synthesized audio objects.
//
// Two backends are provided: NATS JetStream object storage for deployments
// already running NATS, and a local filesystem store for development. Both
// overwrite on re-upload so regeneration can replace audio in place.
package objectstore

import (
	"context"
	"fmt"
)

// ObjectStore is the audio storage collaborator for the chunk processor.
type ObjectStore interface {
	// Upload writes data under key, overwriting any existing object, and
	// returns a URL the player can reference.
	Upload(ctx context.Context, key string, data []byte) (string, error)
	// Download retrieves a stored object.
	Download(ctx context.Context, key string) ([]byte, error)
	// Delete removes an object. Deleting a missing object is not an error.
	Delete(ctx context.Context, key string) error
}

// ChunkKey is the storage path convention for chunk audio.
func ChunkKey(chapterID string, idx int) string {
	return fmt.Sprintf("audio/%s/%d.mp3", chapterID, idx)
}
