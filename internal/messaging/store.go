package messaging

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// BlobStore persists attachment bytes and returns an opaque stored reference.
// The filesystem implementation below is the default; an object-store backend
// slots in behind the same interface.
type BlobStore interface {
	Save(ctx context.Context, fileName string, r io.Reader) (ref string, size int64, err error)
	Open(ctx context.Context, ref string) (io.ReadCloser, error)
}

// FSStore writes blobs under a root directory with random names; the original
// filename survives only in attachment metadata.
type FSStore struct {
	Root string
}

func NewFSStore(root string) (*FSStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create attachment dir: %w", err)
	}
	return &FSStore{Root: root}, nil
}

func (s *FSStore) Save(_ context.Context, fileName string, r io.Reader) (string, int64, error) {
	ref := uuid.NewString() + filepath.Ext(fileName)
	f, err := os.Create(filepath.Join(s.Root, ref))
	if err != nil {
		return "", 0, err
	}
	defer f.Close()
	n, err := io.Copy(f, r)
	if err != nil {
		os.Remove(f.Name())
		return "", 0, err
	}
	return ref, n, nil
}

func (s *FSStore) Open(_ context.Context, ref string) (io.ReadCloser, error) {
	// Refs are generated server-side, but reject traversal anyway.
	if filepath.Base(ref) != ref {
		return nil, fmt.Errorf("invalid attachment ref %q", ref)
	}
	return os.Open(filepath.Join(s.Root, ref))
}
