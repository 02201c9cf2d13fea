package local

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"github.com/infraweave-io/control-plane/internal/apperrors"
)

// ObjectStore backs facade.Object with an afero filesystem, so tests can swap in
// afero.NewMemMapFs() and production can use afero.NewOsFs() rooted at a data dir.
type ObjectStore struct {
	fs   afero.Fs
	root string
	// presignBaseURL is a synthetic URL prefix; the Local runtime has no real signer,
	// so presigned URLs just encode path+expiry for the in-process dev server to honor.
	presignBaseURL string
}

func NewObjectStore(fs afero.Fs, root, presignBaseURL string) *ObjectStore {
	return &ObjectStore{fs: fs, root: root, presignBaseURL: presignBaseURL}
}

func (o *ObjectStore) abs(path string) string {
	return filepath.Join(o.root, filepath.FromSlash(path))
}

func (o *ObjectStore) Put(_ context.Context, path string, body []byte) error {
	full := o.abs(path)
	if err := o.fs.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return apperrors.Wrap(apperrors.Transient, err, "mkdir for %s", path)
	}
	if err := afero.WriteFile(o.fs, full, body, 0o644); err != nil {
		return apperrors.Wrap(apperrors.Transient, err, "write %s", path)
	}
	return nil
}

func (o *ObjectStore) Get(_ context.Context, path string) ([]byte, error) {
	b, err := afero.ReadFile(o.fs, o.abs(path))
	if err != nil {
		return nil, apperrors.New(apperrors.NotFound, "object %s not found", path)
	}
	return b, nil
}

func (o *ObjectStore) Exists(_ context.Context, path string) (bool, error) {
	return afero.Exists(o.fs, o.abs(path))
}

func (o *ObjectStore) Delete(_ context.Context, path string) error {
	if err := o.fs.Remove(o.abs(path)); err != nil {
		return apperrors.Wrap(apperrors.Transient, err, "delete %s", path)
	}
	return nil
}

func (o *ObjectStore) PresignGet(_ context.Context, path string, ttl time.Duration) (string, error) {
	return fmt.Sprintf("%s/%s?op=get&exp=%d", o.presignBaseURL, path, time.Now().Add(ttl).Unix()), nil
}

func (o *ObjectStore) PresignPut(_ context.Context, path string, ttl time.Duration) (string, error) {
	return fmt.Sprintf("%s/%s?op=put&exp=%d", o.presignBaseURL, path, time.Now().Add(ttl).Unix()), nil
}
