package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"tutorbot-backend/internal/logger"
	"tutorbot-backend/models"

	"golang.org/x/sync/singleflight"
)

// Coordinator reconciles the local cache and the remote object store into
// one logical file namespace. It is the only component that knows which
// tiers a document occupies.
//
// In remote mode the object store listing is the source of truth and the
// cache is filled on demand; in local mode the cache directory is
// authoritative and remote-only operations are unsupported.
type Coordinator struct {
	cache  *Cache
	remote ObjectStore // nil in local mode
	meta   MetadataStore
	flight singleflight.Group
}

func NewCoordinator(cache *Cache, remote ObjectStore, meta MetadataStore) *Coordinator {
	return &Coordinator{cache: cache, remote: remote, meta: meta}
}

// RemoteEnabled reports whether a durable remote tier is configured.
func (c *Coordinator) RemoteEnabled() bool {
	return c.remote != nil
}

// Upload writes the document to the local cache and, in remote mode, to
// the object store. A failed remote write invalidates the local copy too:
// a document present locally but not remotely would silently diverge from
// the authoritative listing.
func (c *Coordinator) Upload(ctx context.Context, filename string, r io.Reader) (models.Document, error) {
	if err := validateFilename(filename); err != nil {
		return models.Document{}, err
	}

	size, err := c.cache.Write(filename, r)
	if err != nil {
		return models.Document{}, fmt.Errorf("%w: %v", models.ErrStorageWrite, err)
	}

	tier := models.TierLocal
	if c.remote != nil {
		f, err := os.Open(c.cache.Path(filename))
		if err != nil {
			return models.Document{}, fmt.Errorf("%w: %v", models.ErrStorageWrite, err)
		}
		err = c.remote.Put(ctx, filename, f, size)
		f.Close()
		if err != nil {
			if rmErr := c.cache.Remove(filename); rmErr != nil {
				logger.Warn("failed to roll back cache entry after remote write failure",
					"filename", filename, "error", rmErr)
			}
			return models.Document{}, fmt.Errorf("%w: %v", models.ErrStorageWrite, err)
		}
		tier = models.TierBoth
	}

	return models.Document{
		Filename:     filename,
		DisplayName:  filename,
		Size:         size,
		LastModified: time.Now(),
		Tier:         tier,
	}, nil
}

// List returns the corpus ordered by filename. Display names come from
// the metadata store, defaulting to the filename itself.
func (c *Coordinator) List(ctx context.Context) ([]models.Document, error) {
	var objects []ObjectInfo
	var err error
	if c.remote != nil {
		objects, err = c.remote.List(ctx)
	} else {
		objects, err = c.cache.List()
	}
	if err != nil {
		return nil, err
	}

	names := c.displayNames(ctx)

	docs := make([]models.Document, 0, len(objects))
	for _, obj := range objects {
		tier := models.TierLocal
		if c.remote != nil {
			tier = models.TierRemote
			if c.cache.Exists(obj.Key) {
				tier = models.TierBoth
			}
		}
		name := names[obj.Key]
		if name == "" {
			name = obj.Key
		}
		docs = append(docs, models.Document{
			Filename:     obj.Key,
			DisplayName:  name,
			Size:         obj.Size,
			LastModified: obj.LastModified,
			Tier:         tier,
		})
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].Filename < docs[j].Filename })
	return docs, nil
}

// FetchLocal guarantees local availability and returns the cache path.
// Concurrent calls for the same filename collapse into a single download.
func (c *Coordinator) FetchLocal(ctx context.Context, filename string) (string, error) {
	if err := validateFilename(filename); err != nil {
		return "", err
	}
	if c.cache.Exists(filename) {
		return c.cache.Path(filename), nil
	}
	if c.remote == nil {
		return "", fmt.Errorf("%w: %s", models.ErrNotFound, filename)
	}

	// The fill is shared by every caller waiting on this key, so it must
	// outlive the caller that happened to start it.
	dlCtx := context.WithoutCancel(ctx)

	path, err, _ := c.flight.Do(filename, func() (interface{}, error) {
		// A concurrent caller may have completed the fill already.
		if c.cache.Exists(filename) {
			return c.cache.Path(filename), nil
		}
		rc, err := c.remote.Get(dlCtx, filename)
		if err != nil {
			return nil, fmt.Errorf("download %s: %w", filename, err)
		}
		defer rc.Close()
		if _, err := c.cache.Write(filename, rc); err != nil {
			return nil, fmt.Errorf("cache fill %s: %w", filename, err)
		}
		return c.cache.Path(filename), nil
	})
	if err != nil {
		return "", err
	}
	return path.(string), nil
}

// Delete removes the document from every tier that has it. Deleting a
// missing filename is not an error.
func (c *Coordinator) Delete(ctx context.Context, filename string) error {
	if err := validateFilename(filename); err != nil {
		return err
	}
	if err := c.cache.Remove(filename); err != nil {
		return fmt.Errorf("%w: %v", models.ErrStorageWrite, err)
	}
	if c.remote != nil {
		if err := c.remote.Delete(ctx, filename); err != nil {
			return fmt.Errorf("%w: %v", models.ErrStorageWrite, err)
		}
	}
	if c.meta != nil {
		if err := c.meta.Delete(ctx, filename); err != nil {
			logger.Warn("failed to delete file metadata", "filename", filename, "error", err)
		}
	}
	return nil
}

// Presign returns a time-limited direct URL for the document. Only valid
// in remote mode; local-mode callers must stream bytes instead.
func (c *Coordinator) Presign(ctx context.Context, filename string, ttl time.Duration) (string, error) {
	if c.remote == nil {
		return "", models.ErrUnsupportedOperation
	}
	if err := validateFilename(filename); err != nil {
		return "", err
	}
	return c.remote.Presign(ctx, filename, ttl)
}

// SetDisplayName updates presentation metadata only; stored bytes and
// tier presence are untouched.
func (c *Coordinator) SetDisplayName(ctx context.Context, filename, name string) error {
	if err := validateFilename(filename); err != nil {
		return err
	}
	exists, err := c.exists(ctx, filename)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", models.ErrNotFound, filename)
	}
	if c.meta == nil {
		return models.ErrUnsupportedOperation
	}
	if err := c.meta.Set(ctx, filename, name); err != nil {
		return fmt.Errorf("%w: %v", models.ErrPersistence, err)
	}
	return nil
}

// DisplayNames returns the filename -> display name mapping for every
// file with custom metadata.
func (c *Coordinator) DisplayNames(ctx context.Context) (map[string]string, error) {
	if c.meta == nil {
		return map[string]string{}, nil
	}
	return c.meta.GetAll(ctx)
}

func (c *Coordinator) Healthy(ctx context.Context) error {
	if c.remote != nil {
		return c.remote.Healthy(ctx)
	}
	return c.cache.Healthy()
}

func (c *Coordinator) exists(ctx context.Context, filename string) (bool, error) {
	if c.cache.Exists(filename) {
		return true, nil
	}
	if c.remote == nil {
		return false, nil
	}
	objects, err := c.remote.List(ctx)
	if err != nil {
		return false, err
	}
	for _, obj := range objects {
		if obj.Key == filename {
			return true, nil
		}
	}
	return false, nil
}

func (c *Coordinator) displayNames(ctx context.Context) map[string]string {
	if c.meta == nil {
		return map[string]string{}
	}
	names, err := c.meta.GetAll(ctx)
	if err != nil {
		logger.Warn("failed to load display names", "error", err)
		return map[string]string{}
	}
	return names
}

// validateFilename rejects anything that could escape the cache directory
// or the object-store prefix.
func validateFilename(filename string) error {
	if filename == "" || filename != filepath.Base(filename) || filename == "." || filename == ".." {
		return fmt.Errorf("%w: invalid filename %q", models.ErrNotFound, filename)
	}
	return nil
}
