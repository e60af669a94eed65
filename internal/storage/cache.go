package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/MinaProtocol/mina-release-toolkit/internal/models"
	"github.com/MinaProtocol/mina-release-toolkit/internal/utils"
)

// Cache keeps local copies of remote Debian packages keyed by content hash.
// A cached file is valid iff its md5 equals the remote artifact's current
// md5; stale entries are overwritten, never deleted.
type Cache struct {
	dir     string
	backend Backend
}

// NewCache creates a cache rooted at dir, backed by backend
func NewCache(dir string, backend Backend) *Cache {
	return &Cache{dir: dir, backend: backend}
}

// DefaultCacheDir returns the debian package cache location, honoring the
// DEBIAN_CACHE_FOLDER override
func DefaultCacheDir() string {
	if dir := os.Getenv("DEBIAN_CACHE_FOLDER"); dir != "" {
		return dir
	}
	home := os.Getenv("HOME")
	if home == "" {
		home = "/tmp"
	}
	return filepath.Join(home, ".release", "debian", "cache")
}

// Dir returns the cache root directory
func (c *Cache) Dir() string {
	return c.dir
}

// CodenameDir returns the cache subdirectory for a codename
func (c *Cache) CodenameDir(codename string) string {
	return filepath.Join(c.dir, codename)
}

// EnsureCached guarantees that a local copy of the artifact's package exists
// under the codename subdirectory with a content hash equal to the remote
// one, downloading only on a miss. It returns the local package path.
func (c *Cache) EnsureCached(ctx context.Context, artifactFullName, codename, buildID string) (string, error) {
	remotePath := BuildPath(c.backend, buildID, codename, artifactFullName)

	files, err := c.backend.List(ctx, remotePath)
	if err != nil {
		return "", err
	}
	if len(files) == 0 {
		return "", models.NewError(models.ErrArtifactNotFound,
			"no debian package found for %s (build: %s)", artifactFullName, buildID)
	}

	// Compute the remote hash once per call
	remoteHash, err := c.backend.Hash(ctx, remotePath)
	if err != nil {
		return "", err
	}

	cacheDir := c.CodenameDir(codename)
	if err := utils.EnsureDir(cacheDir); err != nil {
		return "", models.WrapError(models.ErrIO, artifactFullName, err)
	}

	logrus.Infof("Checking cache for %s/%s debian package", codename, artifactFullName)

	if path, ok := c.findCached(cacheDir, artifactFullName, remoteHash); ok {
		logrus.Infof("%s debian package already cached, skipping download", artifactFullName)
		return path, nil
	}

	logrus.Infof("%s debian package is not cached, downloading", artifactFullName)
	if err := c.backend.Download(ctx, remotePath, cacheDir); err != nil {
		return "", err
	}

	path, ok := c.findCached(cacheDir, artifactFullName, remoteHash)
	if !ok {
		return "", models.NewError(models.ErrStorage,
			"downloaded package for %s does not match remote hash %s", artifactFullName, remoteHash)
	}
	return path, nil
}

// findCached scans the cache subdirectory for a file whose name starts with
// the artifact's full name and whose md5 matches. Matching is exact and
// case-sensitive.
func (c *Cache) findCached(cacheDir, artifactFullName, wantHash string) (string, bool) {
	entries, err := os.ReadDir(cacheDir)
	if err != nil {
		return "", false
	}

	prefix := artifactFullName + "_"
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), prefix) {
			continue
		}

		path := filepath.Join(cacheDir, entry.Name())
		hash, err := utils.FileMD5(path)
		if err != nil {
			continue
		}
		if hash == wantHash {
			return path, true
		}
	}
	return "", false
}

// FindPackage locates a cached .deb for the artifact regardless of hash
// state. Used after reversioning, which writes new packages beside the
// cached source.
func (c *Cache) FindPackage(codename, artifactFullName string) (string, error) {
	cacheDir := c.CodenameDir(codename)
	entries, err := os.ReadDir(cacheDir)
	if err != nil {
		return "", models.WrapError(models.ErrIO, artifactFullName, err)
	}

	prefix := artifactFullName + "_"
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasPrefix(entry.Name(), prefix) && strings.HasSuffix(entry.Name(), ".deb") {
			return filepath.Join(cacheDir, entry.Name()), nil
		}
	}

	return "", models.NewError(models.ErrArtifactNotFound,
		"could not find %s*.deb in %s", prefix, cacheDir)
}
