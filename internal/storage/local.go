package storage

import (
	"context"
	"os"
	"path/filepath"

	"github.com/MinaProtocol/mina-release-toolkit/internal/models"
	"github.com/MinaProtocol/mina-release-toolkit/internal/utils"
)

// localBackend serves a store rooted on the local filesystem. Glob patterns
// are expanded with filepath.Glob instead of a shell.
type localBackend struct {
	root string
}

func newLocalBackend(cfg Config) *localBackend {
	root := cfg.Root
	if root == "" {
		root = defaultLocalRoot
	}
	return &localBackend{root: root}
}

func (b *localBackend) Root() string {
	return b.root
}

func (b *localBackend) List(ctx context.Context, path string) ([]string, error) {
	matches, err := filepath.Glob(path)
	if err != nil {
		return nil, models.WrapError(models.ErrStorage, "", err)
	}
	return matches, nil
}

func (b *localBackend) Hash(ctx context.Context, path string) (string, error) {
	target, err := b.resolve(path)
	if err != nil {
		return "", err
	}

	hash, err := utils.FileMD5(target)
	if err != nil {
		return "", models.WrapError(models.ErrStorage, "", err)
	}
	return hash, nil
}

func (b *localBackend) Download(ctx context.Context, remotePath, localPath string) error {
	matches, err := b.List(ctx, remotePath)
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		return models.NewError(models.ErrStorage, "no files match %s", remotePath)
	}

	for _, src := range matches {
		dst := filepath.Join(localPath, filepath.Base(src))
		if err := utils.CopyFile(src, dst); err != nil {
			return models.WrapError(models.ErrStorage, "", err)
		}
	}
	return nil
}

func (b *localBackend) Upload(ctx context.Context, localPath, remotePath string) error {
	matches, err := filepath.Glob(localPath)
	if err != nil {
		return models.WrapError(models.ErrStorage, "", err)
	}
	if len(matches) == 0 {
		return models.NewError(models.ErrStorage, "no files match %s", localPath)
	}

	intoDir := len(matches) > 1
	if info, err := os.Stat(remotePath); err == nil && info.IsDir() {
		intoDir = true
	}

	for _, src := range matches {
		dst := remotePath
		if intoDir {
			dst = filepath.Join(remotePath, filepath.Base(src))
		}
		if err := utils.CopyFile(src, dst); err != nil {
			return models.WrapError(models.ErrStorage, "", err)
		}
	}
	return nil
}

// resolve expands a possibly-globbed path to a single concrete file
func (b *localBackend) resolve(path string) (string, error) {
	matches, err := filepath.Glob(path)
	if err != nil {
		return "", models.WrapError(models.ErrStorage, "", err)
	}
	if len(matches) == 0 {
		return "", models.NewError(models.ErrStorage, "no files match %s", path)
	}
	return matches[0], nil
}
