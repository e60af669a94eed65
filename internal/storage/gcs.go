package storage

import (
	"context"
	"strings"

	"github.com/MinaProtocol/mina-release-toolkit/internal/command"
	"github.com/MinaProtocol/mina-release-toolkit/internal/models"
)

// gsBackend serves a Google Cloud Storage bucket through gsutil. gsutil
// expands wildcards on its own.
type gsBackend struct {
	root   string
	runner command.Runner
}

func newGSBackend(cfg Config, runner command.Runner) *gsBackend {
	root := cfg.Root
	if root == "" {
		root = defaultGSRoot
	}
	return &gsBackend{root: root, runner: runner}
}

func (b *gsBackend) Root() string {
	return b.root
}

func (b *gsBackend) List(ctx context.Context, path string) ([]string, error) {
	out, err := b.runner.Run(ctx, "gsutil", "list", path)
	if err != nil {
		// gsutil exits non-zero when nothing matches; treat that as an
		// empty listing only when it says so
		if cmdErr, ok := err.(*command.Error); ok && strings.Contains(cmdErr.Stderr, "matched no objects") {
			return nil, nil
		}
		return nil, models.WrapError(models.ErrStorage, "", err)
	}
	return splitLines(out), nil
}

func (b *gsBackend) Hash(ctx context.Context, path string) (string, error) {
	out, err := b.runner.Run(ctx, "gsutil", "hash", "-h", "-m", path)
	if err != nil {
		return "", models.WrapError(models.ErrStorage, "", err)
	}

	// gsutil prints "	Hash (md5):		<hex>" per object
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, "Hash (md5)") {
			fields := strings.Fields(line)
			if len(fields) >= 3 {
				return fields[2], nil
			}
		}
	}

	return "", models.NewError(models.ErrStorage, "could not parse md5 hash from gsutil output for %s", path)
}

func (b *gsBackend) Download(ctx context.Context, remotePath, localPath string) error {
	if _, err := b.runner.Run(ctx, "gsutil", "cp", remotePath, localPath); err != nil {
		return models.WrapError(models.ErrStorage, "", err)
	}
	return nil
}

func (b *gsBackend) Upload(ctx context.Context, localPath, remotePath string) error {
	if _, err := b.runner.Run(ctx, "gsutil", "cp", localPath, remotePath); err != nil {
		return models.WrapError(models.ErrStorage, "", err)
	}
	return nil
}

func splitLines(out string) []string {
	if out == "" {
		return nil
	}
	var lines []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
