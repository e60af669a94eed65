package storage

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/MinaProtocol/mina-release-toolkit/internal/command"
	"github.com/MinaProtocol/mina-release-toolkit/internal/models"
)

// sshBackend serves a remote storage box over ssh, transferring files with
// rsync. Glob patterns are expanded by the remote shell.
type sshBackend struct {
	root    string
	user    string
	host    string
	keyPath string
	port    int
	runner  command.Runner
}

func newSSHBackend(cfg Config, runner command.Runner) *sshBackend {
	root := cfg.Root
	if root == "" {
		root = defaultHetznerRoot
	}
	return &sshBackend{
		root:    root,
		user:    cfg.SSHUser,
		host:    cfg.SSHHost,
		keyPath: cfg.SSHKeyPath,
		port:    cfg.SSHPort,
		runner:  runner,
	}
}

func (b *sshBackend) Root() string {
	return b.root
}

func (b *sshBackend) target() string {
	return fmt.Sprintf("%s@%s", b.user, b.host)
}

func (b *sshBackend) rsh() string {
	return fmt.Sprintf("ssh -p %d -i %s", b.port, b.keyPath)
}

func (b *sshBackend) ssh(ctx context.Context, remoteCmd string) (string, error) {
	return b.runner.Run(ctx, "ssh",
		"-p", strconv.Itoa(b.port),
		"-i", b.keyPath,
		b.target(),
		remoteCmd,
	)
}

func (b *sshBackend) List(ctx context.Context, path string) ([]string, error) {
	out, err := b.ssh(ctx, fmt.Sprintf("ls %s", shellQuotePattern(path)))
	if err != nil {
		// ls exits non-zero when the pattern matches nothing
		if cmdErr, ok := err.(*command.Error); ok && strings.Contains(cmdErr.Stderr, "No such file") {
			return nil, nil
		}
		return nil, models.WrapError(models.ErrStorage, "", err)
	}
	return splitLines(out), nil
}

func (b *sshBackend) Hash(ctx context.Context, path string) (string, error) {
	out, err := b.ssh(ctx, fmt.Sprintf("md5sum %s", shellQuotePattern(path)))
	if err != nil {
		return "", models.WrapError(models.ErrStorage, "", err)
	}

	fields := strings.Fields(out)
	if len(fields) == 0 {
		return "", models.NewError(models.ErrStorage, "empty md5sum output for %s", path)
	}
	return fields[0], nil
}

func (b *sshBackend) Download(ctx context.Context, remotePath, localPath string) error {
	// Resolve the pattern remotely first; rsync gets concrete file names
	files, err := b.List(ctx, remotePath)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return models.NewError(models.ErrStorage, "no files match %s", remotePath)
	}

	for _, file := range files {
		_, err := b.runner.Run(ctx, "rsync",
			"-avz",
			"--rsh", b.rsh(),
			fmt.Sprintf("%s:%s", b.target(), file),
			localPath,
		)
		if err != nil {
			return models.WrapError(models.ErrStorage, "", err)
		}
	}
	return nil
}

func (b *sshBackend) Upload(ctx context.Context, localPath, remotePath string) error {
	_, err := b.runner.Run(ctx, "rsync",
		"-avz",
		"-e", b.rsh(),
		localPath,
		fmt.Sprintf("%s:%s", b.target(), remotePath),
	)
	if err != nil {
		return models.WrapError(models.ErrStorage, "", err)
	}
	return nil
}

// shellQuotePattern quotes a path for the remote shell while leaving glob
// metacharacters unquoted so the remote side expands them
func shellQuotePattern(path string) string {
	var sb strings.Builder
	for _, r := range path {
		switch r {
		case '*', '?', '[', ']', '/':
			sb.WriteRune(r)
		case '\'', '"', ' ', '\t', '$', '`', '\\', ';', '&', '|', '<', '>', '(', ')':
			sb.WriteRune('\\')
			sb.WriteRune(r)
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
