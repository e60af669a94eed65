package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/MinaProtocol/mina-release-toolkit/internal/command"
	"github.com/MinaProtocol/mina-release-toolkit/internal/models"
)

// Backend is the storage capability every store variant implements. Paths
// passed to List, Hash and Download may contain glob patterns; each variant
// expands them with its own transport.
type Backend interface {
	// List returns the entries matching path, one per line of transport
	// output. An empty result is not an error.
	List(ctx context.Context, path string) ([]string, error)

	// Hash returns the md5 content hash of the artifact at path
	Hash(ctx context.Context, path string) (string, error)

	// Download copies the remote artifact(s) at remotePath into localPath
	Download(ctx context.Context, remotePath, localPath string) error

	// Upload copies the local artifact(s) at localPath to remotePath
	Upload(ctx context.Context, localPath, remotePath string) error

	// Root returns the fixed root prefix all remote paths live under
	Root() string
}

// Config selects and parameterizes a storage backend. It is built explicitly
// by the caller; backends never read the process environment themselves.
type Config struct {
	// Backend is one of "local", "gs" or "hetzner"
	Backend string

	// Root overrides the backend's default root prefix when non-empty
	Root string

	// SSH transport settings, used by the hetzner backend
	SSHUser    string
	SSHHost    string
	SSHKeyPath string
	SSHPort    int
}

// Default root prefixes per backend
const (
	defaultLocalRoot   = "/var/storagebox"
	defaultGSRoot      = "gs://buildkite_k8s/coda/shared"
	defaultHetznerRoot = "/home/o1labs-generic/pvc-4d294645-6466-4260-b933-1b909ff9c3a1"

	defaultSSHPort = 23
)

// ConfigFromEnv builds a Config for the named backend, filling SSH transport
// settings from the environment. This is the only place environment state
// enters the storage layer.
func ConfigFromEnv(backend string) (Config, error) {
	cfg := Config{Backend: backend}

	switch backend {
	case "local", "gs":
	case "hetzner":
		cfg.SSHUser = envOr("HETZNER_USER", "u434410")
		cfg.SSHHost = envOr("HETZNER_HOST", "u434410-sub2.your-storagebox.de")
		cfg.SSHKeyPath = envOr("HETZNER_KEY", filepath.Join(os.Getenv("HOME"), ".ssh", "id_rsa"))
		cfg.SSHPort = defaultSSHPort
	default:
		return Config{}, models.NewError(models.ErrUnsupportedBackend, "unsupported backend: %s", backend)
	}

	return cfg, nil
}

// New creates the Backend selected by cfg
func New(cfg Config, runner command.Runner) (Backend, error) {
	switch cfg.Backend {
	case "local":
		return newLocalBackend(cfg), nil
	case "gs":
		return newGSBackend(cfg, runner), nil
	case "hetzner":
		if cfg.SSHPort == 0 {
			cfg.SSHPort = defaultSSHPort
		}
		return newSSHBackend(cfg, runner), nil
	default:
		return nil, models.NewError(models.ErrUnsupportedBackend, "unsupported backend: %s", cfg.Backend)
	}
}

// ValidateBackend checks that the backend name is one of the known variants
func ValidateBackend(backend string) error {
	switch backend {
	case "local", "gs", "hetzner":
		return nil
	default:
		return models.NewError(models.ErrUnsupportedBackend, "unsupported backend: %s", backend)
	}
}

// BuildPath returns the remote location of a build's Debian packages for a
// codename, as a glob over the artifact's file name.
func BuildPath(b Backend, buildID, codename, artifactFullName string) string {
	return fmt.Sprintf("%s/%s/debians/%s/%s_*", b.Root(), buildID, codename, artifactFullName)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
