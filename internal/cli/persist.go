package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/MinaProtocol/mina-release-toolkit/internal/command"
	"github.com/MinaProtocol/mina-release-toolkit/internal/models"
	"github.com/MinaProtocol/mina-release-toolkit/internal/reversion"
	"github.com/MinaProtocol/mina-release-toolkit/internal/storage"
)

type persistOptions struct {
	backend    string
	artifacts  string
	buildID    string
	target     string
	codename   string
	newVersion string
	suite      string
}

// NewPersistCmd creates the persist command
func NewPersistCmd() *cobra.Command {
	var opts persistOptions

	cmd := &cobra.Command{
		Use:   "persist",
		Short: "Persist build artifacts to long-term storage",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireFlags(map[string]string{
				"buildkite-build-id": opts.buildID,
				"target":             opts.target,
				"codename":           opts.codename,
				"artifacts":          opts.artifacts,
			}); err != nil {
				return err
			}
			if err := storage.ValidateBackend(opts.backend); err != nil {
				return err
			}
			return runPersist(cmd.Context(), &opts)
		},
	}

	cmd.Flags().StringVar(&opts.backend, "backend", "hetzner", "Backend to persist artifacts to")
	cmd.Flags().StringVar(&opts.artifacts, "artifacts", DefaultArtifacts, "Comma separated list of artifacts to persist")
	cmd.Flags().StringVar(&opts.buildID, "buildkite-build-id", "", "Buildkite build id")
	cmd.Flags().StringVar(&opts.target, "target", "", "Target location to persist artifacts")
	cmd.Flags().StringVar(&opts.codename, "codename", "", "Codename for artifacts")
	cmd.Flags().StringVar(&opts.newVersion, "new-version", "", "New version for artifacts")
	cmd.Flags().StringVar(&opts.suite, "suite", "unstable", "Suite for artifacts")

	return cmd
}

func runPersist(ctx context.Context, opts *persistOptions) error {
	runner := command.NewExecRunner()

	cfg, err := storage.ConfigFromEnv(opts.backend)
	if err != nil {
		return err
	}
	backend, err := storage.New(cfg, runner)
	if err != nil {
		return err
	}

	artifacts, err := models.ParseArtifactList(opts.artifacts)
	if err != nil {
		return err
	}

	tempDir, err := os.MkdirTemp("", "persist-")
	if err != nil {
		return models.WrapError(models.ErrIO, "", err)
	}
	defer os.RemoveAll(tempDir)

	logrus.Debugf("Using temporary directory %s", tempDir)

	for _, artifact := range artifacts {
		remotePath := storage.BuildPath(backend, opts.buildID, opts.codename, artifact.String())
		if err := backend.Download(ctx, remotePath, tempDir); err != nil {
			return err
		}

		if opts.newVersion != "" {
			if err := reversionPersisted(ctx, opts, runner, tempDir, artifact); err != nil {
				return err
			}
		}

		// Resolve the glob locally; the ssh transport passes paths to
		// rsync verbatim
		matches, err := filepath.Glob(filepath.Join(tempDir, fmt.Sprintf("%s_*", artifact)))
		if err != nil {
			return models.WrapError(models.ErrIO, artifact.String(), err)
		}
		if len(matches) == 0 {
			return models.NewError(models.ErrArtifactNotFound,
				"no local packages to persist for %s", artifact)
		}

		targetPath := fmt.Sprintf("%s/%s/debians/%s/", backend.Root(), opts.target, opts.codename)
		for _, match := range matches {
			if err := backend.Upload(ctx, match, targetPath); err != nil {
				return err
			}
		}
	}

	logrus.Info("Persist done")
	return nil
}

// reversionPersisted rebuilds the downloaded package under the new version
// before it is uploaded to the long-term target
func reversionPersisted(ctx context.Context, opts *persistOptions, runner command.Runner,
	tempDir string, artifact models.Artifact) error {

	debPath, err := findDeb(tempDir, artifact.String())
	if err != nil {
		return err
	}

	sourceVersion, err := models.ExtractVersionFromDeb(filepath.Base(debPath))
	if err != nil {
		return err
	}

	logrus.Infof("Rebuilding %s debian from %s to %s", artifact, sourceVersion, opts.newVersion)

	rev := reversion.New(reversion.Config{
		DebPath:       debPath,
		PackageName:   artifact.String(),
		SourceVersion: sourceVersion,
		NewVersion:    opts.newVersion,
		Suite:         "unstable",
		NewSuite:      opts.suite,
		NewName:       artifact.String(),
	}, runner)

	newDebPath, err := rev.Run(ctx)
	if err != nil {
		return err
	}

	// Only the rebuilt package gets persisted
	if newDebPath != debPath {
		return os.Remove(debPath)
	}
	return nil
}

func findDeb(dir, prefix string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", models.WrapError(models.ErrIO, prefix, err)
	}

	for _, entry := range entries {
		if !entry.IsDir() && strings.HasPrefix(entry.Name(), prefix+"_") && strings.HasSuffix(entry.Name(), ".deb") {
			return filepath.Join(dir, entry.Name()), nil
		}
	}

	return "", models.NewError(models.ErrArtifactNotFound, "could not find %s_*.deb in %s", prefix, dir)
}
