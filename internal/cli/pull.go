package cli

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/MinaProtocol/mina-release-toolkit/internal/command"
	"github.com/MinaProtocol/mina-release-toolkit/internal/deb"
	"github.com/MinaProtocol/mina-release-toolkit/internal/models"
	"github.com/MinaProtocol/mina-release-toolkit/internal/storage"
)

type pullOptions struct {
	backend   string
	artifacts string
	buildID   string
	target    string
	codenames string
	networks  string
}

// NewPullCmd creates the pull command
func NewPullCmd() *cobra.Command {
	var opts pullOptions

	cmd := &cobra.Command{
		Use:   "pull",
		Short: "Pull build artifacts to a local directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireFlags(map[string]string{
				"buildkite-build-id": opts.buildID,
			}); err != nil {
				return err
			}
			if err := storage.ValidateBackend(opts.backend); err != nil {
				return err
			}
			return runPull(cmd.Context(), &opts)
		},
	}

	cmd.Flags().StringVar(&opts.backend, "backend", "hetzner", "Backend to pull artifacts from")
	cmd.Flags().StringVar(&opts.artifacts, "artifacts", DefaultArtifacts, "Comma separated list of artifacts to pull")
	cmd.Flags().StringVar(&opts.buildID, "buildkite-build-id", "", "Buildkite build id")
	cmd.Flags().StringVar(&opts.target, "target", ".", "Target local location")
	cmd.Flags().StringVar(&opts.codenames, "codenames", DefaultCodenames, "Comma separated list of codenames")
	cmd.Flags().StringVar(&opts.networks, "networks", DefaultNetworks, "Comma separated list of networks")

	return cmd
}

func runPull(ctx context.Context, opts *pullOptions) error {
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
	networks := models.ParseStringList(opts.networks)
	codenames := models.ParseStringList(opts.codenames)

	for _, artifact := range artifacts {
		for _, codename := range codenames {
			for _, network := range artifactNetworks(artifact, networks) {
				fullName := artifact.FullName(network)
				logrus.Infof("Pulling %s for %s codename and %q network", artifact, codename, network)

				remotePath := storage.BuildPath(backend, opts.buildID, codename, fullName)
				if err := backend.Download(ctx, remotePath, opts.target); err != nil {
					return err
				}

				describePulled(opts.target, fullName)
			}
		}
	}

	logrus.Info("Pull done")
	return nil
}

// describePulled logs the metadata of a freshly pulled package
func describePulled(dir, fullName string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), fullName+"_") {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		pkg, err := deb.Inspect(path)
		if err != nil {
			logrus.Debugf("Could not inspect %s: %v", path, err)
			continue
		}
		logrus.Infof("Pulled %s %s (%s)", pkg.Name, pkg.Version, pkg.Architecture)
	}
}
