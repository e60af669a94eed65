package cli

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/MinaProtocol/mina-release-toolkit/internal/command"
	"github.com/MinaProtocol/mina-release-toolkit/internal/debrepo"
	"github.com/MinaProtocol/mina-release-toolkit/internal/models"
	"github.com/MinaProtocol/mina-release-toolkit/internal/registry"
	"github.com/MinaProtocol/mina-release-toolkit/internal/reversion"
	"github.com/MinaProtocol/mina-release-toolkit/internal/storage"
)

type publishOptions struct {
	artifacts               string
	networks                string
	buildID                 string
	sourceVersion           string
	targetVersion           string
	codenames               string
	channel                 string
	publishToDockerHub      bool
	onlyDockers             bool
	onlyDebians             bool
	dryRun                  bool
	backend                 string
	debianRepo              string
	debianSignKey           string
	stripNetworkFromArchive bool
}

// NewPublishCmd creates the publish command
func NewPublishCmd() *cobra.Command {
	var opts publishOptions

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish build artifacts to the debian repository and docker registry",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireFlags(map[string]string{
				"source-version":     opts.sourceVersion,
				"target-version":     opts.targetVersion,
				"buildkite-build-id": opts.buildID,
				"channel":            opts.channel,
			}); err != nil {
				return err
			}
			if err := storage.ValidateBackend(opts.backend); err != nil {
				return err
			}
			if err := publishPrerequisites(&opts); err != nil {
				return err
			}
			return runPublish(cmd.Context(), &opts)
		},
	}

	cmd.Flags().StringVar(&opts.artifacts, "artifacts", DefaultArtifacts, "Comma separated list of artifacts to publish")
	cmd.Flags().StringVar(&opts.networks, "networks", DefaultNetworks, "Comma separated list of networks to publish")
	cmd.Flags().StringVar(&opts.buildID, "buildkite-build-id", "", "Buildkite build id of release build to publish")
	cmd.Flags().StringVar(&opts.sourceVersion, "source-version", "", "Source version of build to publish")
	cmd.Flags().StringVar(&opts.targetVersion, "target-version", "", "Target version of build to publish")
	cmd.Flags().StringVar(&opts.codenames, "codenames", DefaultCodenames, "Comma separated list of debian codenames to publish")
	cmd.Flags().StringVar(&opts.channel, "channel", "", "Target debian channel")
	cmd.Flags().BoolVar(&opts.publishToDockerHub, "publish-to-docker-io", false, "Publish to docker.io instead of gcr.io")
	cmd.Flags().BoolVar(&opts.onlyDockers, "only-dockers", false, "Publish only docker images")
	cmd.Flags().BoolVar(&opts.onlyDebians, "only-debians", false, "Publish only debian packages")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Don't publish anything, just print what would be published")
	cmd.Flags().StringVar(&opts.backend, "backend", "gs", "Backend to use for storage")
	cmd.Flags().StringVar(&opts.debianRepo, "debian-repo", DefaultDebianRepo, "Debian repository to publish to")
	cmd.Flags().StringVar(&opts.debianSignKey, "debian-sign-key", "", "Debian signing key to use")
	cmd.Flags().BoolVar(&opts.stripNetworkFromArchive, "strip-network-from-archive", false, "Strip network from archive package name")

	return cmd
}

func publishPrerequisites(opts *publishOptions) error {
	programs := []string{"dpkg-deb", "deb-s3", "aws"}
	if opts.backend == "gs" {
		programs = append(programs, "gsutil")
	}
	if !opts.onlyDebians {
		programs = append(programs, "docker")
	}
	return command.CheckPrerequisites(programs...)
}

func runPublish(ctx context.Context, opts *publishOptions) error {
	runner := command.NewExecRunner()

	cfg, err := storage.ConfigFromEnv(opts.backend)
	if err != nil {
		return err
	}
	backend, err := storage.New(cfg, runner)
	if err != nil {
		return err
	}
	cache := storage.NewCache(storage.DefaultCacheDir(), backend)

	artifacts, err := models.ParseArtifactList(opts.artifacts)
	if err != nil {
		return err
	}
	networks := models.ParseStringList(opts.networks)
	codenames := models.ParseStringList(opts.codenames)

	logrus.Infof("Publishing artifacts %s (build %s) from version %s to %s, channel %s",
		opts.artifacts, opts.buildID, opts.sourceVersion, opts.targetVersion, opts.channel)

	// Strictly sequential: one artifact/codename/network combination and one
	// external command at a time
	for _, artifact := range artifacts {
		for _, codename := range codenames {
			for _, network := range artifactNetworks(artifact, networks) {
				if !opts.onlyDockers {
					if err := publishDebian(ctx, opts, cache, runner, artifact, codename, network); err != nil {
						return err
					}
				}

				if !opts.onlyDebians {
					if !artifact.HasDockerImage() {
						logrus.Infof("There is no %s docker image to publish, skipping", artifact)
						continue
					}
					if err := promoteDocker(ctx, runner, artifact, opts.sourceVersion,
						opts.targetVersion, codename, network, opts.publishToDockerHub, opts.dryRun); err != nil {
						return err
					}
				}
			}
		}
	}

	logrus.Info("Publishing done")
	return nil
}

// artifactNetworks returns the networks a given artifact is published for.
// Network-independent artifacts collapse to a single pass.
func artifactNetworks(artifact models.Artifact, networks []string) []string {
	if !artifact.HasNetworkSuffix() {
		return []string{""}
	}
	return networks
}

func publishDebian(ctx context.Context, opts *publishOptions, cache *storage.Cache,
	runner command.Runner, artifact models.Artifact, codename, network string) error {

	fullName := artifact.FullName(network)

	packagePath, err := cache.EnsureCached(ctx, fullName, codename, opts.buildID)
	if err != nil {
		return err
	}

	newName := fullName
	if opts.stripNetworkFromArchive && artifact == models.MinaArchive {
		newName = models.MinaArchive.String()
	}

	if opts.sourceVersion != opts.targetVersion {
		logrus.Infof("Rebuilding %s debian from %s to %s", artifact, opts.sourceVersion, opts.targetVersion)

		rev := reversion.New(reversion.Config{
			DebPath:       packagePath,
			PackageName:   fullName,
			SourceVersion: opts.sourceVersion,
			NewVersion:    opts.targetVersion,
			Suite:         "unstable",
			NewSuite:      opts.channel,
			NewName:       newName,
		}, runner)

		packagePath, err = rev.Run(ctx)
		if err != nil {
			return err
		}
	}

	logrus.Infof("Publishing %s debian to %s channel, target version %s", artifact, opts.channel,
		artifact.DebianVersion(opts.targetVersion, codename, network))

	if opts.dryRun {
		logrus.Infof("Dry run: would publish %s", packagePath)
		return nil
	}

	publisher := debrepo.New(debrepo.Config{
		PackagePath: packagePath,
		Version:     opts.targetVersion,
		Bucket:      opts.debianRepo,
		Codename:    codename,
		Channel:     opts.channel,
		SignKey:     opts.debianSignKey,
	}, runner)

	return publisher.Publish(ctx)
}

func promoteDocker(ctx context.Context, runner command.Runner, artifact models.Artifact,
	sourceVersion, targetVersion, codename, network string, toDockerHub, dryRun bool) error {

	sourceTag := artifact.DockerTag(sourceVersion, codename, network)
	targetTag := artifact.DockerTag(targetVersion, codename, network)

	logrus.Infof("Publishing %s docker for %q network and %q codename, target tag %s",
		artifact, network, codename, targetTag)

	if dryRun {
		logrus.Infof("Dry run: would promote %s:%s to %s", artifact, sourceTag, targetTag)
		return nil
	}

	promoter := registry.New(registry.NewConfig(artifact.String(), sourceTag, targetTag, toDockerHub), runner)
	return promoter.Promote(ctx)
}
