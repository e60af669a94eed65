package cli

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/MinaProtocol/mina-release-toolkit/internal/command"
	"github.com/MinaProtocol/mina-release-toolkit/internal/debrepo"
	"github.com/MinaProtocol/mina-release-toolkit/internal/models"
	"github.com/MinaProtocol/mina-release-toolkit/internal/reversion"
)

type promoteOptions struct {
	artifacts          string
	networks           string
	sourceVersion      string
	targetVersion      string
	codenames          string
	sourceChannel      string
	targetChannel      string
	publishToDockerHub bool
	onlyDockers        bool
	onlyDebians        bool
	dryRun             bool
	debianRepo         string
	debianSignKey      string
	packageDir         string
}

// NewPromoteCmd creates the promote command
func NewPromoteCmd() *cobra.Command {
	var opts promoteOptions

	cmd := &cobra.Command{
		Use:   "promote",
		Short: "Promote artifacts from one channel/registry to another",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireFlags(map[string]string{
				"source-version": opts.sourceVersion,
				"target-version": opts.targetVersion,
			}); err != nil {
				return err
			}
			if !opts.onlyDockers {
				if err := requireFlags(map[string]string{
					"source-channel": opts.sourceChannel,
					"target-channel": opts.targetChannel,
				}); err != nil {
					return err
				}
			}
			if err := promotePrerequisites(&opts); err != nil {
				return err
			}
			return runPromote(cmd.Context(), &opts)
		},
	}

	cmd.Flags().StringVar(&opts.artifacts, "artifacts", DefaultArtifacts, "Comma separated list of artifacts to promote")
	cmd.Flags().StringVar(&opts.networks, "networks", DefaultNetworks, "Comma separated list of networks")
	cmd.Flags().StringVar(&opts.sourceVersion, "source-version", "", "Source version of build")
	cmd.Flags().StringVar(&opts.targetVersion, "target-version", "", "Target version of build")
	cmd.Flags().StringVar(&opts.codenames, "codenames", DefaultCodenames, "Comma separated list of debian codenames")
	cmd.Flags().StringVar(&opts.sourceChannel, "source-channel", "", "Source debian channel")
	cmd.Flags().StringVar(&opts.targetChannel, "target-channel", "", "Target debian channel")
	cmd.Flags().BoolVar(&opts.publishToDockerHub, "publish-to-docker-io", false, "Publish to docker.io instead of gcr.io")
	cmd.Flags().BoolVar(&opts.onlyDockers, "only-dockers", false, "Promote only docker images")
	cmd.Flags().BoolVar(&opts.onlyDebians, "only-debians", false, "Promote only debian packages")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Don't promote anything, just print what would be promoted")
	cmd.Flags().StringVar(&opts.debianRepo, "debian-repo", DefaultDebianRepo, "Debian repository to promote to")
	cmd.Flags().StringVar(&opts.debianSignKey, "debian-sign-key", "", "Debian signing key to use")
	cmd.Flags().StringVar(&opts.packageDir, "package-dir", ".", "Local directory holding the source channel's .deb files")

	return cmd
}

func promotePrerequisites(opts *promoteOptions) error {
	var programs []string
	if !opts.onlyDockers {
		programs = append(programs, "dpkg-deb", "deb-s3", "aws")
	}
	if !opts.onlyDebians {
		programs = append(programs, "docker")
	}
	return command.CheckPrerequisites(programs...)
}

func runPromote(ctx context.Context, opts *promoteOptions) error {
	runner := command.NewExecRunner()

	artifacts, err := models.ParseArtifactList(opts.artifacts)
	if err != nil {
		return err
	}
	networks := models.ParseStringList(opts.networks)
	codenames := models.ParseStringList(opts.codenames)

	if opts.sourceVersion == opts.targetVersion {
		logrus.Warn("Source and target versions are the same; promotion will only have an effect when crossing registries")
	}

	for _, artifact := range artifacts {
		for _, codename := range codenames {
			for _, network := range artifactNetworks(artifact, networks) {
				if !opts.onlyDockers {
					if err := promoteDebian(ctx, opts, runner, artifact, codename, network); err != nil {
						return err
					}
				}

				if !opts.onlyDebians {
					if !artifact.HasDockerImage() {
						logrus.Infof("There is no %s docker image to promote, skipping", artifact)
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

	logrus.Info("Promoting done")
	return nil
}

// promoteDebian reversions a locally held package out of the source channel
// and publishes the result into the target channel
func promoteDebian(ctx context.Context, opts *promoteOptions, runner command.Runner,
	artifact models.Artifact, codename, network string) error {

	fullName := artifact.FullName(network)

	logrus.Infof("Promoting %s debian from %s to %s, version %s to %s",
		artifact, opts.sourceChannel, opts.targetChannel, opts.sourceVersion, opts.targetVersion)

	if opts.dryRun {
		logrus.Infof("Dry run: would promote %s to %s", fullName,
			artifact.DebianVersion(opts.targetVersion, codename, network))
		return nil
	}

	debPath, err := findDeb(opts.packageDir, fullName)
	if err != nil {
		return err
	}

	rev := reversion.New(reversion.Config{
		DebPath:       debPath,
		PackageName:   fullName,
		SourceVersion: opts.sourceVersion,
		NewVersion:    opts.targetVersion,
		Suite:         opts.sourceChannel,
		NewSuite:      opts.targetChannel,
		NewName:       fullName,
	}, runner)

	newDebPath, err := rev.Run(ctx)
	if err != nil {
		return err
	}

	publisher := debrepo.New(debrepo.Config{
		PackagePath: newDebPath,
		Version:     opts.targetVersion,
		Bucket:      opts.debianRepo,
		Codename:    codename,
		Channel:     opts.targetChannel,
		SignKey:     opts.debianSignKey,
	}, runner)

	return publisher.Publish(ctx)
}
