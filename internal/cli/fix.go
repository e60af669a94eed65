package cli

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/MinaProtocol/mina-release-toolkit/internal/command"
	"github.com/MinaProtocol/mina-release-toolkit/internal/debrepo"
	"github.com/MinaProtocol/mina-release-toolkit/internal/models"
)

type fixOptions struct {
	codenames string
	channel   string
	repo      string
	signKey   string
}

// NewFixCmd creates the fix command
func NewFixCmd() *cobra.Command {
	var opts fixOptions

	cmd := &cobra.Command{
		Use:   "fix",
		Short: "Fix debian repository manifests",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireFlags(map[string]string{
				"channel": opts.channel,
			}); err != nil {
				return err
			}
			if err := command.CheckPrerequisites("deb-s3"); err != nil {
				return err
			}
			return runFix(cmd.Context(), &opts)
		},
	}

	cmd.Flags().StringVar(&opts.codenames, "codenames", DefaultCodenames, "Comma separated list of codenames to fix")
	cmd.Flags().StringVar(&opts.channel, "channel", "", "Debian channel to fix")
	cmd.Flags().StringVar(&opts.repo, "debian-repo", DefaultDebianRepo, "Debian repository bucket")
	cmd.Flags().StringVar(&opts.signKey, "debian-sign-key", "", "Key id to sign repository manifests with")

	return cmd
}

func runFix(ctx context.Context, opts *fixOptions) error {
	runner := command.NewExecRunner()
	codenames := models.ParseStringList(opts.codenames)

	for _, codename := range codenames {
		logrus.Infof("Fixing manifests for %s/%s", codename, opts.channel)

		publisher := debrepo.New(debrepo.Config{
			Bucket:   opts.repo,
			Codename: codename,
			Channel:  opts.channel,
			SignKey:  opts.signKey,
		}, runner)

		if err := publisher.FixManifests(ctx); err != nil {
			return err
		}
	}

	logrus.Info("Fix done")
	return nil
}
