package cli

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/MinaProtocol/mina-release-toolkit/internal/models"
)

// Default artifact/network/codename combinations
const (
	DefaultArtifacts  = "mina-logproc,mina-archive,mina-rosetta,mina-daemon"
	DefaultNetworks   = "devnet,mainnet"
	DefaultCodenames  = "bullseye,focal"
	DefaultDebianRepo = "packages.o1test.net"
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "mina-release",
		Short: "Manage the lifecycle of Mina release artifacts",
		Long: `mina-release moves build artifacts between the staging store, the shared
debian repository and the container registries.

Main capabilities:
  - publish: publish build artifacts to the debian repository and registries
  - promote: promote artifacts from one channel/registry to another
  - pull:    download build artifacts to a local directory
  - persist: archive build artifacts to long-term storage
  - fix:     repair debian repository manifests`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			verbose, _ := cmd.Flags().GetBool("verbose")
			if verbose {
				logrus.SetLevel(logrus.DebugLevel)
			} else {
				logrus.SetLevel(logrus.InfoLevel)
			}
		},
	}

	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	rootCmd.AddCommand(NewPublishCmd())
	rootCmd.AddCommand(NewPromoteCmd())
	rootCmd.AddCommand(NewPullCmd())
	rootCmd.AddCommand(NewPersistCmd())
	rootCmd.AddCommand(NewFixCmd())

	return rootCmd
}

// requireFlags fails with a MissingParameter error when any of the named
// values is empty
func requireFlags(fields map[string]string) error {
	for name, value := range fields {
		if value == "" {
			return models.NewError(models.ErrMissingParameter, "required parameter missing: %s", name)
		}
	}
	return nil
}
