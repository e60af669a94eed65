package cli

import (
	"reflect"
	"testing"

	"github.com/MinaProtocol/mina-release-toolkit/internal/models"
)

func TestRequireFlags(t *testing.T) {
	err := requireFlags(map[string]string{
		"source-version": "1.0.0",
		"channel":        "stable",
	})
	if err != nil {
		t.Errorf("All flags set, expected no error: %v", err)
	}

	err = requireFlags(map[string]string{
		"source-version": "1.0.0",
		"channel":        "",
	})
	if err == nil {
		t.Fatal("Expected error for empty flag")
	}
	if !models.IsKind(err, models.ErrMissingParameter) {
		t.Errorf("Expected MissingParameter, got: %v", err)
	}
}

func TestArtifactNetworks(t *testing.T) {
	networks := []string{"devnet", "mainnet"}

	got := artifactNetworks(models.MinaArchive, networks)
	if !reflect.DeepEqual(got, networks) {
		t.Errorf("Networked artifact = %v, want %v", got, networks)
	}

	got = artifactNetworks(models.MinaLogproc, networks)
	if !reflect.DeepEqual(got, []string{""}) {
		t.Errorf("Network-independent artifact = %v, want a single empty pass", got)
	}
}

func TestRootCmdHasSubcommands(t *testing.T) {
	root := NewRootCmd()

	want := map[string]bool{
		"publish": false,
		"promote": false,
		"pull":    false,
		"persist": false,
		"fix":     false,
	}
	for _, cmd := range root.Commands() {
		if _, ok := want[cmd.Name()]; ok {
			want[cmd.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("Missing subcommand %s", name)
		}
	}
}

func TestPublishRequiresVersions(t *testing.T) {
	root := NewRootCmd()
	root.SetArgs([]string{"publish", "--buildkite-build-id", "b1", "--channel", "stable"})
	root.SilenceUsage = true
	root.SilenceErrors = true

	err := root.Execute()
	if err == nil {
		t.Fatal("Expected missing parameter error")
	}
	if !models.IsKind(err, models.ErrMissingParameter) {
		t.Errorf("Expected MissingParameter, got: %v", err)
	}
}
