package models

import (
	"reflect"
	"testing"
)

func TestParseArtifact(t *testing.T) {
	for _, name := range []string{"mina-daemon", "mina-archive", "mina-rosetta", "mina-logproc"} {
		a, err := ParseArtifact(name)
		if err != nil {
			t.Fatalf("ParseArtifact(%q) failed: %v", name, err)
		}
		if a.String() != name {
			t.Errorf("ParseArtifact(%q).String() = %q", name, a.String())
		}
	}

	if _, err := ParseArtifact("mina-unknown"); err == nil {
		t.Error("Expected error for unknown artifact")
	} else if !IsKind(err, ErrValidation) {
		t.Errorf("Expected Validation error, got: %v", err)
	}
}

func TestFullName(t *testing.T) {
	tests := []struct {
		artifact Artifact
		network  string
		want     string
	}{
		{MinaDaemon, "devnet", "mina-devnet"},
		{MinaDaemon, "mainnet", "mina-mainnet"},
		{MinaArchive, "devnet", "mina-archive-devnet"},
		{MinaRosetta, "mainnet", "mina-rosetta-mainnet"},
		{MinaLogproc, "devnet", "mina-logproc"},
		{MinaArchive, "", "mina-archive"},
	}

	for _, tt := range tests {
		if got := tt.artifact.FullName(tt.network); got != tt.want {
			t.Errorf("%s.FullName(%q) = %q, want %q", tt.artifact, tt.network, got, tt.want)
		}
	}
}

func TestNetworkSuffix(t *testing.T) {
	if got := MinaArchive.NetworkSuffix("devnet"); got != "-devnet" {
		t.Errorf("NetworkSuffix = %q, want -devnet", got)
	}
	if got := MinaLogproc.NetworkSuffix("devnet"); got != "" {
		t.Errorf("Logproc NetworkSuffix = %q, want empty", got)
	}
	if got := MinaArchive.NetworkSuffix(""); got != "" {
		t.Errorf("Empty network NetworkSuffix = %q, want empty", got)
	}
}

func TestHasDockerImage(t *testing.T) {
	if MinaLogproc.HasDockerImage() {
		t.Error("mina-logproc should not have a docker image")
	}
	if !MinaDaemon.HasDockerImage() {
		t.Error("mina-daemon should have a docker image")
	}
}

func TestDebianVersion(t *testing.T) {
	got := MinaArchive.DebianVersion("1.2.0", "bullseye", "devnet")
	want := "mina-archive:1.2.0-bullseye-devnet"
	if got != want {
		t.Errorf("DebianVersion = %q, want %q", got, want)
	}

	got = MinaLogproc.DebianVersion("1.2.0", "focal", "devnet")
	want = "mina-logproc:1.2.0-focal"
	if got != want {
		t.Errorf("DebianVersion = %q, want %q", got, want)
	}
}

func TestDockerTag(t *testing.T) {
	got := MinaDaemon.DockerTag("2.0.0rampup1", "bullseye", "mainnet")
	want := "2.0.0rampup1-bullseye-mainnet"
	if got != want {
		t.Errorf("DockerTag = %q, want %q", got, want)
	}
}

func TestExtractVersionFromDeb(t *testing.T) {
	tests := []struct {
		filename string
		want     string
		wantErr  bool
	}{
		{"mina-archive-devnet_1.2.0-fe8cea4.deb", "1.2.0-fe8cea4", false},
		{"mina-devnet_2.0.0rampup4.deb", "2.0.0rampup4", false},
		{"not-a-deb.txt", "", true},
		{"nounderscore.deb", "", true},
	}

	for _, tt := range tests {
		got, err := ExtractVersionFromDeb(tt.filename)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ExtractVersionFromDeb(%q) expected error", tt.filename)
			}
			continue
		}
		if err != nil {
			t.Errorf("ExtractVersionFromDeb(%q) failed: %v", tt.filename, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ExtractVersionFromDeb(%q) = %q, want %q", tt.filename, got, tt.want)
		}
	}
}

func TestParseStringList(t *testing.T) {
	got := ParseStringList(" devnet, mainnet ,,berkeley")
	want := []string{"devnet", "mainnet", "berkeley"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ParseStringList = %v, want %v", got, want)
	}

	if got := ParseStringList(""); got != nil {
		t.Errorf("ParseStringList(\"\") = %v, want nil", got)
	}
}

func TestParseArtifactList(t *testing.T) {
	got, err := ParseArtifactList("mina-logproc,mina-daemon")
	if err != nil {
		t.Fatalf("ParseArtifactList failed: %v", err)
	}
	want := []Artifact{MinaLogproc, MinaDaemon}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ParseArtifactList = %v, want %v", got, want)
	}

	if _, err := ParseArtifactList("mina-daemon,bogus"); err == nil {
		t.Error("Expected error for list with unknown artifact")
	}
}
