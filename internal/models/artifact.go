package models

import (
	"fmt"
	"regexp"
	"strings"
)

// Artifact represents a known release artifact
type Artifact int

const (
	ArtifactUnknown Artifact = iota
	MinaDaemon
	MinaArchive
	MinaRosetta
	MinaLogproc
)

// String returns the package name of the artifact
func (a Artifact) String() string {
	switch a {
	case MinaDaemon:
		return "mina-daemon"
	case MinaArchive:
		return "mina-archive"
	case MinaRosetta:
		return "mina-rosetta"
	case MinaLogproc:
		return "mina-logproc"
	default:
		return "unknown"
	}
}

// ParseArtifact resolves an artifact name to its Artifact value
func ParseArtifact(s string) (Artifact, error) {
	switch s {
	case "mina-daemon":
		return MinaDaemon, nil
	case "mina-archive":
		return MinaArchive, nil
	case "mina-rosetta":
		return MinaRosetta, nil
	case "mina-logproc":
		return MinaLogproc, nil
	default:
		return ArtifactUnknown, NewError(ErrValidation, "unknown artifact: %s", s)
	}
}

// HasNetworkSuffix reports whether packages of this artifact carry a network
// suffix in their name. mina-logproc is network-independent.
func (a Artifact) HasNetworkSuffix() bool {
	switch a {
	case MinaDaemon, MinaArchive, MinaRosetta:
		return true
	default:
		return false
	}
}

// HasDockerImage reports whether a container image is built for this artifact
func (a Artifact) HasDockerImage() bool {
	return a != MinaLogproc
}

// NetworkSuffix returns the "-<network>" suffix for the artifact, or an empty
// string when the artifact is network-independent or no network is given.
func (a Artifact) NetworkSuffix(network string) string {
	if network == "" || !a.HasNetworkSuffix() {
		return ""
	}
	return "-" + network
}

// FullName returns the package name with the network folded in. The daemon
// package is historically named mina-<network> rather than
// mina-daemon-<network>.
func (a Artifact) FullName(network string) string {
	if network == "" || !a.HasNetworkSuffix() {
		return a.String()
	}
	if a == MinaDaemon {
		return "mina-" + network
	}
	return fmt.Sprintf("%s-%s", a, network)
}

// DebianVersion returns the fully qualified repository version string for an
// artifact published under a codename
func (a Artifact) DebianVersion(targetVersion, codename, network string) string {
	return fmt.Sprintf("%s:%s-%s%s", a, targetVersion, codename, a.NetworkSuffix(network))
}

// DockerTag returns the tag portion of an image reference following the
// {version}-{codename}[-{network}] convention
func (a Artifact) DockerTag(version, codename, network string) string {
	return fmt.Sprintf("%s-%s%s", version, codename, a.NetworkSuffix(network))
}

var debVersionRe = regexp.MustCompile(`.*_([^_]*)\.deb$`)

// ExtractVersionFromDeb pulls the version component out of a .deb file name
func ExtractVersionFromDeb(filename string) (string, error) {
	m := debVersionRe.FindStringSubmatch(filename)
	if m == nil {
		return "", NewError(ErrValidation, "could not extract version from: %s", filename)
	}
	return m[1], nil
}

// ParseArtifactList parses a comma separated list of artifact names
func ParseArtifactList(s string) ([]Artifact, error) {
	var artifacts []Artifact
	for _, name := range ParseStringList(s) {
		a, err := ParseArtifact(name)
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, a)
	}
	return artifacts, nil
}

// ParseStringList splits a comma separated list, trimming whitespace and
// dropping empty entries
func ParseStringList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
