package reversion

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/MinaProtocol/mina-release-toolkit/internal/command"
	"github.com/MinaProtocol/mina-release-toolkit/internal/deb"
	"github.com/MinaProtocol/mina-release-toolkit/internal/models"
)

// Stage identifies a step of the reversioning pipeline. The pipeline is a
// linear, non-resumable state machine; a failed stage aborts the whole run
// and is reported as data on the error.
type Stage int

const (
	StageValidate Stage = iota
	StageExtract
	StagePatch
	StageRepack
)

// String returns the string representation of Stage
func (s Stage) String() string {
	switch s {
	case StageValidate:
		return "validate"
	case StageExtract:
		return "extract"
	case StagePatch:
		return "patch-metadata"
	case StageRepack:
		return "repack"
	default:
		return "unknown"
	}
}

// StageError reports which pipeline stage failed
type StageError struct {
	Stage Stage
	Err   error
}

// Error implements the error interface
func (e *StageError) Error() string {
	return fmt.Sprintf("reversion stage %s: %v", e.Stage, e.Err)
}

// Unwrap returns the wrapped error
func (e *StageError) Unwrap() error {
	return e.Err
}

// Config parameterizes one reversioning run
type Config struct {
	// DebPath is the source .deb file; it is never mutated
	DebPath string

	// PackageName is the current package name inside the archive
	PackageName string

	// SourceVersion and NewVersion bound the version rewrite
	SourceVersion string
	NewVersion    string

	// Suite and NewSuite bound the channel transition
	Suite    string
	NewSuite string

	// NewName renames the package when non-empty
	NewName string
}

// Reversioner produces a new Debian package from an existing one with
// rewritten version, name and channel metadata. The payload is untouched.
type Reversioner struct {
	config Config
	runner command.Runner
}

// New creates a Reversioner
func New(config Config, runner command.Runner) *Reversioner {
	return &Reversioner{config: config, runner: runner}
}

// finalName is the package name the repacked archive is built under
func (r *Reversioner) finalName() string {
	if r.config.NewName != "" {
		return r.config.NewName
	}
	return r.config.PackageName
}

// Run executes the full pipeline and returns the path of the new package.
// Identical inputs always produce the same archive name beside the source,
// so a failed run can simply be retried.
func (r *Reversioner) Run(ctx context.Context) (string, error) {
	if err := r.validate(); err != nil {
		return "", &StageError{Stage: StageValidate, Err: err}
	}

	logrus.Infof("Reversioning debian package %s: %s -> %s (suite %s -> %s)",
		r.config.PackageName, r.config.SourceVersion, r.config.NewVersion,
		r.config.Suite, r.config.NewSuite)

	tempDir, err := os.MkdirTemp("", "reversion-")
	if err != nil {
		return "", &StageError{Stage: StageExtract, Err: err}
	}
	defer os.RemoveAll(tempDir)

	extractDir := filepath.Join(tempDir, "extracted")
	if err := r.extract(ctx, extractDir); err != nil {
		return "", &StageError{Stage: StageExtract, Err: err}
	}

	if err := r.patchMetadata(extractDir); err != nil {
		return "", &StageError{Stage: StagePatch, Err: err}
	}

	newDebPath, err := r.repack(ctx, extractDir)
	if err != nil {
		return "", &StageError{Stage: StageRepack, Err: err}
	}

	r.inspectResult(newDebPath)

	logrus.Infof("Reversion completed: %s", newDebPath)
	return newDebPath, nil
}

func (r *Reversioner) validate() error {
	if _, err := os.Stat(r.config.DebPath); err != nil {
		return models.NewError(models.ErrValidation,
			"source .deb file does not exist: %s", r.config.DebPath)
	}
	if r.config.PackageName == "" {
		return models.NewError(models.ErrValidation, "package name cannot be empty")
	}
	if r.config.SourceVersion == "" {
		return models.NewError(models.ErrValidation, "source version cannot be empty")
	}
	if r.config.NewVersion == "" {
		return models.NewError(models.ErrValidation, "new version cannot be empty")
	}
	return nil
}

// extract unpacks the source package into an isolated directory
func (r *Reversioner) extract(ctx context.Context, extractDir string) error {
	if err := os.MkdirAll(extractDir, 0755); err != nil {
		return models.WrapError(models.ErrIO, r.config.PackageName, err)
	}

	logrus.Debugf("Extracting package: %s", r.config.DebPath)
	if _, err := r.runner.Run(ctx, "dpkg-deb", "-R", r.config.DebPath, extractDir); err != nil {
		return models.WrapError(models.ErrCommand, r.config.PackageName, err)
	}
	return nil
}

// patchMetadata rewrites the control block and, if one exists, the changelog
func (r *Reversioner) patchMetadata(extractDir string) error {
	controlPath := filepath.Join(extractDir, "DEBIAN", "control")
	content, err := os.ReadFile(controlPath)
	if err != nil {
		return models.WrapError(models.ErrIO, r.config.PackageName,
			fmt.Errorf("control file not found: %w", err))
	}

	patched, modified := PatchControl(string(content), r.config)
	if !modified {
		logrus.Warnf("No modifications made to control file of %s", r.config.PackageName)
	}

	if err := os.WriteFile(controlPath, []byte(patched), 0644); err != nil {
		return models.WrapError(models.ErrIO, r.config.PackageName, err)
	}

	// Changelog failures never abort the run
	if err := r.updateChangelog(extractDir); err != nil {
		logrus.Warnf("Could not update changelog for %s: %v", r.config.PackageName, err)
	}

	return nil
}

// repack builds the new archive beside the source, overwriting any previous
// output of the same name
func (r *Reversioner) repack(ctx context.Context, extractDir string) (string, error) {
	newDebName := fmt.Sprintf("%s_%s.deb", r.finalName(), r.config.NewVersion)
	newDebPath := filepath.Join(filepath.Dir(r.config.DebPath), newDebName)

	if err := os.Remove(newDebPath); err != nil && !os.IsNotExist(err) {
		return "", models.WrapError(models.ErrIO, r.config.PackageName, err)
	}

	logrus.Debugf("Building new package: %s", newDebPath)
	if _, err := r.runner.Run(ctx, "dpkg-deb", "--build", extractDir, newDebPath); err != nil {
		return "", models.WrapError(models.ErrCommand, r.config.PackageName, err)
	}

	if _, err := os.Stat(newDebPath); err != nil {
		return "", models.NewError(models.ErrArtifactNotFound,
			"new .deb package was not created: %s", newDebPath)
	}

	return newDebPath, nil
}

// inspectResult reads the repacked control block back and warns when it does
// not carry the expected metadata. Advisory only: a control block whose
// fields never matched the configuration repacks unchanged.
func (r *Reversioner) inspectResult(newDebPath string) {
	pkg, err := deb.Inspect(newDebPath)
	if err != nil {
		logrus.Warnf("Could not inspect repacked package %s: %v", newDebPath, err)
		return
	}

	if pkg.Name != r.finalName() {
		logrus.Warnf("Repacked package name is %q, expected %q", pkg.Name, r.finalName())
	}
	if !strings.Contains(pkg.Version, r.config.NewVersion) {
		logrus.Warnf("Repacked package version is %q, expected it to carry %q",
			pkg.Version, r.config.NewVersion)
	}
}
