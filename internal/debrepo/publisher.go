package debrepo

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/MinaProtocol/mina-release-toolkit/internal/command"
	"github.com/MinaProtocol/mina-release-toolkit/internal/models"
)

// lockStaleness is how old a repository lock marker must be before another
// operation may clear it
const lockStaleness = 5 * time.Minute

const defaultRegion = "us-west-2"

// Config parameterizes a publish into a channel+codename partition of the
// shared repository
type Config struct {
	PackagePath string
	Version     string
	Bucket      string
	Codename    string
	Channel     string

	// SignKey is a GPG key id handed to deb-s3; resolution happens in the
	// operator's keyring
	SignKey string

	// Region of the repository bucket, us-west-2 when empty
	Region string
}

// Publisher uploads Debian packages into the shared deb-s3 repository.
// Existing versions are preserved and an exact duplicate fails the upload
// rather than silently overwriting it.
type Publisher struct {
	config Config
	runner command.Runner
	now    func() time.Time
}

// New creates a Publisher
func New(config Config, runner command.Runner) *Publisher {
	if config.Region == "" {
		config.Region = defaultRegion
	}
	return &Publisher{config: config, runner: runner, now: time.Now}
}

// Publish uploads the package, recovering from stale repository locks, and
// then verifies repository consistency. A verification failure is reported
// even though the upload itself succeeded.
func (p *Publisher) Publish(ctx context.Context) error {
	if err := p.validate(); err != nil {
		return err
	}

	logrus.Infof("Publishing %s to %s/%s/%s (version %s)",
		p.config.PackagePath, p.config.Bucket, p.config.Codename, p.config.Channel, p.config.Version)

	if err := p.upload(ctx); err != nil {
		return err
	}

	logrus.Info("Upload completed, verifying repository")
	if err := p.Verify(ctx); err != nil {
		return models.WrapError(models.ErrCommand, p.config.PackagePath,
			fmt.Errorf("package uploaded but repository verification failed: %w", err))
	}

	return nil
}

func (p *Publisher) validate() error {
	for _, field := range []struct {
		name, value string
	}{
		{"package path", p.config.PackagePath},
		{"version", p.config.Version},
		{"bucket", p.config.Bucket},
		{"codename", p.config.Codename},
		{"channel", p.config.Channel},
	} {
		if field.value == "" {
			return models.NewError(models.ErrValidation, "%s cannot be empty", field.name)
		}
	}

	if _, err := os.Stat(p.config.PackagePath); err != nil {
		return models.NewError(models.ErrValidation,
			"package file not found: %s", p.config.PackagePath)
	}

	return nil
}

// upload runs deb-s3 upload, which holds the repository lock for its
// duration. On a lock conflict the stale marker is cleared but the original
// failure is still reported; the caller decides whether to retry.
func (p *Publisher) upload(ctx context.Context) error {
	args := []string{
		"upload",
		"--s3-region=" + p.config.Region,
		"--bucket", p.config.Bucket,
		"--codename", p.config.Codename,
		"--component", p.config.Channel,
		"--suite", p.config.Channel,
		"--preserve-versions",
		"--lock",
		"--fail-if-exists",
		"--cache-control=max-age=120",
	}
	if p.config.SignKey != "" {
		args = append(args, "--sign", p.config.SignKey)
	}
	args = append(args, p.config.PackagePath)

	_, err := p.runner.Run(ctx, "deb-s3", args...)
	if err == nil {
		return nil
	}

	uploadErr := models.WrapError(models.ErrCommand, p.config.PackagePath,
		fmt.Errorf("deb-s3 upload failed: %w", err))

	cmdErr, ok := err.(*command.Error)
	if !ok || !isLockConflict(cmdErr) {
		return uploadErr
	}

	logrus.Warn("Lock conflict detected, inspecting repository lockfile")
	return p.recoverLock(ctx, uploadErr)
}

func isLockConflict(err *command.Error) bool {
	return strings.Contains(err.Stderr, "lockfile") || strings.Contains(err.Stderr, "locked")
}

// lockfilePath is the marker location inside the repository partition
func (p *Publisher) lockfilePath() string {
	return fmt.Sprintf("s3://%s/dists/%s/%s/binary-/lockfile",
		p.config.Bucket, p.config.Codename, p.config.Channel)
}

// recoverLock inspects the lock marker's age. A marker younger than the
// staleness threshold belongs to a live publisher and is left alone; an
// older or unreadable one is deleted. Either way no re-upload happens here.
func (p *Publisher) recoverLock(ctx context.Context, uploadErr error) error {
	lockPath := p.lockfilePath()

	out, err := p.runner.Run(ctx, "aws", "s3", "ls", lockPath)
	if err != nil || strings.TrimSpace(out) == "" {
		logrus.Info("No lockfile found")
		return uploadErr
	}

	age, err := p.lockfileAge(out)
	if err != nil {
		logrus.Warnf("Could not parse lockfile timestamp (%v), deleting lockfile", err)
		p.deleteLockfile(ctx, lockPath)
		return uploadErr
	}

	if age < lockStaleness {
		logrus.Warnf("Lockfile is %s old, refusing to delete", age.Round(time.Second))
		return models.NewError(models.ErrValidation,
			"repository lock is held by a publish started %s ago; try again later", age.Round(time.Second))
	}

	logrus.Infof("Lockfile is %s old, deleting stale lock", age.Round(time.Second))
	p.deleteLockfile(ctx, lockPath)
	return uploadErr
}

// lockfileAge parses the timestamp out of `aws s3 ls` output, which starts
// with "YYYY-MM-DD HH:MM:SS"
func (p *Publisher) lockfileAge(lsOutput string) (time.Duration, error) {
	fields := strings.Fields(lsOutput)
	if len(fields) < 2 {
		return 0, fmt.Errorf("unexpected ls output: %q", lsOutput)
	}

	stamp, err := time.Parse("2006-01-02 15:04:05", fields[0]+" "+fields[1])
	if err != nil {
		return 0, err
	}

	return p.now().UTC().Sub(stamp), nil
}

func (p *Publisher) deleteLockfile(ctx context.Context, lockPath string) {
	if _, err := p.runner.Run(ctx, "aws", "s3", "rm", lockPath); err != nil {
		logrus.Warnf("Failed to delete lockfile: %v", err)
	} else {
		logrus.Info("Lockfile deleted")
	}
}

// Verify runs the read-only repository consistency check
func (p *Publisher) Verify(ctx context.Context) error {
	_, err := p.runner.Run(ctx, "deb-s3",
		"verify",
		"--bucket", p.config.Bucket,
		"--s3-region="+p.config.Region,
		"--codename", p.config.Codename,
		"--component", p.config.Channel,
		"--suite", p.config.Channel,
	)
	if err != nil {
		return fmt.Errorf("deb-s3 verify failed: %w", err)
	}
	return nil
}

// FixManifests repairs the repository manifests for the configured partition
func (p *Publisher) FixManifests(ctx context.Context) error {
	_, err := p.runner.Run(ctx, "deb-s3",
		"verify",
		"--fix-manifests",
		"--bucket="+p.config.Bucket,
		"--s3-region="+p.config.Region,
		"--codename="+p.config.Codename,
		"--component="+p.config.Channel,
	)
	if err != nil {
		return models.WrapError(models.ErrCommand, p.config.Codename,
			fmt.Errorf("deb-s3 fix-manifests failed: %w", err))
	}
	return nil
}
