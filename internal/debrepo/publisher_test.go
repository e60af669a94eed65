package debrepo

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MinaProtocol/mina-release-toolkit/internal/command"
	"github.com/MinaProtocol/mina-release-toolkit/internal/models"
)

// repoRunner scripts deb-s3 and aws responses keyed by the leading argument
type repoRunner struct {
	calls       [][]string
	uploadErr   error
	lsOutput    string
	lsErr       error
	verifyErr   error
	lockDeleted bool
}

func (r *repoRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	r.calls = append(r.calls, append([]string{name}, args...))

	switch {
	case name == "deb-s3" && args[0] == "upload":
		return "", r.uploadErr
	case name == "deb-s3" && args[0] == "verify":
		return "", r.verifyErr
	case name == "aws" && args[1] == "ls":
		return r.lsOutput, r.lsErr
	case name == "aws" && args[1] == "rm":
		r.lockDeleted = true
		return "", nil
	}
	return "", nil
}

func testConfig(t *testing.T) Config {
	t.Helper()
	pkg := filepath.Join(t.TempDir(), "mina-archive_1.0.1.deb")
	if err := os.WriteFile(pkg, []byte("deb"), 0644); err != nil {
		t.Fatalf("Failed to write package fixture: %v", err)
	}
	return Config{
		PackagePath: pkg,
		Version:     "1.0.1",
		Bucket:      "packages.o1test.net",
		Codename:    "bullseye",
		Channel:     "stable",
	}
}

func lockError() *command.Error {
	return &command.Error{
		Command: "deb-s3 upload",
		Stderr:  "Repository is locked by another user: deb-s3 lockfile exists",
		Err:     context.DeadlineExceeded,
	}
}

// awsTimestamp renders a lockfile ls line for a marker created age ago
func awsTimestamp(age time.Duration, now time.Time) string {
	stamp := now.UTC().Add(-age)
	return stamp.Format("2006-01-02 15:04:05") + "         12 lockfile"
}

func TestPublishSuccess(t *testing.T) {
	runner := &repoRunner{}
	p := New(testConfig(t), runner)

	if err := p.Publish(context.Background()); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	if len(runner.calls) != 2 {
		t.Fatalf("Expected upload + verify, got %v", runner.calls)
	}

	upload := strings.Join(runner.calls[0], " ")
	for _, flag := range []string{
		"--preserve-versions", "--lock", "--fail-if-exists",
		"--s3-region=us-west-2", "--codename bullseye",
		"--component stable", "--suite stable",
		"--cache-control=max-age=120",
	} {
		if !strings.Contains(upload, flag) {
			t.Errorf("Upload missing %q: %s", flag, upload)
		}
	}
	if strings.Contains(upload, "--sign") {
		t.Errorf("Upload should be unsigned without a key: %s", upload)
	}

	if runner.calls[1][1] != "verify" {
		t.Errorf("Second call should verify, got %v", runner.calls[1])
	}
}

func TestPublishSigned(t *testing.T) {
	cfg := testConfig(t)
	cfg.SignKey = "ABCDEF12"
	runner := &repoRunner{}
	p := New(cfg, runner)

	if err := p.Publish(context.Background()); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	upload := strings.Join(runner.calls[0], " ")
	if !strings.Contains(upload, "--sign ABCDEF12") {
		t.Errorf("Upload missing sign key: %s", upload)
	}
}

func TestPublishValidation(t *testing.T) {
	runner := &repoRunner{}

	cfg := testConfig(t)
	cfg.Channel = ""
	p := New(cfg, runner)

	err := p.Publish(context.Background())
	if err == nil {
		t.Fatal("Expected validation failure for empty channel")
	}
	if !models.IsKind(err, models.ErrValidation) {
		t.Errorf("Expected Validation kind, got: %v", err)
	}
	if len(runner.calls) != 0 {
		t.Errorf("Nothing should run when validation fails: %v", runner.calls)
	}

	cfg = testConfig(t)
	cfg.PackagePath = "/nonexistent/package.deb"
	p = New(cfg, runner)
	if err := p.Publish(context.Background()); err == nil {
		t.Error("Expected validation failure for missing package file")
	}
}

func TestPublishVerificationFailureIsReported(t *testing.T) {
	runner := &repoRunner{
		verifyErr: &command.Error{Command: "deb-s3 verify", Stderr: "packages missing from manifest"},
	}
	p := New(testConfig(t), runner)

	err := p.Publish(context.Background())
	if err == nil {
		t.Fatal("Expected error when verification fails after upload")
	}
	if !strings.Contains(err.Error(), "uploaded but repository verification failed") {
		t.Errorf("Error should state the upload succeeded: %v", err)
	}
}

func TestPublishStaleLockIsCleared(t *testing.T) {
	now := time.Now()
	runner := &repoRunner{
		uploadErr: lockError(),
		lsOutput:  awsTimestamp(10*time.Minute, now),
	}
	p := New(testConfig(t), runner)
	p.now = func() time.Time { return now }

	err := p.Publish(context.Background())
	if err == nil {
		t.Fatal("The original upload failure must still be reported")
	}
	if !models.IsKind(err, models.ErrCommand) {
		t.Errorf("Expected the upload's Command error, got: %v", err)
	}
	if !runner.lockDeleted {
		t.Error("Stale lockfile should have been deleted")
	}

	// The marker lives inside the codename/channel partition
	ls := strings.Join(runner.calls[1], " ")
	if !strings.Contains(ls, "s3://packages.o1test.net/dists/bullseye/stable/binary-/lockfile") {
		t.Errorf("Unexpected lockfile path: %s", ls)
	}
}

func TestPublishYoungLockIsLeftAlone(t *testing.T) {
	now := time.Now()
	runner := &repoRunner{
		uploadErr: lockError(),
		lsOutput:  awsTimestamp(2*time.Minute, now),
	}
	p := New(testConfig(t), runner)
	p.now = func() time.Time { return now }

	err := p.Publish(context.Background())
	if err == nil {
		t.Fatal("Expected concurrency error")
	}
	if !models.IsKind(err, models.ErrValidation) {
		t.Errorf("A held lock should surface as a Validation error, got: %v", err)
	}
	if runner.lockDeleted {
		t.Error("A live lockfile must not be deleted")
	}
}

func TestPublishLockExactlyAtThresholdIsStale(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 5, 0, 0, time.UTC)
	runner := &repoRunner{
		uploadErr: lockError(),
		lsOutput:  "2024-06-01 12:00:00         12 lockfile",
	}
	p := New(testConfig(t), runner)
	p.now = func() time.Time { return now }

	err := p.Publish(context.Background())
	if err == nil {
		t.Fatal("The original upload failure must still be reported")
	}
	if models.IsKind(err, models.ErrValidation) {
		t.Errorf("A lock at exactly the staleness threshold is stale, got: %v", err)
	}
	if !runner.lockDeleted {
		t.Error("A lock at exactly the staleness threshold should be deleted")
	}
}

func TestPublishUnparsableLockTimestamp(t *testing.T) {
	runner := &repoRunner{
		uploadErr: lockError(),
		lsOutput:  "garbage output",
	}
	p := New(testConfig(t), runner)

	err := p.Publish(context.Background())
	if err == nil {
		t.Fatal("The original upload failure must still be reported")
	}
	if !models.IsKind(err, models.ErrCommand) {
		t.Errorf("Expected the upload's Command error, got: %v", err)
	}
	if !runner.lockDeleted {
		t.Error("An unreadable lockfile should be deleted")
	}
}

func TestPublishMissingLockfile(t *testing.T) {
	runner := &repoRunner{
		uploadErr: lockError(),
		lsOutput:  "",
	}
	p := New(testConfig(t), runner)

	err := p.Publish(context.Background())
	if err == nil {
		t.Fatal("Expected the upload failure to propagate")
	}
	if runner.lockDeleted {
		t.Error("No lockfile to delete")
	}
}

func TestPublishNonLockFailureSkipsRecovery(t *testing.T) {
	runner := &repoRunner{
		uploadErr: &command.Error{Command: "deb-s3 upload", Stderr: "version already exists in repository"},
	}
	p := New(testConfig(t), runner)

	err := p.Publish(context.Background())
	if err == nil {
		t.Fatal("Expected upload failure")
	}

	// Only the upload itself should have run
	if len(runner.calls) != 1 {
		t.Errorf("No lock inspection for non-lock failures: %v", runner.calls)
	}
}

func TestFixManifests(t *testing.T) {
	runner := &repoRunner{}
	p := New(Config{
		Bucket:   "packages.o1test.net",
		Codename: "focal",
		Channel:  "stable",
	}, runner)

	if err := p.FixManifests(context.Background()); err != nil {
		t.Fatalf("FixManifests failed: %v", err)
	}

	call := strings.Join(runner.calls[0], " ")
	if !strings.Contains(call, "--fix-manifests") {
		t.Errorf("Missing --fix-manifests: %s", call)
	}
	if !strings.Contains(call, "--codename=focal") {
		t.Errorf("Missing codename: %s", call)
	}
}
