package command

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestExecRunnerTrimsStdout(t *testing.T) {
	runner := NewExecRunner()

	out, err := runner.Run(context.Background(), "echo", "hello")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if out != "hello" {
		t.Errorf("Output = %q, want %q", out, "hello")
	}
}

func TestExecRunnerCapturesStderr(t *testing.T) {
	runner := NewExecRunner()

	_, err := runner.Run(context.Background(), "sh", "-c", "echo oops >&2; exit 3")
	if err == nil {
		t.Fatal("Expected failure")
	}

	var cmdErr *Error
	if !errors.As(err, &cmdErr) {
		t.Fatalf("Expected *Error, got %T", err)
	}
	if !strings.Contains(cmdErr.Stderr, "oops") {
		t.Errorf("Stderr = %q, want it to contain oops", cmdErr.Stderr)
	}
	if !strings.Contains(cmdErr.Error(), "oops") {
		t.Errorf("Error string should carry stderr: %q", cmdErr.Error())
	}
}

func TestExecRunnerMissingBinary(t *testing.T) {
	runner := NewExecRunner()

	if _, err := runner.Run(context.Background(), "definitely-not-a-real-binary-xyz"); err == nil {
		t.Fatal("Expected failure for missing binary")
	}
}

func TestExecRunnerHonorsContext(t *testing.T) {
	runner := NewExecRunner()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := runner.Run(ctx, "sleep", "10"); err == nil {
		t.Fatal("Expected failure for canceled context")
	}
}

func TestCheckPrerequisites(t *testing.T) {
	if err := CheckPrerequisites("sh"); err != nil {
		t.Errorf("sh should be available: %v", err)
	}

	err := CheckPrerequisites("sh", "definitely-not-a-real-binary-xyz")
	if err == nil {
		t.Fatal("Expected error for missing program")
	}
	if !strings.Contains(err.Error(), "definitely-not-a-real-binary-xyz") {
		t.Errorf("Error should name the missing program: %v", err)
	}
}

func TestErrorFormatting(t *testing.T) {
	err := &Error{Command: "deb-s3 upload", Err: errors.New("exit status 1")}
	if got := err.Error(); got != "deb-s3 upload: exit status 1" {
		t.Errorf("Error() = %q", got)
	}

	withStderr := &Error{Command: "deb-s3 upload", Stderr: "lockfile exists", Err: errors.New("exit status 1")}
	if !strings.Contains(withStderr.Error(), "lockfile exists") {
		t.Errorf("Error() should carry stderr: %q", withStderr.Error())
	}
}
