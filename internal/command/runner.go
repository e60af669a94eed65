package command

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/sirupsen/logrus"
)

// Runner executes external commands. Every release operation goes through a
// Runner so tests can script subprocess behavior.
type Runner interface {
	// Run executes name with args, waits for completion and returns trimmed
	// stdout. A non-zero exit returns an *Error carrying stderr verbatim.
	Run(ctx context.Context, name string, args ...string) (string, error)
}

// Error describes a failed subprocess invocation
type Error struct {
	Command string
	Stdout  string
	Stderr  string
	Err     error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("%s: %v: %s", e.Command, e.Err, e.Stderr)
	}
	return fmt.Sprintf("%s: %v", e.Command, e.Err)
}

// Unwrap returns the underlying exec error
func (e *Error) Unwrap() error {
	return e.Err
}

// ExecRunner runs commands with os/exec
type ExecRunner struct{}

// NewExecRunner creates a Runner backed by os/exec
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run implements Runner
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	line := commandLine(name, args)
	logrus.Debugf("Executing: %s", line)

	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", &Error{
			Command: line,
			Stdout:  stdout.String(),
			Stderr:  stderr.String(),
			Err:     err,
		}
	}

	return strings.TrimSpace(stdout.String()), nil
}

// CheckPrerequisites verifies that the given programs are installed
func CheckPrerequisites(programs ...string) error {
	for _, program := range programs {
		if _, err := exec.LookPath(program); err != nil {
			return fmt.Errorf("%s not found, please install it to proceed", program)
		}
	}
	return nil
}

func commandLine(name string, args []string) string {
	if len(args) == 0 {
		return name
	}
	return name + " " + strings.Join(args, " ")
}
