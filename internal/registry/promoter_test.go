package registry

import (
	"context"
	"reflect"
	"testing"

	"github.com/MinaProtocol/mina-release-toolkit/internal/command"
	"github.com/MinaProtocol/mina-release-toolkit/internal/models"
)

// dockerRunner records docker invocations and fails a chosen subcommand
type dockerRunner struct {
	calls    [][]string
	failStep string
}

func (r *dockerRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	r.calls = append(r.calls, append([]string{name}, args...))
	if len(args) > 0 && args[0] == r.failStep {
		return "", &command.Error{
			Command: name + " " + args[0],
			Stderr:  "simulated docker failure",
		}
	}
	return "", nil
}

func TestPromoteToDockerHub(t *testing.T) {
	runner := &dockerRunner{}
	p := New(NewConfig("mina-daemon", "1.0.0-bullseye-devnet", "1.0.1-bullseye-devnet", true), runner)

	if err := p.Promote(context.Background()); err != nil {
		t.Fatalf("Promote failed: %v", err)
	}

	source := "gcr.io/o1labs-192920/mina-daemon:1.0.0-bullseye-devnet"
	target := "docker.io/minaprotocol/mina-daemon:1.0.1-bullseye-devnet"

	want := [][]string{
		{"docker", "pull", source},
		{"docker", "tag", source, target},
		{"docker", "push", target},
	}
	if !reflect.DeepEqual(runner.calls, want) {
		t.Errorf("Docker invocations = %v, want %v", runner.calls, want)
	}
}

func TestPromoteWithinGCR(t *testing.T) {
	runner := &dockerRunner{}
	p := New(NewConfig("mina-archive", "1.0.0-focal", "1.0.1-focal", false), runner)

	if err := p.Promote(context.Background()); err != nil {
		t.Fatalf("Promote failed: %v", err)
	}

	target := "gcr.io/o1labs-192920/mina-archive:1.0.1-focal"
	if runner.calls[2][2] != target {
		t.Errorf("Push target = %q, want %q", runner.calls[2][2], target)
	}
}

func TestPromoteValidatesBeforeRunning(t *testing.T) {
	runner := &dockerRunner{}
	p := New(NewConfig("mina-daemon", "1.0.0-bullseye", "", true), runner)

	err := p.Promote(context.Background())
	if err == nil {
		t.Fatal("Expected validation failure for empty target tag")
	}
	if !models.IsKind(err, models.ErrValidation) {
		t.Errorf("Expected Validation kind, got: %v", err)
	}
	if len(runner.calls) != 0 {
		t.Errorf("No docker commands should run when validation fails: %v", runner.calls)
	}
}

func TestPromoteAbortsOnFirstFailure(t *testing.T) {
	for _, tt := range []struct {
		failStep  string
		wantCalls int
	}{
		{"pull", 1},
		{"tag", 2},
		{"push", 3},
	} {
		runner := &dockerRunner{failStep: tt.failStep}
		p := New(NewConfig("mina-daemon", "1.0.0-bullseye", "1.0.1-bullseye", true), runner)

		err := p.Promote(context.Background())
		if err == nil {
			t.Fatalf("Expected failure when %s fails", tt.failStep)
		}
		if !models.IsKind(err, models.ErrCommand) {
			t.Errorf("Expected Command kind, got: %v", err)
		}
		if len(runner.calls) != tt.wantCalls {
			t.Errorf("Failing %s: expected %d calls, got %v", tt.failStep, tt.wantCalls, runner.calls)
		}
	}
}
