package registry

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/MinaProtocol/mina-release-toolkit/internal/command"
	"github.com/MinaProtocol/mina-release-toolkit/internal/models"
)

// The two registries images are promoted between
const (
	GCRRegistry       = "gcr.io/o1labs-192920"
	DockerHubRegistry = "docker.io/minaprotocol"
)

// Config parameterizes a cross-registry image promotion
type Config struct {
	Name           string
	SourceTag      string
	TargetTag      string
	SourceRegistry string
	TargetRegistry string
}

// NewConfig resolves registry defaults: images always originate in GCR and
// land either back in GCR or, when toDockerHub is set, in Docker Hub.
func NewConfig(name, sourceTag, targetTag string, toDockerHub bool) Config {
	target := GCRRegistry
	if toDockerHub {
		target = DockerHubRegistry
	}
	return Config{
		Name:           name,
		SourceTag:      sourceTag,
		TargetTag:      targetTag,
		SourceRegistry: GCRRegistry,
		TargetRegistry: target,
	}
}

// Promoter copies a container image between registries by tag. The target
// tag points at content bit-identical to the source tag.
type Promoter struct {
	config Config
	runner command.Runner
}

// New creates a Promoter
func New(config Config, runner command.Runner) *Promoter {
	return &Promoter{config: config, runner: runner}
}

// Promote pulls the source reference, tags it under the target reference and
// pushes it. Steps run strictly in order; the first failure aborts the rest
// and carries that step's output.
func (p *Promoter) Promote(ctx context.Context) error {
	if err := p.validate(); err != nil {
		return err
	}

	source := fmt.Sprintf("%s/%s:%s", p.config.SourceRegistry, p.config.Name, p.config.SourceTag)
	target := fmt.Sprintf("%s/%s:%s", p.config.TargetRegistry, p.config.Name, p.config.TargetTag)

	logrus.Infof("Promoting image %s -> %s", source, target)

	steps := []struct {
		desc string
		args []string
	}{
		{"pull", []string{"pull", source}},
		{"tag", []string{"tag", source, target}},
		{"push", []string{"push", target}},
	}

	for _, step := range steps {
		logrus.Debugf("docker %s", step.desc)
		if _, err := p.runner.Run(ctx, "docker", step.args...); err != nil {
			return models.WrapError(models.ErrCommand, p.config.Name,
				fmt.Errorf("docker %s failed: %w", step.desc, err))
		}
	}

	logrus.Infof("Image promotion successful: %s", target)
	return nil
}

func (p *Promoter) validate() error {
	for _, field := range []struct {
		name, value string
	}{
		{"image name", p.config.Name},
		{"source tag", p.config.SourceTag},
		{"target tag", p.config.TargetTag},
		{"source registry", p.config.SourceRegistry},
		{"target registry", p.config.TargetRegistry},
	} {
		if field.value == "" {
			return models.NewError(models.ErrValidation, "%s cannot be empty", field.name)
		}
	}
	return nil
}
