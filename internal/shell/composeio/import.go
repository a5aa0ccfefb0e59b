// Package composeio imports docker-compose projects as Maestro strategies.
package composeio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/compose-spec/compose-go/v2/loader"
	"github.com/compose-spec/compose-go/v2/types"
	"gopkg.in/yaml.v3"

	"github.com/maestro-sh/maestro/internal/core/domain"
)

var (
	// ErrEmptyInput is returned for an empty compose document.
	ErrEmptyInput = errors.New("compose document is empty")

	// ErrNoServices is returned when the compose document defines no services.
	ErrNoServices = errors.New("compose document defines no services")
)

// CriticalLabel marks a compose service whose failure must roll back the
// whole deployment.
const CriticalLabel = "maestro.critical"

// ImportFile reads a compose file and converts it into a strategy named
// after the file's directory.
func ImportFile(ctx context.Context, path string) (*domain.Strategy, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read compose file: %w", err)
	}

	name := filepath.Base(filepath.Dir(path))
	abs, err := filepath.Abs(path)
	if err == nil {
		name = filepath.Base(filepath.Dir(abs))
	}
	return Import(ctx, name, content)
}

// Import converts a compose document into a strategy. Services become
// container specs (sorted by name for a deterministic declaration order),
// depends_on entries become dependency edges, and deploy resource limits
// become per-container policy overrides.
func Import(ctx context.Context, name string, content []byte) (*domain.Strategy, error) {
	if strings.TrimSpace(string(content)) == "" {
		return nil, ErrEmptyInput
	}

	project, err := loadProject(ctx, content)
	if err != nil {
		return nil, err
	}
	if len(project.Services) == 0 {
		return nil, ErrNoServices
	}

	serviceNames := make([]string, 0, len(project.Services))
	for svcName := range project.Services {
		serviceNames = append(serviceNames, svcName)
	}
	sort.Strings(serviceNames)

	strategy := domain.NewStrategy(name)

	for _, svcName := range serviceNames {
		svc := project.Services[svcName]

		spec := domain.ContainerSpec{
			Name:     svcName,
			Image:    svc.Image,
			Command:  svc.Command,
			Env:      make(map[string]string),
			Critical: svc.Labels[CriticalLabel] == "true",
		}
		if spec.Image == "" {
			return nil, fmt.Errorf("service %q has no image", svcName)
		}

		for k, v := range svc.Environment {
			if v != nil {
				spec.Env[k] = *v
			}
		}

		for _, p := range svc.Ports {
			published := 0
			if p.Published != "" {
				if pub, err := strconv.Atoi(p.Published); err == nil {
					published = pub
				}
			}
			spec.Ports = append(spec.Ports, domain.PortMapping{
				ContainerPort: int(p.Target),
				HostPort:      published,
				Protocol:      p.Protocol,
			})
		}

		for _, v := range svc.Volumes {
			spec.Volumes = append(spec.Volumes, domain.VolumeMount{
				Source:   v.Source,
				Target:   v.Target,
				ReadOnly: v.ReadOnly,
			})
		}

		if err := strategy.AddContainer(spec); err != nil {
			return nil, err
		}

		if svc.Deploy != nil && svc.Deploy.Resources.Limits != nil {
			limits := svc.Deploy.Resources.Limits
			// compose-go's NanoCPUs already holds the core count.
			if limits.NanoCPUs > 0 {
				strategy.Policy.SetContainerOverride(svcName, "cpus",
					strconv.FormatFloat(float64(limits.NanoCPUs), 'f', -1, 64))
			}
			if limits.MemoryBytes > 0 {
				strategy.Policy.SetContainerOverride(svcName, "memory",
					strconv.FormatInt(int64(limits.MemoryBytes), 10))
			}
		}

		if strategy.RestartPolicy == "" && svc.Restart != "" {
			strategy.RestartPolicy = svc.Restart
		}
	}

	for _, svcName := range serviceNames {
		svc := project.Services[svcName]
		depNames := make([]string, 0, len(svc.DependsOn))
		for depName := range svc.DependsOn {
			depNames = append(depNames, depName)
		}
		sort.Strings(depNames)

		for _, depName := range depNames {
			dep := svc.DependsOn[depName]
			edge := domain.Dependency{
				On:        depName,
				Condition: domain.ConditionStarted,
				Required:  dep.Required,
			}
			if dep.Condition == types.ServiceConditionHealthy {
				edge.Condition = domain.ConditionHealthy
			}
			if err := strategy.AddDependency(svcName, edge); err != nil {
				return nil, err
			}
		}
	}

	if err := strategy.Validate(); err != nil {
		return nil, err
	}
	return strategy, nil
}

// loadProject parses the compose document with compose-go.
func loadProject(ctx context.Context, content []byte) (*types.Project, error) {
	var dict map[string]interface{}
	if err := yaml.Unmarshal(content, &dict); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}
	if dict == nil {
		return nil, ErrEmptyInput
	}

	project, err := loader.LoadWithContext(ctx, types.ConfigDetails{
		ConfigFiles: []types.ConfigFile{
			{
				Content: content,
				Config:  dict,
			},
		},
	}, func(opts *loader.Options) {
		opts.SetProjectName("maestro-import", false)
		opts.SkipValidation = false
		opts.SkipInterpolation = false
		opts.SkipNormalization = true
		opts.SkipExtends = true
	})
	if err != nil {
		return nil, fmt.Errorf("load compose project: %w", err)
	}
	return project, nil
}
