// Package yaml implements the application config.Loader port by reading
// and normalizing a project from a YAML file (§6).
package yaml

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/captjt/devproc/internal/domain/apperr"
	"github.com/captjt/devproc/internal/domain/config"
	"github.com/captjt/devproc/internal/domain/duration"
	"github.com/captjt/devproc/internal/domain/graph"
	"gopkg.in/yaml.v3"
)

// rawProbe is the union-typed healthcheck field: either a bare command
// string or the full {cmd, interval, timeout, retries} map (§4.B, §6).
type rawProbe struct {
	Cmd      string `yaml:"cmd"`
	Interval string `yaml:"interval"`
	Timeout  string `yaml:"timeout"`
	Retries  int    `yaml:"retries"`
}

func (p *rawProbe) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		return value.Decode(&p.Cmd)
	}
	type plain rawProbe
	return value.Decode((*plain)(p))
}

// rawDependsOn is the union-typed dependsOn field: either a bare list of
// names (meaning "wait started") or a map name -> condition (§4.B, §6).
type rawDependsOn struct {
	list map[string]string
}

func (d *rawDependsOn) UnmarshalYAML(value *yaml.Node) error {
	d.list = make(map[string]string)
	if value.Kind == yaml.SequenceNode {
		var names []string
		if err := value.Decode(&names); err != nil {
			return err
		}
		for _, edge := range config.ExpandDependsOnShorthand(names) {
			d.list[edge.Name] = string(edge.Condition)
		}
		return nil
	}
	return value.Decode(&d.list)
}

type rawService struct {
	Cmd        string            `yaml:"cmd"`
	Cwd        string            `yaml:"cwd"`
	Env        map[string]string `yaml:"env"`
	DependsOn  rawDependsOn      `yaml:"depends_on"`
	Healthcheck *rawProbe        `yaml:"healthcheck"`
	Restart    string            `yaml:"restart"`
	Color      string            `yaml:"color"`
	StopSignal string            `yaml:"stop_signal"`
}

// orderedServices decodes the services mapping by walking the raw YAML
// node's Content pairs directly instead of through a Go map, so the
// declaration order services appear in the file survives (§3, §4.C) —
// map iteration order in Go is unspecified and would otherwise have to be
// substituted with something else, such as alphabetical sort.
type orderedServices struct {
	names  []string
	byName map[string]rawService
}

func (o *orderedServices) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("services: expected a mapping")
	}
	o.names = make([]string, 0, len(value.Content)/2)
	o.byName = make(map[string]rawService, len(value.Content)/2)
	for i := 0; i+1 < len(value.Content); i += 2 {
		var name string
		if err := value.Content[i].Decode(&name); err != nil {
			return err
		}
		var svc rawService
		if err := value.Content[i+1].Decode(&svc); err != nil {
			return err
		}
		o.names = append(o.names, name)
		o.byName[name] = svc
	}
	return nil
}

type rawProject struct {
	Name     string              `yaml:"name"`
	Env      map[string]string   `yaml:"env"`
	Dotenv   string              `yaml:"dotenv"`
	Groups   map[string][]string `yaml:"groups"`
	Services orderedServices     `yaml:"services"`
}

// Loader implements the application config.Loader port.
type Loader struct{}

// New builds a YAML Loader.
func New() *Loader {
	return &Loader{}
}

// Load reads, normalizes, and validates the project described at path.
func (l *Loader) Load(path string) (*config.Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", apperr.ErrInvalidConfig, path, err)
	}

	var raw rawProject
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", apperr.ErrInvalidConfig, path, err)
	}

	dotenv, err := loadDotenv(filepath.Dir(path), raw.Dotenv)
	if err != nil {
		return nil, err
	}

	project, err := normalize(raw, dotenv, path)
	if err != nil {
		return nil, err
	}

	if err := project.Validate(); err != nil {
		return nil, err
	}
	// Cycle detection lives in the dependency resolver rather than
	// Project.Validate so it can report the offending path (§4.C); config
	// loading must still reject it up front (§7, P2).
	if _, err := graph.Resolve(project); err != nil {
		return nil, err
	}
	return project, nil
}

func normalize(raw rawProject, dotenv map[string]string, path string) (*config.Project, error) {
	if raw.Name == "" {
		return nil, fmt.Errorf("%w: project has no name", apperr.ErrInvalidConfig)
	}
	if len(raw.Services.names) == 0 {
		return nil, fmt.Errorf("%w: project has no services", apperr.ErrInvalidConfig)
	}

	names := raw.Services.names

	groupOf := make(map[string]string, len(names))
	groupNames := make([]string, 0, len(raw.Groups))
	for g := range raw.Groups {
		groupNames = append(groupNames, g)
	}
	sort.Strings(groupNames)
	for _, g := range groupNames {
		for _, member := range raw.Groups[g] {
			groupOf[member] = g
		}
	}

	baseDir := filepath.Dir(path)
	services := make([]config.Service, 0, len(names))
	for _, name := range names {
		svc, err := normalizeService(name, raw.Services.byName[name], raw.Env, dotenv, baseDir)
		if err != nil {
			return nil, err
		}
		svc.Group = groupOf[name]
		services = append(services, svc)
	}

	return &config.Project{
		Name:       raw.Name,
		Env:        config.MergeEnv(dotenv, raw.Env, nil),
		Services:   services,
		Groups:     raw.Groups,
		ConfigPath: path,
	}, nil
}

func normalizeService(name string, raw rawService, globalEnv, dotenv map[string]string, baseDir string) (config.Service, error) {
	if raw.Cmd == "" {
		return config.Service{}, fmt.Errorf("%w: service %q has no cmd", apperr.ErrInvalidConfig, name)
	}

	cwd := raw.Cwd
	if cwd != "" && !filepath.IsAbs(cwd) {
		cwd = filepath.Join(baseDir, cwd)
		if abs, err := filepath.Abs(cwd); err == nil {
			cwd = abs
		}
	}

	restart := config.RestartNo
	if raw.Restart != "" {
		restart = config.RestartPolicy(raw.Restart)
	}
	switch restart {
	case config.RestartNo, config.RestartOnFailure, config.RestartAlways:
	default:
		return config.Service{}, fmt.Errorf("%w: service %q has invalid restart policy %q", apperr.ErrInvalidConfig, name, raw.Restart)
	}

	stopSignal := raw.StopSignal
	if stopSignal == "" {
		stopSignal = config.DefaultStopSignal
	}

	dependsOn := make([]config.DependencyEdge, 0, len(raw.DependsOn.list))
	depNames := make([]string, 0, len(raw.DependsOn.list))
	for dep := range raw.DependsOn.list {
		depNames = append(depNames, dep)
	}
	sort.Strings(depNames)
	for _, dep := range depNames {
		cond := config.WaitCondition(raw.DependsOn.list[dep])
		if cond != config.WaitStarted && cond != config.WaitHealthy {
			return config.Service{}, fmt.Errorf("%w: service %q depends_on %q has invalid condition %q", apperr.ErrInvalidConfig, name, dep, cond)
		}
		dependsOn = append(dependsOn, config.DependencyEdge{Name: dep, Condition: cond})
	}

	var probe *config.ProbeSpec
	if raw.Healthcheck != nil {
		p, err := normalizeProbe(name, *raw.Healthcheck)
		if err != nil {
			return config.Service{}, err
		}
		probe = p
	}

	return config.Service{
		Name:        name,
		Cmd:         raw.Cmd,
		Cwd:         cwd,
		Env:         config.MergeEnv(dotenv, globalEnv, raw.Env),
		DependsOn:   dependsOn,
		Healthcheck: probe,
		Restart:     restart,
		StopSignal:  stopSignal,
		Color:       raw.Color,
	}, nil
}

func normalizeProbe(service string, raw rawProbe) (*config.ProbeSpec, error) {
	if raw.Interval == "" && raw.Timeout == "" && raw.Retries == 0 {
		return config.ExpandProbeShorthand(raw.Cmd), nil
	}

	spec := config.ProbeSpec{Cmd: raw.Cmd, Retries: raw.Retries}
	if raw.Interval != "" {
		ms, err := duration.ParseMillis(raw.Interval)
		if err != nil {
			return nil, fmt.Errorf("%w: service %q healthcheck interval: %v", apperr.ErrInvalidConfig, service, err)
		}
		spec.IntervalMs = ms
	}
	if raw.Timeout != "" {
		ms, err := duration.ParseMillis(raw.Timeout)
		if err != nil {
			return nil, fmt.Errorf("%w: service %q healthcheck timeout: %v", apperr.ErrInvalidConfig, service, err)
		}
		spec.TimeoutMs = ms
	}
	applied := config.ApplyProbeDefaults(spec)
	return &applied, nil
}

func loadDotenv(baseDir, path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading dotenv %s: %v", apperr.ErrInvalidConfig, path, err)
	}
	return parseDotenv(data), nil
}
