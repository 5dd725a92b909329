package version

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/samber/lo"
)

// StaticProvider serves a fixed version list.
type StaticProvider struct {
	versions []string
}

// NewStaticProvider returns a provider that always answers with versions.
func NewStaticProvider(versions ...string) *StaticProvider {
	return &StaticProvider{versions: cleanVersions(versions)}
}

// DefaultVersionIDs implements Provider.
func (s *StaticProvider) DefaultVersionIDs(ctx context.Context) ([]string, error) {
	if len(s.versions) == 0 {
		return nil, errors.New("static version provider has no versions")
	}
	return slices.Clone(s.versions), nil
}

// newStaticFromConfig reads "versions" as a list or a comma separated string.
func newStaticFromConfig(config map[string]any) (Provider, error) {
	versions, err := versionsFromConfig(config["versions"])
	if err != nil {
		return nil, err
	}
	if len(versions) == 0 {
		return nil, errors.New("static version provider requires 'versions' in config")
	}
	return NewStaticProvider(versions...), nil
}

func versionsFromConfig(raw any) ([]string, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case string:
		return strings.Split(v, ","), nil
	case []string:
		return v, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("version entries must be strings, got %T", item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported 'versions' value of type %T", raw)
	}
}

// versionFile is the on-disk shape read by the file provider.
type versionFile struct {
	Versions []string `yaml:"versions"`
}

// FileProvider re-reads a YAML file of versions on every lookup so deploys can rewrite it in place.
type FileProvider struct {
	path string
}

// NewFileProvider reads versions from the YAML file at "path".
func NewFileProvider(config map[string]any) (Provider, error) {
	path, _ := config["path"].(string)
	if path == "" {
		return nil, errors.New("file version provider requires 'path' in config")
	}
	return &FileProvider{path: path}, nil
}

// DefaultVersionIDs implements Provider.
func (f *FileProvider) DefaultVersionIDs(ctx context.Context) ([]string, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("read version file %s: %w", f.path, err)
	}
	var doc versionFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse version file %s: %w", f.path, err)
	}
	versions := cleanVersions(doc.Versions)
	if len(versions) == 0 {
		return nil, fmt.Errorf("version file %s lists no versions", f.path)
	}
	return versions, nil
}

// cleanVersions trims names and drops blanks and repeats, keeping first-seen order.
func cleanVersions(in []string) []string {
	trimmed := lo.Map(in, func(v string, _ int) string { return strings.TrimSpace(v) })
	return lo.Uniq(lo.Compact(trimmed))
}

func init() {
	providers.MustRegister("static", newStaticFromConfig)
	providers.MustRegister("file", NewFileProvider)
}
