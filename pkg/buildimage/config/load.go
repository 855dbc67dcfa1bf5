/*
Copyright 2026 The Skaffold Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"

	"github.com/GoogleContainerTools/buildimage/pkg/buildimage/constants"
	"github.com/GoogleContainerTools/buildimage/pkg/buildimage/output/log"
)

// For testing
var (
	GlobalConfigFile = globalConfigFile
)

func globalConfigFile() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", fmt.Errorf("retrieving home directory: %w", err)
	}
	return filepath.Join(home, constants.DefaultConfigDir, constants.DefaultConfigFile), nil
}

// Load reads the global defaults, then the project configuration on top of them.
// An empty projectFile means `buildimage.yaml` in the current directory, if present.
func Load(ctx context.Context, projectFile string) (*BuildConfig, error) {
	globalFile, err := GlobalConfigFile()
	if err != nil {
		return nil, err
	}
	global, err := readOptional(ctx, globalFile)
	if err != nil {
		return nil, err
	}

	var project *BuildConfig
	if projectFile == "" {
		project, err = readOptional(ctx, constants.DefaultProjectFile)
	} else {
		project, err = ReadFile(projectFile)
	}
	if err != nil {
		return nil, err
	}

	return Merge(global, project)
}

// Merge returns the defaults overridden by the values set in override.
func Merge(defaults, override *BuildConfig) (*BuildConfig, error) {
	merged := &BuildConfig{}
	for _, cfg := range []*BuildConfig{defaults, override} {
		if cfg == nil {
			continue
		}
		if err := mergo.Merge(merged, cfg, mergo.WithOverride, mergo.WithoutDereference); err != nil {
			return nil, fmt.Errorf("merging configurations: %w", err)
		}
	}
	return merged, nil
}

func readOptional(ctx context.Context, file string) (*BuildConfig, error) {
	cfg, err := ReadFile(file)
	if errors.Is(err, fs.ErrNotExist) {
		log.Entry(ctx).Debugf("No configuration found at %q", file)
		return nil, nil
	}
	if err == nil {
		log.Entry(ctx).Infof("Loaded configuration from %q", file)
	}
	return cfg, err
}

// ReadFile strictly decodes a configuration file. Relative paths are resolved against the file's directory.
func ReadFile(file string) (*BuildConfig, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, fmt.Errorf("reading configuration: %w", err)
	}
	defer f.Close()

	cfg, err := decode(f)
	if err != nil {
		return nil, fmt.Errorf("parsing configuration %q: %w", file, err)
	}

	dir, err := filepath.Abs(filepath.Dir(file))
	if err != nil {
		return nil, err
	}
	if err := cfg.resolvePaths(dir); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(r io.Reader) (*BuildConfig, error) {
	cfg := &BuildConfig{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return nil, err
	}
	return cfg, nil
}

func (c *BuildConfig) resolvePaths(dir string) error {
	for _, p := range []*string{&c.Path, &c.EnvFile, &c.Docker.CertPath} {
		if *p == "" {
			continue
		}
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("expanding %q: %w", *p, err)
		}
		if !filepath.IsAbs(expanded) {
			expanded = filepath.Join(dir, expanded)
		}
		*p = expanded
	}
	return nil
}
