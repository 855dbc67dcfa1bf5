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

package docker

import (
	"fmt"
	"path"
	"strings"
)

// Container paths owned by the lifecycle. Binding over them can break a build.
var sensitiveContainerPaths = []string{"/cnb", "/layers", "/workspace"}

// Binding is a bind mount of a host path, or a named volume, into a container.
type Binding struct {
	Source      string
	Destination string
	Options     string
}

// NewBinding creates a Binding from its parts. Options are joined with commas, eg. `ro,z`.
func NewBinding(source, destination string, options ...string) (Binding, error) {
	b := Binding{
		Source:      source,
		Destination: destination,
		Options:     strings.Join(options, ","),
	}
	if err := b.validate(); err != nil {
		return Binding{}, err
	}
	return b, nil
}

// ParseBinding parses the docker volume syntax `source:destination[:options]`.
// Windows sources such as `C:\data:/data` are supported.
func ParseBinding(s string) (Binding, error) {
	drive := ""
	rest := s
	if isWindowsDrive(s) {
		drive, rest = s[:2], s[2:]
	}

	parts := strings.Split(rest, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return Binding{}, fmt.Errorf("binding %q must be in the form source:destination[:options]", s)
	}

	b := Binding{
		Source:      drive + parts[0],
		Destination: parts[1],
	}
	if len(parts) == 3 {
		b.Options = parts[2]
	}
	if err := b.validate(); err != nil {
		return Binding{}, err
	}
	return b, nil
}

func (b Binding) validate() error {
	if b.Source == "" {
		return fmt.Errorf("binding source must not be empty")
	}
	if b.Destination == "" {
		return fmt.Errorf("binding destination must not be empty")
	}
	if !path.IsAbs(b.Destination) {
		return fmt.Errorf("binding destination %q must be an absolute path", b.Destination)
	}
	return nil
}

// String renders the binding in the docker volume syntax.
func (b Binding) String() string {
	if b.Options == "" {
		return b.Source + ":" + b.Destination
	}
	return b.Source + ":" + b.Destination + ":" + b.Options
}

// UsesSensitiveContainerPath returns true when the destination shadows a lifecycle directory.
func (b Binding) UsesSensitiveContainerPath() bool {
	dst := path.Clean(b.Destination)
	for _, p := range sensitiveContainerPaths {
		if dst == p || strings.HasPrefix(dst, p+"/") {
			return true
		}
	}
	return false
}

func isWindowsDrive(s string) bool {
	if len(s) < 3 || s[1] != ':' {
		return false
	}
	c := s[0]
	return ((c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')) && (s[2] == '\\' || s[2] == '/')
}
