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

package buildpacks

import (
	"fmt"
	"path"
	"sort"

	"github.com/GoogleContainerTools/buildimage/pkg/buildimage/constants"
	"github.com/GoogleContainerTools/buildimage/pkg/buildimage/docker"
)

// Lifecycle binaries.
const (
	creatorPhase  = "creator"
	detectorPhase = "detector"
	analyzerPhase = "analyzer"
	restorerPhase = "restorer"
	builderPhase  = "builder"
	exporterPhase = "exporter"

	// Names used by platform APIs below 0.3.
	legacyDetectPhase  = "detect"
	legacyAnalyzePhase = "analyze"
	legacyRestorePhase = "restore"
	legacyBuildPhase   = "build"
	legacyExportPhase  = "export"
)

var knownPhases = map[string]bool{
	creatorPhase: true, detectorPhase: true, analyzerPhase: true, restorerPhase: true, builderPhase: true, exporterPhase: true,
	legacyDetectPhase: true, legacyAnalyzePhase: true, legacyRestorePhase: true, legacyBuildPhase: true, legacyExportPhase: true,
}

// Phase is the container invocation of one lifecycle binary.
type Phase struct {
	name            string
	args            []string
	bindings        []docker.Binding
	env             map[string]string
	labels          map[string]string
	securityOptions []string
	networkMode     string
	daemonAccess    bool
	requiresApp     bool
}

// NewPhase creates a phase running `/cnb/lifecycle/<name>`.
// It panics if name isn't a lifecycle binary.
func NewPhase(name string, verbose bool) *Phase {
	if !knownPhases[name] {
		panic(fmt.Sprintf("unknown lifecycle phase %q", name))
	}

	p := &Phase{
		name:   name,
		env:    map[string]string{},
		labels: map[string]string{},
	}
	if verbose {
		p.args = append(p.args, "-log-level", "debug")
	}
	return p
}

func (p *Phase) Name() string { return p.name }

func (p *Phase) String() string { return p.name }

// RequiresApp is true for phases that read the application from the app volume.
func (p *Phase) RequiresApp() bool { return p.requiresApp }

func (p *Phase) WithArgs(args ...string) *Phase {
	p.args = append(p.args, args...)
	return p
}

func (p *Phase) WithEnv(name, value string) *Phase {
	p.env[name] = value
	return p
}

func (p *Phase) WithLabel(name, value string) *Phase {
	p.labels[name] = value
	return p
}

func (p *Phase) WithBinding(b docker.Binding) *Phase {
	p.bindings = append(p.bindings, b)
	return p
}

func (p *Phase) WithSecurityOption(option string) *Phase {
	p.securityOptions = append(p.securityOptions, option)
	return p
}

func (p *Phase) WithNetworkMode(mode string) *Phase {
	p.networkMode = mode
	return p
}

// WithApp gives access to the application directory.
func (p *Phase) WithApp(dir string, b docker.Binding) *Phase {
	p.requiresApp = true
	return p.WithArgs("-app", dir).WithBinding(b)
}

func (p *Phase) WithBuildCache(dir string, b docker.Binding) *Phase {
	return p.WithArgs("-cache-dir", dir).WithBinding(b)
}

func (p *Phase) WithLaunchCache(dir string, b docker.Binding) *Phase {
	return p.WithArgs("-launch-cache", dir).WithBinding(b)
}

func (p *Phase) WithLayers(dir string, b docker.Binding) *Phase {
	return p.WithArgs("-layers", dir).WithBinding(b)
}

func (p *Phase) WithPlatform(dir string) *Phase {
	return p.WithArgs("-platform", dir)
}

func (p *Phase) WithRunImage(ref docker.ImageReference) *Phase {
	return p.WithArgs("-run-image", ref.String())
}

func (p *Phase) WithImageName(ref docker.ImageReference) *Phase {
	return p.WithArgs(ref.String())
}

func (p *Phase) WithProcessType(processType string) *Phase {
	return p.WithArgs("-process-type", processType)
}

func (p *Phase) WithSkipRestore() *Phase {
	return p.WithArgs("-skip-restore")
}

func (p *Phase) WithOrder(orderPath string) *Phase {
	return p.WithArgs("-order", orderPath)
}

// WithDaemonAccess makes the phase talk to the docker daemon. The container runs as root.
// The socket binding, or the DOCKER_HOST environment, is added by the caller.
func (p *Phase) WithDaemonAccess() *Phase {
	p.daemonAccess = true
	return p.WithArgs("-daemon")
}

// Apply renders the phase into a container configuration.
func (p *Phase) Apply(opts *docker.ContainerCreateOpts) {
	if p.daemonAccess {
		opts.User = "root"
	}
	opts.Cmd = append([]string{path.Join(constants.LifecycleDir, p.name)}, p.args...)

	if opts.Labels == nil {
		opts.Labels = map[string]string{}
	}
	for name, value := range p.labels {
		opts.Labels[name] = value
	}
	opts.Labels[constants.Labels.Author] = constants.Labels.AuthorValue

	for _, b := range p.bindings {
		opts.Binds = append(opts.Binds, b.String())
	}

	var names []string
	for name := range p.env {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		opts.Env = append(opts.Env, name+"="+p.env[name])
	}

	if p.networkMode != "" {
		opts.NetworkMode = p.networkMode
	}
	opts.SecurityOpt = append(opts.SecurityOpt, p.securityOptions...)
}
