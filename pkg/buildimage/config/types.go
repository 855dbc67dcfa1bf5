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
	"github.com/docker/docker/api/types/registry"

	"github.com/GoogleContainerTools/buildimage/pkg/buildimage/docker"
)

// BuildConfig describes a build. The zero value of every field means "use the default".
type BuildConfig struct {
	// Image is the name of the image to build.
	Image string   `yaml:"image,omitempty"`
	Tags  []string `yaml:"tags,omitempty"`

	// Path is the application: a directory, a jar, war or zip file, or a tarball.
	Path     string   `yaml:"path,omitempty"`
	Excludes []string `yaml:"excludes,omitempty"`

	Builder      string `yaml:"builder,omitempty"`
	TrustBuilder *bool  `yaml:"trustBuilder,omitempty"`
	RunImage     string `yaml:"runImage,omitempty"`
	PullPolicy   string `yaml:"pullPolicy,omitempty"`

	// TrustedBuilders are trusted in addition to the well known builders.
	TrustedBuilders []string `yaml:"trustedBuilders,omitempty"`

	Env     map[string]string `yaml:"env,omitempty"`
	EnvFile string            `yaml:"envFile,omitempty"`

	Buildpacks []string `yaml:"buildpacks,omitempty"`
	Bindings   []string `yaml:"bindings,omitempty"`
	Network    string   `yaml:"network,omitempty"`

	CleanCache     *bool `yaml:"cleanCache,omitempty"`
	VerboseLogging *bool `yaml:"verboseLogging,omitempty"`
	Publish        *bool `yaml:"publish,omitempty"`

	// BuildWorkspace, BuildCache and LaunchCache are `volume:<name>` or `bind:<path>`.
	BuildWorkspace string `yaml:"buildWorkspace,omitempty"`
	BuildCache     string `yaml:"buildCache,omitempty"`
	LaunchCache    string `yaml:"launchCache,omitempty"`

	CreatedDate          string   `yaml:"createdDate,omitempty"`
	ApplicationDirectory string   `yaml:"applicationDirectory,omitempty"`
	SecurityOptions      []string `yaml:"securityOptions,omitempty"`
	ImagePlatform        string   `yaml:"imagePlatform,omitempty"`
	ProcessType          string   `yaml:"processType,omitempty"`
	Creator              *Creator `yaml:"creator,omitempty"`

	Docker DockerConfig `yaml:"docker,omitempty"`
}

// Creator overrides the tool recorded in the image metadata.
type Creator struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// DockerConfig describes the daemon and the registries.
type DockerConfig struct {
	docker.HostConfig `yaml:",inline"`

	// PublishRegistry holds the credentials used to push the built image.
	PublishRegistry *Registry `yaml:"publishRegistry,omitempty"`
	// BuilderRegistry holds the credentials used to pull the builder and run images.
	BuilderRegistry *Registry `yaml:"builderRegistry,omitempty"`
}

// Registry holds either a user name and password, or an identity token.
type Registry struct {
	URL      string `yaml:"url,omitempty"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	Email    string `yaml:"email,omitempty"`
	Token    string `yaml:"token,omitempty"`
}

func (r *Registry) authConfig() registry.AuthConfig {
	return registry.AuthConfig{
		ServerAddress: r.URL,
		Username:      r.Username,
		Password:      r.Password,
		Email:         r.Email,
		IdentityToken: r.Token,
	}
}

// BoolOrDefault returns the value of an optional boolean.
func BoolOrDefault(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}
