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
	"strings"
	"time"

	"github.com/blang/semver"
	"github.com/docker/docker/api/types/registry"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/GoogleContainerTools/buildimage/pkg/buildimage/archive"
	"github.com/GoogleContainerTools/buildimage/pkg/buildimage/constants"
	"github.com/GoogleContainerTools/buildimage/pkg/buildimage/docker"
	sErrors "github.com/GoogleContainerTools/buildimage/pkg/buildimage/errors"
	"github.com/GoogleContainerTools/buildimage/pkg/buildimage/version"
)

// DefaultCreatedDate is the creation date of images built without an explicit one, for reproducible builds.
var DefaultCreatedDate = time.Date(1980, time.January, 1, 0, 0, 1, 0, time.UTC)

// PullPolicy decides when the builder and run images are pulled.
type PullPolicy int

const (
	IfNotPresent PullPolicy = iota
	Always
	Never
)

var pullPolicies = map[PullPolicy]string{
	IfNotPresent: "IF_NOT_PRESENT",
	Always:       "ALWAYS",
	Never:        "NEVER",
}

// ParsePullPolicy accepts `ALWAYS`, `IF_NOT_PRESENT` or `NEVER`, in any case, with dashes or underscores.
func ParsePullPolicy(s string) (PullPolicy, error) {
	normalized := strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(s)), "-", "_")
	for p, name := range pullPolicies {
		if name == normalized {
			return p, nil
		}
	}
	return IfNotPresent, fmt.Errorf("unknown pull policy %q, expected one of ALWAYS, IF_NOT_PRESENT or NEVER", s)
}

func (p PullPolicy) String() string {
	return pullPolicies[p]
}

// Set implements pflag.Value.
func (p *PullPolicy) Set(s string) error {
	parsed, err := ParsePullPolicy(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Type implements pflag.Value.
func (p *PullPolicy) Type() string {
	return "pullPolicy"
}

// Creator identifies the tool recorded as the creator of the image.
type Creator struct {
	Name    string
	Version string
}

// NewCreator validates the version as a semantic version.
func NewCreator(name, v string) (Creator, error) {
	if name == "" {
		return Creator{}, fmt.Errorf("creator name must not be empty")
	}
	if _, err := semver.ParseTolerant(v); err != nil {
		return Creator{}, fmt.Errorf("invalid creator version %q: %w", v, err)
	}
	return Creator{Name: name, Version: v}, nil
}

func (c Creator) String() string {
	return c.Name + "@" + c.Version
}

func defaultCreator() Creator {
	return Creator{Name: constants.DefaultCreatorName, Version: version.Get().Version}
}

// ParseCreatedDate parses an RFC 3339 date, or `now`.
func ParseCreatedDate(s string) (time.Time, error) {
	if strings.EqualFold(s, "now") {
		return time.Now().UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("created date %q must be 'now' or an RFC 3339 timestamp: %w", s, err)
	}
	return t.UTC(), nil
}

// BuildRequest holds the parameters of a build.
// It is immutable: every With method returns a modified copy.
type BuildRequest struct {
	name            docker.ImageReference
	content         archive.Content
	builder         docker.ImageReference
	trustBuilder    *bool
	runImage        docker.ImageReference
	env             map[string]string
	cleanCache      bool
	verboseLogging  bool
	pullPolicy      PullPolicy
	publish         bool
	buildpacks      []BuildpackReference
	bindings        []docker.Binding
	tags            []docker.ImageReference
	network         string
	buildWorkspace  Cache
	buildCache      Cache
	launchCache     Cache
	createdDate     time.Time
	appDirectory    string
	securityOptions []string
	platform        *ocispec.Platform
	creator         Creator
	processType     string
	publishRegistry *registry.AuthConfig
	builderRegistry *registry.AuthConfig
}

// NewBuildRequest creates a request to build the given image from the application content.
func NewBuildRequest(name docker.ImageReference, content archive.Content) BuildRequest {
	return BuildRequest{
		name:         name,
		content:      content,
		builder:      docker.MustParseImageReference(constants.DefaultBuilder),
		env:          map[string]string{},
		pullPolicy:   IfNotPresent,
		createdDate:  DefaultCreatedDate,
		appDirectory: constants.DefaultAppDirectory,
		creator:      defaultCreator(),
	}
}

// clone deep copies the slices and maps so that copies never share state.
func (r BuildRequest) clone() BuildRequest {
	c := r
	c.env = make(map[string]string, len(r.env))
	for k, v := range r.env {
		c.env[k] = v
	}
	c.buildpacks = append([]BuildpackReference(nil), r.buildpacks...)
	c.bindings = append([]docker.Binding(nil), r.bindings...)
	c.tags = append([]docker.ImageReference(nil), r.tags...)
	if r.securityOptions != nil {
		c.securityOptions = append([]string{}, r.securityOptions...)
	}
	if r.trustBuilder != nil {
		trust := *r.trustBuilder
		c.trustBuilder = &trust
	}
	if r.platform != nil {
		p := *r.platform
		c.platform = &p
	}
	if r.publishRegistry != nil {
		auth := *r.publishRegistry
		c.publishRegistry = &auth
	}
	if r.builderRegistry != nil {
		auth := *r.builderRegistry
		c.builderRegistry = &auth
	}
	return c
}

func (r BuildRequest) Name() docker.ImageReference { return r.name }

func (r BuildRequest) Builder() docker.ImageReference { return r.builder }

func (r BuildRequest) RunImage() docker.ImageReference { return r.runImage }

func (r BuildRequest) PullPolicy() PullPolicy { return r.pullPolicy }

func (r BuildRequest) Publish() bool { return r.publish }

func (r BuildRequest) CleanCache() bool { return r.cleanCache }

func (r BuildRequest) VerboseLogging() bool { return r.verboseLogging }

func (r BuildRequest) Network() string { return r.network }

func (r BuildRequest) CreatedDate() time.Time { return r.createdDate }

func (r BuildRequest) ApplicationDirectory() string { return r.appDirectory }

func (r BuildRequest) Creator() Creator { return r.creator }

func (r BuildRequest) ProcessType() string { return r.processType }

func (r BuildRequest) Platform() *ocispec.Platform { return r.clone().platform }

func (r BuildRequest) Env() map[string]string { return r.clone().env }

func (r BuildRequest) Buildpacks() []BuildpackReference { return r.clone().buildpacks }

func (r BuildRequest) Bindings() []docker.Binding { return r.clone().bindings }

func (r BuildRequest) Tags() []docker.ImageReference { return r.clone().tags }

// SecurityOptions is nil when the default options apply.
func (r BuildRequest) SecurityOptions() []string { return r.clone().securityOptions }

func (r BuildRequest) WithBuilder(builder docker.ImageReference) BuildRequest {
	c := r.clone()
	c.builder = builder
	return c
}

// WithTrustBuilder overrides the detection of trusted builders.
func (r BuildRequest) WithTrustBuilder(trust bool) BuildRequest {
	c := r.clone()
	c.trustBuilder = &trust
	return c
}

func (r BuildRequest) WithRunImage(runImage docker.ImageReference) BuildRequest {
	c := r.clone()
	c.runImage = runImage
	return c
}

// WithEnv adds environment variables, overriding existing ones.
func (r BuildRequest) WithEnv(env map[string]string) BuildRequest {
	c := r.clone()
	for k, v := range env {
		c.env[k] = v
	}
	return c
}

func (r BuildRequest) WithEnvVar(name, value string) BuildRequest {
	return r.WithEnv(map[string]string{name: value})
}

func (r BuildRequest) WithCleanCache(cleanCache bool) BuildRequest {
	c := r.clone()
	c.cleanCache = cleanCache
	return c
}

func (r BuildRequest) WithVerboseLogging(verbose bool) BuildRequest {
	c := r.clone()
	c.verboseLogging = verbose
	return c
}

func (r BuildRequest) WithPullPolicy(policy PullPolicy) BuildRequest {
	c := r.clone()
	c.pullPolicy = policy
	return c
}

func (r BuildRequest) WithPublish(publish bool) BuildRequest {
	c := r.clone()
	c.publish = publish
	return c
}

// WithBuildpacks replaces the buildpacks detected from the builder with an explicit list.
func (r BuildRequest) WithBuildpacks(buildpacks ...BuildpackReference) BuildRequest {
	c := r.clone()
	c.buildpacks = append([]BuildpackReference(nil), buildpacks...)
	return c
}

func (r BuildRequest) WithBindings(bindings ...docker.Binding) BuildRequest {
	c := r.clone()
	c.bindings = append([]docker.Binding(nil), bindings...)
	return c
}

// WithTags sets additional tags of the built image.
func (r BuildRequest) WithTags(tags ...docker.ImageReference) BuildRequest {
	c := r.clone()
	c.tags = append([]docker.ImageReference(nil), tags...)
	return c
}

func (r BuildRequest) WithNetwork(network string) BuildRequest {
	c := r.clone()
	c.network = network
	return c
}

// WithBuildWorkspace keeps the layers and application in persistent `<name>-layers` and `<name>-app` caches.
func (r BuildRequest) WithBuildWorkspace(workspace Cache) BuildRequest {
	c := r.clone()
	c.buildWorkspace = workspace
	return c
}

func (r BuildRequest) WithBuildCache(cache Cache) BuildRequest {
	c := r.clone()
	c.buildCache = cache
	return c
}

func (r BuildRequest) WithLaunchCache(cache Cache) BuildRequest {
	c := r.clone()
	c.launchCache = cache
	return c
}

func (r BuildRequest) WithCreatedDate(date time.Time) BuildRequest {
	c := r.clone()
	c.createdDate = date.UTC()
	return c
}

func (r BuildRequest) WithApplicationDirectory(dir string) BuildRequest {
	c := r.clone()
	c.appDirectory = dir
	return c
}

// WithSecurityOptions replaces the default `label=disable` option. An empty list disables it.
func (r BuildRequest) WithSecurityOptions(options ...string) BuildRequest {
	c := r.clone()
	c.securityOptions = append([]string{}, options...)
	return c
}

func (r BuildRequest) WithImagePlatform(platform *ocispec.Platform) BuildRequest {
	c := r.clone()
	c.platform = nil
	if platform != nil {
		p := *platform
		c.platform = &p
	}
	return c
}

func (r BuildRequest) WithCreator(creator Creator) BuildRequest {
	c := r.clone()
	c.creator = creator
	return c
}

func (r BuildRequest) WithProcessType(processType string) BuildRequest {
	c := r.clone()
	c.processType = processType
	return c
}

// WithPublishRegistry sets the credentials used to push the image.
func (r BuildRequest) WithPublishRegistry(auth registry.AuthConfig) BuildRequest {
	c := r.clone()
	c.publishRegistry = &auth
	return c
}

// WithBuilderRegistry sets the credentials used to pull the builder and run images.
func (r BuildRequest) WithBuilderRegistry(auth registry.AuthConfig) BuildRequest {
	c := r.clone()
	c.builderRegistry = &auth
	return c
}

// Validate checks the request. Credentials are checked by the Builder.
func (r BuildRequest) Validate() error {
	if r.name.IsZero() {
		return sErrors.NewConfigError("name", "image name must not be empty")
	}
	if r.content == nil {
		return sErrors.NewConfigError("content", "application content must be provided")
	}
	if r.name.Digest != "" {
		return sErrors.NewConfigError("name", "image name %q must not contain a digest", r.name)
	}
	for _, tag := range r.tags {
		if tag.Digest != "" {
			return sErrors.NewConfigError("tags", "tag %q must not contain a digest", tag)
		}
	}
	if r.builder.IsZero() {
		return sErrors.NewConfigError("builder", "builder image must not be empty")
	}
	if !path.IsAbs(r.appDirectory) {
		return sErrors.NewConfigError("applicationDirectory", "%q must be an absolute path", r.appDirectory)
	}
	for _, bp := range r.buildpacks {
		if bp == "" {
			return sErrors.NewConfigError("buildpacks", "buildpack reference must not be empty")
		}
	}
	return nil
}
