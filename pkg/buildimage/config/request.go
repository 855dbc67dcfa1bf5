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
	"fmt"

	"github.com/joho/godotenv"

	"github.com/GoogleContainerTools/buildimage/pkg/buildimage/archive"
	"github.com/GoogleContainerTools/buildimage/pkg/buildimage/build/buildpacks"
	"github.com/GoogleContainerTools/buildimage/pkg/buildimage/docker"
	sErrors "github.com/GoogleContainerTools/buildimage/pkg/buildimage/errors"
)

// ToRequest converts the configuration into a validated BuildRequest.
func (c *BuildConfig) ToRequest() (buildpacks.BuildRequest, error) {
	var none buildpacks.BuildRequest

	if c.Image == "" {
		return none, sErrors.NewConfigError("image", "the name of the image to build is required")
	}
	name, err := docker.ParseImageReference(c.Image)
	if err != nil {
		return none, sErrors.WrapConfigError("image", err)
	}

	if c.Path == "" {
		return none, sErrors.NewConfigError("path", "the application path is required")
	}
	content, err := archive.ForPath(c.Path, c.Excludes...)
	if err != nil {
		return none, sErrors.WrapConfigError("path", err)
	}

	req := buildpacks.NewBuildRequest(name, content)

	if c.Builder != "" {
		builder, err := docker.ParseImageReference(c.Builder)
		if err != nil {
			return none, sErrors.WrapConfigError("builder", err)
		}
		req = req.WithBuilder(builder)
	}
	if c.TrustBuilder != nil {
		req = req.WithTrustBuilder(*c.TrustBuilder)
	}
	for _, trusted := range c.TrustedBuilders {
		if _, err := docker.ParseImageReference(trusted); err != nil {
			return none, sErrors.WrapConfigError("trustedBuilders", err)
		}
	}
	if c.RunImage != "" {
		runImage, err := docker.ParseImageReference(c.RunImage)
		if err != nil {
			return none, sErrors.WrapConfigError("runImage", err)
		}
		req = req.WithRunImage(runImage)
	}
	if c.PullPolicy != "" {
		policy, err := buildpacks.ParsePullPolicy(c.PullPolicy)
		if err != nil {
			return none, sErrors.WrapConfigError("pullPolicy", err)
		}
		req = req.WithPullPolicy(policy)
	}

	env, err := c.environment()
	if err != nil {
		return none, err
	}
	req = req.WithEnv(env)

	var tags []docker.ImageReference
	for _, t := range c.Tags {
		tag, err := docker.ParseImageReference(t)
		if err != nil {
			return none, sErrors.WrapConfigError("tags", err)
		}
		tags = append(tags, tag)
	}
	req = req.WithTags(tags...)

	var refs []buildpacks.BuildpackReference
	for _, bp := range c.Buildpacks {
		ref, err := buildpacks.ParseBuildpackReference(bp)
		if err != nil {
			return none, sErrors.WrapConfigError("buildpacks", err)
		}
		refs = append(refs, ref)
	}
	req = req.WithBuildpacks(refs...)

	var bindings []docker.Binding
	for _, b := range c.Bindings {
		binding, err := docker.ParseBinding(b)
		if err != nil {
			return none, sErrors.WrapConfigError("bindings", err)
		}
		bindings = append(bindings, binding)
	}
	req = req.WithBindings(bindings...)

	req = req.WithNetwork(c.Network).
		WithCleanCache(BoolOrDefault(c.CleanCache, false)).
		WithVerboseLogging(BoolOrDefault(c.VerboseLogging, false)).
		WithPublish(BoolOrDefault(c.Publish, false)).
		WithProcessType(c.ProcessType)

	for _, cache := range []struct {
		field string
		value string
		with  func(buildpacks.BuildRequest, buildpacks.Cache) buildpacks.BuildRequest
	}{
		{"buildWorkspace", c.BuildWorkspace, buildpacks.BuildRequest.WithBuildWorkspace},
		{"buildCache", c.BuildCache, buildpacks.BuildRequest.WithBuildCache},
		{"launchCache", c.LaunchCache, buildpacks.BuildRequest.WithLaunchCache},
	} {
		if cache.value == "" {
			continue
		}
		parsed, err := buildpacks.ParseCache(cache.value)
		if err != nil {
			return none, sErrors.WrapConfigError(cache.field, err)
		}
		req = cache.with(req, parsed)
	}

	if c.CreatedDate != "" {
		date, err := buildpacks.ParseCreatedDate(c.CreatedDate)
		if err != nil {
			return none, sErrors.WrapConfigError("createdDate", err)
		}
		req = req.WithCreatedDate(date)
	}
	if c.ApplicationDirectory != "" {
		req = req.WithApplicationDirectory(c.ApplicationDirectory)
	}
	if c.SecurityOptions != nil {
		req = req.WithSecurityOptions(c.SecurityOptions...)
	}
	if c.ImagePlatform != "" {
		platform, err := docker.ParsePlatform(c.ImagePlatform)
		if err != nil {
			return none, sErrors.WrapConfigError("imagePlatform", err)
		}
		req = req.WithImagePlatform(platform)
	}
	if c.Creator != nil {
		creator, err := buildpacks.NewCreator(c.Creator.Name, c.Creator.Version)
		if err != nil {
			return none, sErrors.WrapConfigError("creator", err)
		}
		req = req.WithCreator(creator)
	}

	if r := c.Docker.PublishRegistry; r != nil {
		req = req.WithPublishRegistry(r.authConfig())
	}
	if r := c.Docker.BuilderRegistry; r != nil {
		req = req.WithBuilderRegistry(r.authConfig())
	}

	if err := req.Validate(); err != nil {
		return none, err
	}
	return req, nil
}

// environment reads the env file, then applies the explicit variables on top of it.
func (c *BuildConfig) environment() (map[string]string, error) {
	env := map[string]string{}
	if c.EnvFile != "" {
		fromFile, err := godotenv.Read(c.EnvFile)
		if err != nil {
			return nil, sErrors.WrapConfigError("envFile", fmt.Errorf("reading %q: %w", c.EnvFile, err))
		}
		env = fromFile
	}

	for k, v := range c.Env {
		if k == "" {
			return nil, sErrors.NewConfigError("env", "environment variable names must not be empty")
		}
		env[k] = v
	}
	return env, nil
}
