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
	"context"

	"github.com/docker/docker/api/types/registry"
	"github.com/pkg/errors"

	"github.com/GoogleContainerTools/buildimage/pkg/buildimage/constants"
	"github.com/GoogleContainerTools/buildimage/pkg/buildimage/docker"
	sErrors "github.com/GoogleContainerTools/buildimage/pkg/buildimage/errors"
	"github.com/GoogleContainerTools/buildimage/pkg/buildimage/output/log"
)

// Builder builds images with Cloud Native Buildpacks:
// https://buildpacks.io/
type Builder struct {
	daemon             docker.LocalDaemon
	log                BuildLog
	dockerHost         docker.HostConfig
	creatorPlatformAPI string
	trustedBuilders    []string
}

// Option customizes a Builder.
type Option func(*Builder)

// WithDockerHost describes the daemon to the phases that need to access it.
func WithDockerHost(cfg docker.HostConfig) Option {
	return func(b *Builder) {
		b.dockerHost = cfg
	}
}

// WithCreatorPlatformAPI sets the lowest platform API that runs the single `creator` phase.
func WithCreatorPlatformAPI(v string) Option {
	return func(b *Builder) {
		b.creatorPlatformAPI = v
	}
}

// WithTrustedBuilders trusts more builders, on top of the well known ones.
func WithTrustedBuilders(builders ...string) Option {
	return func(b *Builder) {
		b.trustedBuilders = append(b.trustedBuilders, builders...)
	}
}

// NewBuilder creates a Builder using the given daemon.
func NewBuilder(daemon docker.LocalDaemon, buildLog BuildLog, opts ...Option) *Builder {
	b := &Builder{
		daemon:             daemon,
		log:                buildLog,
		creatorPlatformAPI: constants.DefaultCreatorPlatformAPI,
		trustedBuilders:    append([]string(nil), constants.KnownTrustedBuilders...),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build runs the lifecycle and returns the built image followed by its additional tags.
func (b *Builder) Build(ctx context.Context, req BuildRequest) ([]docker.ImageReference, error) {
	ctx = log.WithTask(ctx, constants.Build, constants.SubtaskIDNone)

	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := b.checkCleanCache(req); err != nil {
		return nil, err
	}
	refs := append([]docker.ImageReference{req.name}, req.tags...)

	var publishAuth []registry.AuthConfig
	if req.publish {
		for _, ref := range refs {
			auth, err := docker.ResolveAuth(ref, req.publishRegistry)
			if err != nil {
				return nil, sErrors.WrapConfigError("publishRegistry", err)
			}
			if !docker.HasCredentials(auth) {
				return nil, sErrors.NewConfigError("publishRegistry", "publishing %q requires credentials for %s", ref, ref.Registry())
			}
			publishAuth = append(publishAuth, auth)
		}
	}

	b.log.Start(req)

	builderAuth, err := docker.ResolveAuth(req.builder, req.builderRegistry)
	if err != nil {
		return nil, sErrors.WrapConfigError("builderRegistry", err)
	}
	builderImage, err := b.ensureImage(ctx, req, req.builder, BuilderImage, builderAuth)
	if err != nil {
		return nil, err
	}
	md, err := NewBuilderMetadata(req.builder, builderImage)
	if err != nil {
		return nil, err
	}

	runImage, err := b.runImage(req, md)
	if err != nil {
		return nil, err
	}
	runAuth, err := docker.ResolveAuth(runImage, req.builderRegistry)
	if err != nil {
		return nil, sErrors.WrapConfigError("builderRegistry", err)
	}
	if _, err := b.ensureImage(ctx, req, runImage, RunImage, runAuth); err != nil {
		return nil, err
	}

	platformAPI, err := FindLatestSupported(md.PlatformAPIs(), SupportedPlatformAPIs)
	if err != nil {
		return nil, err
	}
	log.Entry(ctx).Debugf("Using platform API %s with builder %s", platformAPI, req.builder.Familiar())

	buildpacks, err := b.resolveBuildpacks(ctx, req, md)
	if err != nil {
		return nil, err
	}

	lifecycle := newLifecycle(lifecycleOptions{
		daemon:      b.daemon,
		log:         b.log,
		dockerHost:  b.dockerHost,
		request:     req,
		runImage:    runImage,
		metadata:    md,
		platformAPI: platformAPI,
		creatorAPI:  b.creatorPlatformAPI,
		trusted:     b.isTrusted(req),
		buildpacks:  buildpacks,
	})
	defer lifecycle.Close()

	if err := lifecycle.Execute(ctx); err != nil {
		return nil, err
	}

	if err := b.tag(ctx, req); err != nil {
		return nil, err
	}
	if req.publish {
		if err := b.push(ctx, refs, publishAuth); err != nil {
			return nil, err
		}
	}
	return refs, nil
}

// ensureImage pulls an image according to the pull policy, and returns its metadata.
func (b *Builder) ensureImage(ctx context.Context, req BuildRequest, ref docker.ImageReference, imageType ImageType, auth registry.AuthConfig) (docker.ImageMetadata, error) {
	ctx = log.WithTask(ctx, constants.Pull, constants.SubtaskIDNone)

	exists, err := b.daemon.ImageExists(ctx, ref.String())
	if err != nil {
		return docker.ImageMetadata{}, sErrors.NewEngineError("inspecting image", err)
	}

	pull := false
	switch req.pullPolicy {
	case Always:
		pull = true
	case Never:
		if !exists {
			return docker.ImageMetadata{}, sErrors.NewConfigError("pullPolicy", "%s '%s' is not present locally and the pull policy is %s", imageType, ref, Never)
		}
	default:
		pull = !exists
	}

	if pull {
		out := b.log.PullingImage(ref, imageType)
		err := b.daemon.Pull(ctx, out, ref.String(), req.platform, auth)
		flush(out)
		if err != nil {
			if ctx.Err() != nil {
				return docker.ImageMetadata{}, &sErrors.CancelledError{Err: ctx.Err()}
			}
			return docker.ImageMetadata{}, &sErrors.PullError{Ref: ref.String(), Err: err}
		}
	}

	md, err := b.daemon.ImageInspect(ctx, ref.String())
	if err != nil {
		return docker.ImageMetadata{}, sErrors.NewEngineError("inspecting image", err)
	}
	if pull {
		b.log.PulledImage(ref, imageType, md.ID)
	}
	return md, nil
}

func (b *Builder) runImage(req BuildRequest, md BuilderMetadata) (docker.ImageReference, error) {
	if !req.runImage.IsZero() {
		return req.runImage, nil
	}

	name := md.RunImage()
	if name == "" {
		return docker.ImageReference{}, sErrors.NewConfigError("runImage", "builder '%s' doesn't define a run image", req.builder)
	}
	runImage, err := docker.ParseImageReference(name)
	if err != nil {
		return docker.ImageReference{}, sErrors.WrapConfigError("runImage", err)
	}
	return runImage, nil
}

func (b *Builder) resolveBuildpacks(ctx context.Context, req BuildRequest, md BuilderMetadata) ([]Buildpack, error) {
	var buildpacks []Buildpack
	for _, ref := range req.buildpacks {
		bp, err := ref.resolve(ctx, md, req.platform)
		if err != nil {
			return nil, sErrors.WrapConfigError("buildpacks", errors.Wrapf(err, "resolving buildpack %q", ref))
		}
		log.Entry(ctx).Debugf("Resolved buildpack %s to %s@%s", ref, bp.ID, bp.Version)
		buildpacks = append(buildpacks, bp)
	}
	return buildpacks, nil
}

// checkCleanCache refuses to clean bind caches of a remote daemon: they are deleted from the local filesystem.
func (b *Builder) checkCleanCache(req BuildRequest) error {
	if !req.cleanCache {
		return nil
	}
	host := b.dockerHost
	if host.Host == "" {
		host.Host = b.daemon.Host()
	}
	if !host.IsRemote() {
		return nil
	}

	for _, c := range []struct {
		field string
		cache Cache
	}{{"buildCache", req.buildCache}, {"launchCache", req.launchCache}} {
		if !c.cache.IsZero() && !c.cache.IsVolume() {
			return sErrors.NewConfigError(c.field, "bind cache %s can't be cleaned with the remote daemon %s", c.cache, host.Host)
		}
	}
	return nil
}

// isTrusted decides whether the builder can run the single `creator` phase,
// which exposes the daemon and the registry credentials to the buildpacks.
func (b *Builder) isTrusted(req BuildRequest) bool {
	if req.trustBuilder != nil {
		return *req.trustBuilder
	}
	for _, trusted := range b.trustedBuilders {
		ref, err := docker.ParseImageReference(trusted)
		if err == nil && ref.Name() == req.builder.Name() {
			return true
		}
	}
	return false
}

func (b *Builder) tag(ctx context.Context, req BuildRequest) error {
	for _, tag := range req.tags {
		if err := b.daemon.Tag(ctx, req.name.String(), tag.String()); err != nil {
			return sErrors.NewEngineError("tagging image", errors.Wrapf(err, "tagging %s->%s", req.name, tag))
		}
		b.log.TaggedImage(tag)
	}
	return nil
}

// push publishes every reference. The build fails with the first failed push.
func (b *Builder) push(ctx context.Context, refs []docker.ImageReference, auths []registry.AuthConfig) error {
	ctx = log.WithTask(ctx, constants.Publish, constants.SubtaskIDNone)

	for i, ref := range refs {
		out := b.log.PushingImage(ref)
		digest, err := b.daemon.Push(ctx, out, ref.String(), auths[i])
		flush(out)
		if err != nil {
			return &sErrors.PublishError{Ref: ref.String(), Err: err}
		}
		b.log.PushedImage(ref, digest)
	}
	return nil
}
