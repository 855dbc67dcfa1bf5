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
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/buildpacks/lifecycle/api"
	"github.com/cenkalti/backoff/v4"
	"github.com/docker/docker/errdefs"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/GoogleContainerTools/buildimage/pkg/buildimage/archive"
	"github.com/GoogleContainerTools/buildimage/pkg/buildimage/constants"
	"github.com/GoogleContainerTools/buildimage/pkg/buildimage/docker"
	sErrors "github.com/GoogleContainerTools/buildimage/pkg/buildimage/errors"
	"github.com/GoogleContainerTools/buildimage/pkg/buildimage/output/log"
)

const (
	stopTimeout  = 10 * time.Second
	certsDir     = "/docker-certs"
	randomLength = 10
)

// For testing
var (
	newCleanupBackOff = func() backoff.BackOff {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = 200 * time.Millisecond
		b.MaxElapsedTime = 10 * time.Second
		return b
	}
	randomSuffix = func() string {
		return strings.ReplaceAll(uuid.NewString(), "-", "")[:randomLength]
	}
)

// State is the progress of a Lifecycle.
type State int

const (
	NotStarted State = iota
	PreparingWorkspace
	RunningPhase
	Exporting
	Completed
	PhaseFailed
	DaemonUnavailable
	Cancelled
)

var stateNames = [...]string{"NotStarted", "PreparingWorkspace", "RunningPhase", "Exporting", "Completed", "PhaseFailed", "DaemonUnavailable", "Cancelled"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Lifecycle runs the lifecycle phases of one build, each in its own container created from the builder image.
type Lifecycle struct {
	log         BuildLog
	daemon      docker.LocalDaemon
	dockerHost  docker.HostConfig
	request     BuildRequest
	builder     docker.ImageReference
	runImage    docker.ImageReference
	metadata    BuilderMetadata
	platformAPI *api.Version
	creatorAPI  string
	trusted     bool
	buildpacks  []Buildpack

	layers      Cache
	application Cache
	buildCache  Cache
	launchCache Cache
	platform    string
	// buildpacksVolume holds the buildpacks that don't come with the builder.
	buildpacksVolume string
	tempVolumes      []string

	mu                 sync.Mutex
	state              State
	phase              string
	containers         []string
	appUploaded        bool
	platformDone       bool
	buildpacksUploaded bool
	closed             bool
}

type lifecycleOptions struct {
	daemon      docker.LocalDaemon
	log         BuildLog
	dockerHost  docker.HostConfig
	request     BuildRequest
	runImage    docker.ImageReference
	metadata    BuilderMetadata
	platformAPI *api.Version
	creatorAPI  string
	trusted     bool
	buildpacks  []Buildpack
}

func newLifecycle(opts lifecycleOptions) *Lifecycle {
	req := opts.request
	l := &Lifecycle{
		log:         opts.log,
		daemon:      opts.daemon,
		dockerHost:  opts.dockerHost,
		request:     req,
		builder:     req.builder,
		runImage:    opts.runImage,
		metadata:    opts.metadata,
		platformAPI: opts.platformAPI,
		creatorAPI:  opts.creatorAPI,
		trusted:     opts.trusted,
		buildpacks:  opts.buildpacks,
		buildCache:  req.buildCache,
		launchCache: req.launchCache,
		platform:    "pack-platform-" + randomSuffix(),
	}
	if l.creatorAPI == "" {
		l.creatorAPI = constants.DefaultCreatorPlatformAPI
	}

	if ws := req.buildWorkspace; !ws.IsZero() {
		l.layers = ws.withSuffix("-layers")
		l.application = ws.withSuffix("-app")
	} else {
		l.layers = VolumeCache("pack-layers-" + randomSuffix())
		l.application = VolumeCache("pack-app-" + randomSuffix())
		l.tempVolumes = append(l.tempVolumes, l.layers.Source(), l.application.Source())
	}
	l.tempVolumes = append(l.tempVolumes, l.platform)
	if l.uploadsBuildpacks() {
		l.buildpacksVolume = "pack-buildpacks-" + randomSuffix()
		l.tempVolumes = append(l.tempVolumes, l.buildpacksVolume)
	}

	if l.buildCache.IsZero() {
		l.buildCache = defaultCache(req.name, "build")
	}
	if l.launchCache.IsZero() {
		l.launchCache = defaultCache(req.name, "launch")
	}
	return l
}

// State returns the current state and the phase it relates to, if any.
func (l *Lifecycle) State() (State, string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.state, l.phase
}

func (l *Lifecycle) setState(state State, phase string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.state = state
	l.phase = phase
}

// Execute runs all the phases. A Lifecycle can only be executed once.
func (l *Lifecycle) Execute(ctx context.Context) error {
	ctx = log.WithTask(ctx, constants.Lifecycle, constants.SubtaskIDNone)

	if state, _ := l.State(); state != NotStarted {
		return fmt.Errorf("lifecycle has already been executed")
	}
	l.setState(PreparingWorkspace, "")

	l.log.ExecutingLifecycle(l.request, l.metadata.Lifecycle.Version, l.platformAPI.String(), l.buildCache)
	for _, b := range l.request.bindings {
		if b.UsesSensitiveContainerPath() {
			l.log.SensitiveTargetBinding(b)
		}
	}

	if err := l.prepareWorkspace(ctx); err != nil {
		return err
	}

	for _, phase := range l.phases() {
		if err := l.run(ctx, phase); err != nil {
			return err
		}
	}

	l.setState(Completed, "")
	l.log.ExecutedLifecycle(l.request)
	return nil
}

func (l *Lifecycle) prepareWorkspace(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return l.cancelled("", err)
	}

	if l.request.cleanCache {
		for _, cache := range []Cache{l.buildCache, l.launchCache} {
			deleted, err := cache.Delete(ctx, l.daemon)
			if err != nil {
				return l.engineError(ctx, "", fmt.Sprintf("deleting cache %s", cache), err)
			}
			if deleted {
				log.Entry(ctx).Debugf("Deleted cache %s", cache)
			} else {
				log.Entry(ctx).Debugf("Cache %s doesn't exist yet", cache)
			}
		}
	}

	labels := map[string]string{constants.Labels.ManagedVolume: constants.Labels.ManagedVolumeValue}
	for _, name := range l.tempVolumes {
		if err := l.daemon.VolumeCreate(ctx, name, labels); err != nil {
			return l.engineError(ctx, "", "creating volume", err)
		}
	}
	return nil
}

// phases returns the phases to run, in order.
func (l *Lifecycle) phases() []*Phase {
	atLeastCreator := l.platformAPI.AtLeast(l.creatorAPI)
	if atLeastCreator && l.trusted {
		return []*Phase{l.creator()}
	}

	var phases []*Phase
	if atLeastCreator {
		// Analyze comes first since platform API 0.7.
		phases = append(phases, l.analyzer(), l.detector())
	} else {
		phases = append(phases, l.detector(), l.analyzer())
	}
	if l.request.cleanCache {
		l.log.SkippingPhase(l.phaseName(restorerPhase), "due to cleaning cache")
	} else {
		phases = append(phases, l.restorer())
	}
	return append(phases, l.builderPhase(), l.exporter())
}

func (l *Lifecycle) phaseName(name string) string {
	if !l.platformAPI.LessThan(constants.LegacyPlatformAPI) {
		return name
	}
	switch name {
	case detectorPhase:
		return legacyDetectPhase
	case analyzerPhase:
		return legacyAnalyzePhase
	case restorerPhase:
		return legacyRestorePhase
	case builderPhase:
		return legacyBuildPhase
	case exporterPhase:
		return legacyExportPhase
	}
	return name
}

func (l *Lifecycle) newPhase(name string) *Phase {
	p := NewPhase(l.phaseName(name), l.request.verboseLogging).
		WithEnv("CNB_PLATFORM_API", l.platformAPI.String()).
		WithLabel(constants.Labels.Creator, l.request.creator.String()).
		WithBinding(docker.Binding{Source: l.platform, Destination: constants.PlatformDir})
	if l.request.network != "" {
		p.WithNetworkMode(l.request.network)
	}
	// Docker fills the empty volume with the builder's own buildpacks the first time it is mounted.
	if l.buildpacksVolume != "" && usesBuildpacks(p.Name()) {
		p.WithBinding(docker.Binding{Source: l.buildpacksVolume, Destination: constants.BuildpacksDir})
	}
	for _, b := range l.request.bindings {
		p.WithBinding(b)
	}

	if l.request.securityOptions == nil {
		p.WithSecurityOption(constants.DefaultSecurityOption)
	} else {
		for _, option := range l.request.securityOptions {
			p.WithSecurityOption(option)
		}
	}
	return p
}

func (l *Lifecycle) creator() *Phase {
	p := l.newPhase(creatorPhase)
	l.configureDaemonAccess(p)
	l.withApp(p)
	p.WithPlatform(constants.PlatformDir)
	p.WithRunImage(l.runImage)
	l.withLayers(p)
	l.withCaches(p)
	if l.request.cleanCache {
		p.WithSkipRestore()
	}
	l.withOrder(p)
	l.withProcessType(p)
	l.withCreatedDate(p)
	return p.WithImageName(l.request.name)
}

func (l *Lifecycle) detector() *Phase {
	p := l.newPhase(detectorPhase)
	l.withApp(p)
	l.withLayers(p)
	p.WithPlatform(constants.PlatformDir)
	l.withOrder(p)
	return p
}

func (l *Lifecycle) analyzer() *Phase {
	p := l.newPhase(analyzerPhase)
	l.configureDaemonAccess(p)
	l.withLayers(p)
	p.WithBuildCache(constants.CacheDir, l.buildCache.Binding(constants.CacheDir))
	if l.platformAPI.AtLeast(l.creatorAPI) {
		p.WithLaunchCache(constants.LaunchCacheDir, l.launchCache.Binding(constants.LaunchCacheDir))
		p.WithRunImage(l.runImage)
	}
	return p.WithImageName(l.request.name)
}

func (l *Lifecycle) restorer() *Phase {
	p := l.newPhase(restorerPhase)
	l.withLayers(p)
	return p.WithBuildCache(constants.CacheDir, l.buildCache.Binding(constants.CacheDir))
}

func (l *Lifecycle) builderPhase() *Phase {
	p := l.newPhase(builderPhase)
	l.withApp(p)
	l.withLayers(p)
	return p.WithPlatform(constants.PlatformDir)
}

func (l *Lifecycle) exporter() *Phase {
	p := l.newPhase(exporterPhase)
	l.configureDaemonAccess(p)
	l.withApp(p)
	l.withLayers(p)
	l.withCaches(p)
	if l.platformAPI.LessThan(l.creatorAPI) {
		p.WithRunImage(l.runImage)
	}
	l.withProcessType(p)
	l.withCreatedDate(p)
	return p.WithImageName(l.request.name)
}

func (l *Lifecycle) withApp(p *Phase) {
	dir := l.request.appDirectory
	p.WithApp(dir, l.application.Binding(dir))
}

func (l *Lifecycle) withLayers(p *Phase) {
	p.WithLayers(constants.LayersDir, l.layers.Binding(constants.LayersDir))
}

func (l *Lifecycle) withCaches(p *Phase) {
	p.WithBuildCache(constants.CacheDir, l.buildCache.Binding(constants.CacheDir))
	p.WithLaunchCache(constants.LaunchCacheDir, l.launchCache.Binding(constants.LaunchCacheDir))
}

func (l *Lifecycle) withOrder(p *Phase) {
	if len(l.buildpacks) > 0 {
		p.WithOrder(constants.OrderPath)
	}
}

func (l *Lifecycle) withProcessType(p *Phase) {
	if l.request.processType != "" {
		p.WithProcessType(l.request.processType)
	}
}

func (l *Lifecycle) withCreatedDate(p *Phase) {
	p.WithEnv("SOURCE_DATE_EPOCH", strconv.FormatInt(l.request.createdDate.Unix(), 10))
}

// configureDaemonAccess gives the phase access to the daemon. By default, the daemon's own socket is
// bound into the container. With BindHostToBuilder, the phase talks to the same address as this process.
func (l *Lifecycle) configureDaemonAccess(p *Phase) {
	p.WithDaemonAccess()

	if !l.dockerHost.BindHostToBuilder {
		p.WithBinding(docker.Binding{Source: constants.DockerSocketPath, Destination: constants.DockerSocketPath})
		return
	}

	host := l.dockerHost
	if host.Host == "" {
		host.Host = l.daemon.Host()
	}
	if !host.IsRemote() {
		p.WithBinding(docker.Binding{Source: host.SocketPath(), Destination: constants.DockerSocketPath})
		return
	}

	p.WithEnv("DOCKER_HOST", host.Host)
	if host.TLSVerify {
		p.WithEnv("DOCKER_TLS_VERIFY", "1")
	}
	if host.CertPath != "" {
		p.WithEnv("DOCKER_CERT_PATH", certsDir)
		p.WithBinding(docker.Binding{Source: host.CertPath, Destination: certsDir, Options: "ro"})
	}
}

func (l *Lifecycle) uploadsBuildpacks() bool {
	for _, bp := range l.buildpacks {
		if !bp.FromBuilder() {
			return true
		}
	}
	return false
}

// usesBuildpacks is true for the phases reading /cnb/buildpacks.
func usesBuildpacks(name string) bool {
	switch name {
	case creatorPhase, detectorPhase, builderPhase, legacyDetectPhase, legacyBuildPhase:
		return true
	}
	return false
}

func (l *Lifecycle) run(ctx context.Context, phase *Phase) error {
	name := phase.Name()
	if err := ctx.Err(); err != nil {
		return l.cancelled(name, err)
	}

	state := RunningPhase
	switch name {
	case creatorPhase, exporterPhase, legacyExportPhase:
		state = Exporting
	}
	l.setState(state, name)
	log.Entry(ctx).Debugf("Running phase %s", name)

	opts := docker.ContainerCreateOpts{
		Image:    l.builder.String(),
		Platform: l.request.platform,
	}
	phase.Apply(&opts)

	id, err := l.daemon.ContainerCreate(ctx, opts)
	if err != nil {
		return l.engineError(ctx, name, "creating container", err)
	}
	l.track(id)
	defer l.remove(ctx, id)

	if err := l.upload(ctx, id, phase); err != nil {
		return err
	}

	if err := l.daemon.ContainerStart(ctx, id); err != nil {
		return l.engineError(ctx, name, "starting container", err)
	}

	out := l.log.RunningPhase(l.request, name)
	tail := newTailWriter(constants.LogTailLines)
	w := io.MultiWriter(out, tail)

	var code int64
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return l.daemon.ContainerLogs(gctx, id, w, w)
	})
	g.Go(func() error {
		var err error
		code, err = l.daemon.ContainerWait(gctx, id)
		return err
	})
	err = g.Wait()
	flush(out)

	if ctx.Err() != nil {
		if err := l.daemon.Stop(context.WithoutCancel(ctx), id, stopTimeout); err != nil {
			log.Entry(ctx).Warnf("Unable to stop phase %s: %v", name, err)
		}
		return l.cancelled(name, ctx.Err())
	}
	if err != nil {
		return l.engineError(ctx, name, "running container", err)
	}

	if code != 0 {
		l.setState(PhaseFailed, name)
		return &sErrors.PhaseError{Phase: name, ExitCode: int(code), Logs: tail.Lines()}
	}
	return nil
}

// upload copies, before the container starts, the platform files and, the first time a phase
// requires them, the buildpacks and the application.
func (l *Lifecycle) upload(ctx context.Context, id string, phase *Phase) error {
	name := phase.Name()
	owner := l.metadata.Owner

	if !l.platformDone {
		l.platformDone = true
		files, err := l.platformFiles()
		if err != nil {
			return err
		}
		if len(files) > 0 {
			if err := l.copyTo(ctx, id, constants.PlatformDir, func(w io.Writer) error {
				return writePlatformFiles(w, files, owner)
			}); err != nil {
				return l.uploadError(ctx, name, "platform files", err)
			}
		}
	}

	if l.buildpacksVolume != "" && usesBuildpacks(name) && !l.buildpacksUploaded {
		l.buildpacksUploaded = true
		for _, bp := range l.buildpacks {
			if bp.FromBuilder() {
				continue
			}
			content := bp.content
			if err := l.copyTo(ctx, id, "/", func(w io.Writer) error {
				return content(w, owner)
			}); err != nil {
				return l.uploadError(ctx, name, fmt.Sprintf("buildpack %s", bp.ID), err)
			}
		}
	}

	if phase.RequiresApp() && !l.appUploaded {
		l.appUploaded = true

		var size int64
		if err := l.copyTo(ctx, id, l.request.appDirectory, func(w io.Writer) error {
			app, err := l.request.content(owner)
			if err != nil {
				return err
			}
			size, err = app.WriteTo(w)
			return err
		}); err != nil {
			return l.uploadError(ctx, name, "application", err)
		}
		l.log.UploadedApplication(size)
	}
	return nil
}

type contentError struct {
	err error
}

func (e *contentError) Error() string { return e.err.Error() }

func (e *contentError) Unwrap() error { return e.err }

// copyTo streams a tar archive into a container.
func (l *Lifecycle) copyTo(ctx context.Context, id, dest string, write func(io.Writer) error) error {
	pr, pw := io.Pipe()
	writeErr := make(chan error, 1)
	go func() {
		err := write(pw)
		pw.CloseWithError(err)
		writeErr <- err
	}()

	err := l.daemon.CopyToContainer(ctx, id, dest, pr)
	pr.Close()

	if werr := <-writeErr; werr != nil && !errors.Is(werr, io.ErrClosedPipe) {
		return &contentError{err: werr}
	}
	return err
}

func (l *Lifecycle) uploadError(ctx context.Context, phase, what string, err error) error {
	var ce *contentError
	if errors.As(err, &ce) {
		l.setState(PhaseFailed, phase)
		return sErrors.NewConfigError("content", "unable to read %s: %v", what, ce.err)
	}
	return l.engineError(ctx, phase, fmt.Sprintf("uploading %s", what), err)
}

func (l *Lifecycle) platformFiles() (map[string][]byte, error) {
	files := map[string][]byte{}
	for k, v := range l.request.env {
		files[path.Join("env", k)] = []byte(v)
	}

	if len(l.buildpacks) > 0 {
		order, err := encodeOrder(l.buildpacks)
		if err != nil {
			return nil, err
		}
		files[path.Base(constants.OrderPath)] = order
	}
	return files, nil
}

func writePlatformFiles(w io.Writer, files map[string][]byte, owner archive.Owner) error {
	var names []string
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	tw := tar.NewWriter(w)
	dirs := map[string]bool{}
	for _, name := range names {
		if dir := path.Dir(name); dir != "." && !dirs[dir] {
			dirs[dir] = true
			if err := tw.WriteHeader(&tar.Header{
				Typeflag: tar.TypeDir,
				Name:     dir + "/",
				Mode:     0o755,
				Uid:      owner.UID,
				Gid:      owner.GID,
				ModTime:  archive.ModTime,
			}); err != nil {
				return err
			}
		}

		content := files[name]
		if err := tw.WriteHeader(&tar.Header{
			Typeflag: tar.TypeReg,
			Name:     name,
			Mode:     0o644,
			Size:     int64(len(content)),
			Uid:      owner.UID,
			Gid:      owner.GID,
			ModTime:  archive.ModTime,
		}); err != nil {
			return err
		}
		if _, err := tw.Write(content); err != nil {
			return err
		}
	}
	return tw.Close()
}

func (l *Lifecycle) engineError(ctx context.Context, phase, op string, err error) error {
	if ctx.Err() != nil {
		return l.cancelled(phase, ctx.Err())
	}
	l.setState(DaemonUnavailable, phase)
	return sErrors.NewEngineError(op, err)
}

func (l *Lifecycle) cancelled(phase string, err error) error {
	l.setState(Cancelled, phase)
	return &sErrors.CancelledError{Phase: phase, Err: err}
}

func (l *Lifecycle) track(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.containers = append(l.containers, id)
}

// remove deletes a container, even if the build was cancelled.
func (l *Lifecycle) remove(ctx context.Context, id string) {
	if err := l.daemon.Remove(context.WithoutCancel(ctx), id); err != nil {
		log.Entry(ctx).Warnf("Unable to remove container %s: %v", id, err)
		l.log.FailedCleaning("container", id, err)
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for i, c := range l.containers {
		if c == id {
			l.containers = append(l.containers[:i], l.containers[i+1:]...)
			break
		}
	}
}

// Close removes the containers left behind and the temporary volumes.
// Build and launch caches are kept. Failures are logged.
func (l *Lifecycle) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	leaked := append([]string(nil), l.containers...)
	l.mu.Unlock()

	ctx := log.WithTask(context.Background(), constants.Cleanup, constants.SubtaskIDNone)
	for _, id := range leaked {
		l.remove(ctx, id)
	}

	for _, name := range l.tempVolumes {
		if err := l.removeVolume(ctx, name); err != nil {
			log.Entry(ctx).Warnf("Unable to remove volume %s: %v", name, err)
			l.log.FailedCleaning("volume", name, err)
		}
	}
}

// removeVolume retries while the volume is still used by a container being removed.
func (l *Lifecycle) removeVolume(ctx context.Context, name string) error {
	return backoff.Retry(func() error {
		err := l.daemon.VolumeRemove(ctx, name)
		if err != nil && !errdefs.IsConflict(err) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(newCleanupBackOff(), ctx))
}
