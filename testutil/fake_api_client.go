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

package testutil

import (
	"archive/tar"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"

	"github.com/distribution/reference"
	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/api/types/volume"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"github.com/docker/docker/pkg/stdcopy"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// FakeImage is an image known to the FakeAPIClient.
type FakeImage struct {
	ID     string
	Labels map[string]string
	Env    []string
}

// FakeContainer records everything that happened to a container created through the FakeAPIClient.
type FakeContainer struct {
	ID         string
	Phase      string
	Config     container.Config
	HostConfig container.HostConfig
	Platform   *ocispec.Platform
	// Copied maps a destination path to the names of the tar entries copied there.
	Copied map[string][]string
	// Contents maps "<dest>/<entry>" to the content of regular files that were copied.
	Contents map[string]string
	// MissingVolumes lists the named volumes that didn't exist when the container was created.
	MissingVolumes []string
	Started        bool
	Stopped        bool
	Removed        bool
}

// FakeAPIClient is an in-memory Docker Engine API client.
type FakeAPIClient struct {
	client.CommonAPIClient

	Host    string
	Images  map[string]*FakeImage
	Volumes map[string]bool

	// ExitCodes and Logs are keyed by lifecycle phase name.
	ExitCodes map[string]int64
	Logs      map[string]string
	// PushErrors is keyed by image reference.
	PushErrors map[string]error

	ErrImagePull       error
	ErrImageInspect    error
	ErrContainerCreate error
	ErrContainerStart  error
	ErrCopy            error
	ErrVolumeRemove    error
	// VolumeConflicts is the number of times VolumeRemove reports a conflict before succeeding.
	VolumeConflicts int
	// BlockWait makes ContainerWait block until the context is cancelled.
	BlockWait bool
	// Waiting receives the phase name once a blocking wait has started.
	Waiting chan string

	Journal    []string
	Pulled     []string
	Pushed     []string
	Containers []*FakeContainer

	nextID int
	lock   sync.Mutex
}

// AddImage registers an image under the given reference.
func (f *FakeAPIClient) AddImage(ref string, labels map[string]string, env ...string) *FakeAPIClient {
	f.lock.Lock()
	defer f.lock.Unlock()

	f.addImage(ref, &FakeImage{
		ID:     "sha256:" + hash(ref),
		Labels: labels,
		Env:    env,
	})
	return f
}

// AddVolume registers an existing named volume.
func (f *FakeAPIClient) AddVolume(name string) *FakeAPIClient {
	f.lock.Lock()
	defer f.lock.Unlock()

	if f.Volumes == nil {
		f.Volumes = map[string]bool{}
	}
	f.Volumes[name] = true
	return f
}

// HasImage returns whether an image is known under the given reference.
func (f *FakeAPIClient) HasImage(ref string) bool {
	f.lock.Lock()
	defer f.lock.Unlock()

	_, found := f.Images[normalize(ref)]
	return found
}

// HasVolume returns whether a volume currently exists.
func (f *FakeAPIClient) HasVolume(name string) bool {
	f.lock.Lock()
	defer f.lock.Unlock()

	return f.Volumes[name]
}

// Phases returns the phase names of the created containers, in order of creation.
func (f *FakeAPIClient) Phases() []string {
	f.lock.Lock()
	defer f.lock.Unlock()

	var phases []string
	for _, c := range f.Containers {
		phases = append(phases, c.Phase)
	}
	return phases
}

// Container returns the first container created for a phase.
func (f *FakeAPIClient) Container(phase string) *FakeContainer {
	f.lock.Lock()
	defer f.lock.Unlock()

	for _, c := range f.Containers {
		if c.Phase == phase {
			return c
		}
	}
	return nil
}

// LeakedContainers returns the ids of the containers that were never removed.
func (f *FakeAPIClient) LeakedContainers() []string {
	f.lock.Lock()
	defer f.lock.Unlock()

	var leaked []string
	for _, c := range f.Containers {
		if !c.Removed {
			leaked = append(leaked, c.ID)
		}
	}
	return leaked
}

// JournalIndex returns the position of the first journal entry, or -1.
func (f *FakeAPIClient) JournalIndex(entry string) int {
	f.lock.Lock()
	defer f.lock.Unlock()

	for i, e := range f.Journal {
		if e == entry {
			return i
		}
	}
	return -1
}

func (f *FakeAPIClient) DaemonHost() string {
	if f.Host == "" {
		return "unix:///var/run/docker.sock"
	}
	return f.Host
}

func (f *FakeAPIClient) Close() error { return nil }

func (f *FakeAPIClient) ImageInspectWithRaw(_ context.Context, ref string) (types.ImageInspect, []byte, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	if f.ErrImageInspect != nil {
		return types.ImageInspect{}, nil, f.ErrImageInspect
	}
	img, found := f.Images[normalize(ref)]
	if !found {
		return types.ImageInspect{}, nil, errdefs.NotFound(fmt.Errorf("no such image: %s", ref))
	}

	return types.ImageInspect{
		ID:           img.ID,
		RepoTags:     []string{ref},
		Os:           "linux",
		Architecture: "amd64",
		Config: &container.Config{
			Labels: img.Labels,
			Env:    img.Env,
		},
	}, nil, nil
}

func (f *FakeAPIClient) ImagePull(_ context.Context, ref string, _ image.PullOptions) (io.ReadCloser, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	f.record("pull %s", ref)
	if f.ErrImagePull != nil {
		return nil, f.ErrImagePull
	}
	f.Pulled = append(f.Pulled, ref)
	if _, found := f.Images[normalize(ref)]; !found {
		f.addImage(ref, &FakeImage{ID: "sha256:" + hash(ref)})
	}

	return io.NopCloser(strings.NewReader(fmt.Sprintf(`{"status":"Pulling from %s"}`+"\n", ref))), nil
}

func (f *FakeAPIClient) ImagePush(_ context.Context, ref string, _ image.PushOptions) (io.ReadCloser, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	f.record("push %s", ref)
	if err := f.PushErrors[ref]; err != nil {
		return nil, err
	}
	f.Pushed = append(f.Pushed, ref)

	body := fmt.Sprintf(`{"status":"Pushed"}`+"\n"+`{"aux":{"Tag":"latest","Digest":"sha256:%s","Size":1}}`+"\n", hash(ref))
	return io.NopCloser(strings.NewReader(body)), nil
}

func (f *FakeAPIClient) ImageTag(_ context.Context, source, target string) error {
	f.lock.Lock()
	defer f.lock.Unlock()

	f.record("tag %s %s", source, target)
	img, found := f.Images[normalize(source)]
	if !found {
		return errdefs.NotFound(fmt.Errorf("no such image: %s", source))
	}
	f.addImage(target, img)
	return nil
}

func (f *FakeAPIClient) ContainerCreate(_ context.Context, config *container.Config, hostConfig *container.HostConfig, _ *network.NetworkingConfig, platform *ocispec.Platform, name string) (container.CreateResponse, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	phase := ""
	if len(config.Cmd) > 0 {
		phase = path.Base(config.Cmd[0])
	}
	f.record("create %s", phase)
	if f.ErrContainerCreate != nil {
		return container.CreateResponse{}, f.ErrContainerCreate
	}

	f.nextID++
	c := &FakeContainer{
		ID:         fmt.Sprintf("%s-%d", phase, f.nextID),
		Phase:      phase,
		Config:     *config,
		HostConfig: *hostConfig,
		Platform:   platform,
		Copied:     map[string][]string{},
		Contents:   map[string]string{},
	}
	if f.Volumes == nil {
		f.Volumes = map[string]bool{}
	}
	for _, bind := range hostConfig.Binds {
		source := strings.SplitN(bind, ":", 2)[0]
		if strings.HasPrefix(source, "/") || len(source) == 1 {
			continue
		}
		if !f.Volumes[source] {
			c.MissingVolumes = append(c.MissingVolumes, source)
			f.Volumes[source] = true
		}
	}
	f.Containers = append(f.Containers, c)

	return container.CreateResponse{ID: c.ID}, nil
}

func (f *FakeAPIClient) CopyToContainer(_ context.Context, id, dstPath string, content io.Reader, _ container.CopyToContainerOptions) error {
	// Read outside of the lock, the content may be produced concurrently.
	var files []string
	contents := map[string]string{}
	tr := tar.NewReader(content)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		files = append(files, hdr.Name)
		if hdr.Typeflag == tar.TypeReg {
			var buf bytes.Buffer
			if _, err := io.Copy(&buf, tr); err != nil {
				return err
			}
			contents[path.Join(dstPath, hdr.Name)] = buf.String()
		}
	}

	f.lock.Lock()
	defer f.lock.Unlock()

	c, err := f.container(id)
	if err != nil {
		return err
	}
	f.record("copy %s %s", c.Phase, dstPath)
	if f.ErrCopy != nil {
		return f.ErrCopy
	}
	c.Copied[dstPath] = append(c.Copied[dstPath], files...)
	for k, v := range contents {
		c.Contents[k] = v
	}
	return nil
}

func (f *FakeAPIClient) ContainerStart(_ context.Context, id string, _ container.StartOptions) error {
	f.lock.Lock()
	defer f.lock.Unlock()

	c, err := f.container(id)
	if err != nil {
		return err
	}
	f.record("start %s", c.Phase)
	if f.ErrContainerStart != nil {
		return f.ErrContainerStart
	}
	c.Started = true
	return nil
}

func (f *FakeAPIClient) ContainerWait(ctx context.Context, id string, _ container.WaitCondition) (<-chan container.WaitResponse, <-chan error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	statusCh := make(chan container.WaitResponse, 1)
	errCh := make(chan error, 1)

	c, err := f.container(id)
	if err != nil {
		errCh <- err
		return statusCh, errCh
	}
	f.record("wait %s", c.Phase)

	if f.BlockWait {
		waiting := f.Waiting
		go func() {
			if waiting != nil {
				waiting <- c.Phase
			}
			<-ctx.Done()
			errCh <- ctx.Err()
		}()
		return statusCh, errCh
	}

	statusCh <- container.WaitResponse{StatusCode: f.ExitCodes[c.Phase]}
	return statusCh, errCh
}

func (f *FakeAPIClient) ContainerLogs(_ context.Context, id string, _ container.LogsOptions) (io.ReadCloser, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	c, err := f.container(id)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if logs := f.Logs[c.Phase]; logs != "" {
		if _, err := stdcopy.NewStdWriter(&buf, stdcopy.Stdout).Write([]byte(logs)); err != nil {
			return nil, err
		}
	}
	return io.NopCloser(&buf), nil
}

func (f *FakeAPIClient) ContainerStop(_ context.Context, id string, _ container.StopOptions) error {
	f.lock.Lock()
	defer f.lock.Unlock()

	c, err := f.container(id)
	if err != nil {
		return err
	}
	f.record("stop %s", c.Phase)
	c.Stopped = true
	return nil
}

func (f *FakeAPIClient) ContainerKill(_ context.Context, id, _ string) error {
	f.lock.Lock()
	defer f.lock.Unlock()

	c, err := f.container(id)
	if err != nil {
		return err
	}
	f.record("kill %s", c.Phase)
	c.Stopped = true
	return nil
}

func (f *FakeAPIClient) ContainerRemove(_ context.Context, id string, _ container.RemoveOptions) error {
	f.lock.Lock()
	defer f.lock.Unlock()

	c, err := f.container(id)
	if err != nil {
		return err
	}
	f.record("remove %s", c.Phase)
	c.Removed = true
	return nil
}

func (f *FakeAPIClient) VolumeCreate(_ context.Context, options volume.CreateOptions) (volume.Volume, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	f.record("volume-create %s", options.Name)
	if f.Volumes == nil {
		f.Volumes = map[string]bool{}
	}
	f.Volumes[options.Name] = true
	return volume.Volume{Name: options.Name, Labels: options.Labels}, nil
}

func (f *FakeAPIClient) VolumeInspect(_ context.Context, name string) (volume.Volume, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	if !f.Volumes[name] {
		return volume.Volume{}, errdefs.NotFound(fmt.Errorf("no such volume: %s", name))
	}
	return volume.Volume{Name: name}, nil
}

func (f *FakeAPIClient) VolumeRemove(_ context.Context, name string, _ bool) error {
	f.lock.Lock()
	defer f.lock.Unlock()

	f.record("volume-remove %s", name)
	if f.VolumeConflicts > 0 {
		f.VolumeConflicts--
		return errdefs.Conflict(fmt.Errorf("volume is in use: %s", name))
	}
	if f.ErrVolumeRemove != nil {
		return f.ErrVolumeRemove
	}
	if !f.Volumes[name] {
		return errdefs.NotFound(fmt.Errorf("no such volume: %s", name))
	}
	delete(f.Volumes, name)
	return nil
}

func (f *FakeAPIClient) container(id string) (*FakeContainer, error) {
	for _, c := range f.Containers {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, errdefs.NotFound(fmt.Errorf("no such container: %s", id))
}

func (f *FakeAPIClient) addImage(ref string, img *FakeImage) {
	if f.Images == nil {
		f.Images = map[string]*FakeImage{}
	}
	f.Images[normalize(ref)] = img
}

func (f *FakeAPIClient) record(format string, args ...interface{}) {
	f.Journal = append(f.Journal, fmt.Sprintf(format, args...))
}

func normalize(ref string) string {
	named, err := reference.ParseNormalizedNamed(ref)
	if err != nil {
		return ref
	}
	return reference.TagNameOnly(named).String()
}

func hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
