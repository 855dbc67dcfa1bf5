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
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/registry"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"github.com/docker/docker/pkg/jsonmessage"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"golang.org/x/term"

	"github.com/GoogleContainerTools/buildimage/pkg/buildimage/output/log"
)

// ContainerCreateOpts is the rendered configuration of a container.
type ContainerCreateOpts struct {
	Name        string
	Image       string
	Cmd         []string
	User        string
	Env         []string
	Labels      map[string]string
	Binds       []string
	NetworkMode string
	SecurityOpt []string
	Platform    *ocispec.Platform
}

// ImageMetadata is what the build needs to know about a local image.
type ImageMetadata struct {
	ID           string
	Labels       map[string]string
	Env          []string
	OS           string
	Architecture string
}

// LocalDaemon talks to a local Docker API.
type LocalDaemon interface {
	Close() error
	Host() string
	Pull(ctx context.Context, out io.Writer, ref string, platform *ocispec.Platform, auth registry.AuthConfig) error
	Push(ctx context.Context, out io.Writer, ref string, auth registry.AuthConfig) (string, error)
	Tag(ctx context.Context, image, ref string) error
	ImageInspect(ctx context.Context, ref string) (ImageMetadata, error)
	ImageExists(ctx context.Context, ref string) (bool, error)
	ContainerCreate(ctx context.Context, opts ContainerCreateOpts) (string, error)
	CopyToContainer(ctx context.Context, id, dest string, content io.Reader) error
	ContainerStart(ctx context.Context, id string) error
	ContainerWait(ctx context.Context, id string) (int64, error)
	ContainerLogs(ctx context.Context, id string, stdout, stderr io.Writer) error
	Stop(ctx context.Context, id string, timeout time.Duration) error
	Remove(ctx context.Context, id string) error
	VolumeCreate(ctx context.Context, name string, labels map[string]string) error
	VolumeExists(ctx context.Context, name string) (bool, error)
	VolumeRemove(ctx context.Context, name string) error
}

// PushResult gives the information on an image that has been pushed.
type PushResult struct {
	Digest string
}

type localDaemon struct {
	apiClient client.CommonAPIClient
}

// NewLocalDaemon creates a new LocalDaemon.
func NewLocalDaemon(apiClient client.CommonAPIClient) LocalDaemon {
	return &localDaemon{
		apiClient: apiClient,
	}
}

// Close closes the connection with the local daemon.
func (l *localDaemon) Close() error {
	return l.apiClient.Close()
}

// Host is the address of the daemon, eg. `unix:///var/run/docker.sock`.
func (l *localDaemon) Host() string {
	return l.apiClient.DaemonHost()
}

func streamDockerMessages(dst io.Writer, src io.Reader, auxCallback func(jsonmessage.JSONMessage)) error {
	termFd, isTerm := isTerminal(dst)
	return jsonmessage.DisplayJSONMessagesStream(src, dst, termFd, isTerm, auxCallback)
}

func isTerminal(w io.Writer) (uintptr, bool) {
	type descriptor interface {
		Fd() uintptr
	}

	if f, ok := w.(descriptor); ok {
		termFd := f.Fd()
		return termFd, term.IsTerminal(int(termFd))
	}
	return 0, false
}

// Pull pulls an image reference from a registry.
func (l *localDaemon) Pull(ctx context.Context, out io.Writer, ref string, platform *ocispec.Platform, auth registry.AuthConfig) error {
	registryAuth, err := encodedRegistryAuth(auth)
	if err != nil {
		return fmt.Errorf("encoding registry credentials: %w", err)
	}

	rc, err := l.apiClient.ImagePull(ctx, ref, image.PullOptions{
		RegistryAuth: registryAuth,
		Platform:     FormatPlatform(platform),
	})
	if err != nil {
		return fmt.Errorf("pulling image from repository: %w", err)
	}
	defer rc.Close()

	return streamDockerMessages(out, rc, nil)
}

// Push pushes an image reference to a registry. Returns the image digest.
func (l *localDaemon) Push(ctx context.Context, out io.Writer, ref string, auth registry.AuthConfig) (string, error) {
	registryAuth, err := encodedRegistryAuth(auth)
	if err != nil {
		return "", fmt.Errorf("encoding registry credentials: %w", err)
	}

	rc, err := l.apiClient.ImagePush(ctx, ref, image.PushOptions{
		RegistryAuth: registryAuth,
	})
	if err != nil {
		return "", fmt.Errorf("pushing image %q: %w", ref, err)
	}
	defer rc.Close()

	var digest string
	auxCallback := func(msg jsonmessage.JSONMessage) {
		if msg.Aux == nil {
			return
		}

		var result PushResult
		if err := json.Unmarshal(*msg.Aux, &result); err != nil {
			log.Entry(ctx).Debug("Unable to parse push output:", err)
			return
		}
		digest = result.Digest
	}

	if err := streamDockerMessages(out, rc, auxCallback); err != nil {
		return "", fmt.Errorf("pushing image %q: %w", ref, err)
	}

	if digest == "" {
		// Maybe this version of Docker doesn't return the digest of the image
		// that has been pushed.
		digest, err = RemoteDigest(ctx, ref, auth)
		if err != nil {
			return "", fmt.Errorf("getting digest: %w", err)
		}
	}

	return digest, nil
}

// Tag adds a tag to an image.
func (l *localDaemon) Tag(ctx context.Context, image, ref string) error {
	return l.apiClient.ImageTag(ctx, image, ref)
}

// ImageInspect returns the id, labels and environment of a local image.
func (l *localDaemon) ImageInspect(ctx context.Context, ref string) (ImageMetadata, error) {
	inspect, _, err := l.apiClient.ImageInspectWithRaw(ctx, ref)
	if err != nil {
		return ImageMetadata{}, err
	}

	md := ImageMetadata{
		ID:           inspect.ID,
		OS:           inspect.Os,
		Architecture: inspect.Architecture,
	}
	if inspect.Config != nil {
		md.Labels = inspect.Config.Labels
		md.Env = inspect.Config.Env
	}
	return md, nil
}

// ImageExists returns false, without an error, for images that are not present locally.
func (l *localDaemon) ImageExists(ctx context.Context, ref string) (bool, error) {
	_, _, err := l.apiClient.ImageInspectWithRaw(ctx, ref)
	switch {
	case err == nil:
		return true, nil
	case errdefs.IsNotFound(err):
		return false, nil
	default:
		return false, err
	}
}

