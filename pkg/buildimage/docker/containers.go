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
	"fmt"
	"io"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/volume"
	"github.com/docker/docker/errdefs"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/GoogleContainerTools/buildimage/pkg/buildimage/output/log"
)

// ContainerCreate creates, but doesn't start, a container.
func (l *localDaemon) ContainerCreate(ctx context.Context, opts ContainerCreateOpts) (string, error) {
	cfg := &container.Config{
		Image:  opts.Image,
		Cmd:    opts.Cmd,
		User:   opts.User,
		Env:    opts.Env,
		Labels: opts.Labels,
	}
	hCfg := &container.HostConfig{
		Binds:       opts.Binds,
		NetworkMode: container.NetworkMode(opts.NetworkMode),
		SecurityOpt: opts.SecurityOpt,
	}

	c, err := l.apiClient.ContainerCreate(ctx, cfg, hCfg, nil, opts.Platform, opts.Name)
	if err != nil {
		return "", fmt.Errorf("creating container: %w", err)
	}
	for _, w := range c.Warnings {
		log.Entry(ctx).Warn(w)
	}
	return c.ID, nil
}

// CopyToContainer extracts a tar stream at the given path of a container.
func (l *localDaemon) CopyToContainer(ctx context.Context, id, dest string, content io.Reader) error {
	if err := l.apiClient.CopyToContainer(ctx, id, dest, content, container.CopyToContainerOptions{}); err != nil {
		return fmt.Errorf("copying to container %s:%s: %w", id, dest, err)
	}
	return nil
}

func (l *localDaemon) ContainerStart(ctx context.Context, id string) error {
	if err := l.apiClient.ContainerStart(ctx, id, container.StartOptions{}); err != nil {
		return fmt.Errorf("starting container: %w", err)
	}
	return nil
}

// ContainerWait blocks until the container exits and returns its status code.
func (l *localDaemon) ContainerWait(ctx context.Context, id string) (int64, error) {
	statusCh, errCh := l.apiClient.ContainerWait(ctx, id, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		return -1, fmt.Errorf("waiting for container: %w", err)
	case status := <-statusCh:
		if status.Error != nil && status.Error.Message != "" {
			return -1, fmt.Errorf("waiting for container: %s", status.Error.Message)
		}
		return status.StatusCode, nil
	}
}

// ContainerLogs follows the output of a container until it exits.
func (l *localDaemon) ContainerLogs(ctx context.Context, id string, stdout, stderr io.Writer) error {
	logs, err := l.apiClient.ContainerLogs(ctx, id, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     true,
	})
	if err != nil {
		return fmt.Errorf("reading container logs: %w", err)
	}
	defer logs.Close()

	if _, err := stdcopy.StdCopy(stdout, stderr, logs); err != nil {
		return fmt.Errorf("reading container logs: %w", err)
	}
	return nil
}

// Stop stops a running container, killing it if it doesn't stop in time.
func (l *localDaemon) Stop(ctx context.Context, id string, timeout time.Duration) error {
	seconds := int(timeout.Seconds())
	if err := l.apiClient.ContainerStop(ctx, id, container.StopOptions{Timeout: &seconds}); err != nil {
		log.Entry(ctx).Debugf("unable to stop running container: %s", err.Error())
		if err := l.apiClient.ContainerKill(ctx, id, "SIGKILL"); err != nil && !errdefs.IsNotFound(err) {
			return fmt.Errorf("unable to kill container: %w", err)
		}
	}
	return nil
}

// Remove force removes a container. Already removed containers are ignored.
func (l *localDaemon) Remove(ctx context.Context, id string) error {
	if err := l.apiClient.ContainerRemove(ctx, id, container.RemoveOptions{Force: true}); err != nil && !errdefs.IsNotFound(err) {
		log.Entry(ctx).Debugf("unable to remove container: %s", err.Error())
		return fmt.Errorf("unable to remove container: %w", err)
	}
	return nil
}

func (l *localDaemon) VolumeCreate(ctx context.Context, name string, labels map[string]string) error {
	if _, err := l.apiClient.VolumeCreate(ctx, volume.CreateOptions{Name: name, Labels: labels}); err != nil {
		return fmt.Errorf("creating volume %q: %w", name, err)
	}
	return nil
}

func (l *localDaemon) VolumeExists(ctx context.Context, name string) (bool, error) {
	_, err := l.apiClient.VolumeInspect(ctx, name)
	switch {
	case err == nil:
		return true, nil
	case errdefs.IsNotFound(err):
		return false, nil
	default:
		return false, fmt.Errorf("inspecting volume %q: %w", name, err)
	}
}

// VolumeRemove removes a volume. Missing volumes are ignored.
func (l *localDaemon) VolumeRemove(ctx context.Context, name string) error {
	if err := l.apiClient.VolumeRemove(ctx, name, false); err != nil && !errdefs.IsNotFound(err) {
		return fmt.Errorf("removing volume %q: %w", name, err)
	}
	return nil
}
