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
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/GoogleContainerTools/buildimage/pkg/buildimage/docker"
)

const (
	volumePrefix = "volume:"
	bindPrefix   = "bind:"
)

// Cache is state persisted between builds, either in a named volume or in a host directory.
type Cache struct {
	volume string
	bind   string
}

// VolumeCache is a cache stored in a named docker volume.
func VolumeCache(name string) Cache {
	return Cache{volume: name}
}

// BindCache is a cache stored in a host directory.
func BindCache(source string) Cache {
	return Cache{bind: source}
}

// ParseCache parses `volume:<name>` or `bind:<path>`.
func ParseCache(s string) (Cache, error) {
	switch {
	case strings.HasPrefix(s, volumePrefix) && len(s) > len(volumePrefix):
		return VolumeCache(strings.TrimPrefix(s, volumePrefix)), nil
	case strings.HasPrefix(s, bindPrefix) && len(s) > len(bindPrefix):
		return BindCache(strings.TrimPrefix(s, bindPrefix)), nil
	default:
		return Cache{}, fmt.Errorf("cache %q must be in the form volume:<name> or bind:<path>", s)
	}
}

func (c Cache) IsZero() bool {
	return c == Cache{}
}

func (c Cache) IsVolume() bool {
	return c.volume != ""
}

// Source is the volume name or the host directory.
func (c Cache) Source() string {
	if c.IsVolume() {
		return c.volume
	}
	return c.bind
}

func (c Cache) String() string {
	switch {
	case c.IsZero():
		return ""
	case c.IsVolume():
		return volumePrefix + c.volume
	default:
		return bindPrefix + c.bind
	}
}

// Binding mounts the cache at the given container path.
func (c Cache) Binding(destination string) docker.Binding {
	return docker.Binding{Source: c.Source(), Destination: destination}
}

// Delete removes the content of the cache and reports whether there was one.
// A bind cache is a directory of the host running this process.
func (c Cache) Delete(ctx context.Context, daemon docker.LocalDaemon) (bool, error) {
	if c.IsVolume() {
		exists, err := daemon.VolumeExists(ctx, c.volume)
		if err != nil || !exists {
			return false, err
		}
		return true, daemon.VolumeRemove(ctx, c.volume)
	}

	if _, err := os.Stat(c.bind); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, os.RemoveAll(c.bind)
}

// withSuffix derives the name of a companion cache, eg. the `-app` volume of a build workspace.
func (c Cache) withSuffix(suffix string) Cache {
	if c.IsVolume() {
		return VolumeCache(c.volume + suffix)
	}
	return BindCache(c.bind + suffix)
}

// defaultCache names the caches of an image, so that concurrent builds of different images never share them.
func defaultCache(image docker.ImageReference, kind string) Cache {
	sum := sha256.Sum256([]byte(image.Name()))
	return VolumeCache(fmt.Sprintf("pack-cache-%s.%s", hex.EncodeToString(sum[:])[:12], kind))
}
