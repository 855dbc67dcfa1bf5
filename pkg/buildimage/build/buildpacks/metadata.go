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
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/buildpacks/lifecycle/api"

	"github.com/GoogleContainerTools/buildimage/pkg/buildimage/archive"
	"github.com/GoogleContainerTools/buildimage/pkg/buildimage/constants"
	"github.com/GoogleContainerTools/buildimage/pkg/buildimage/docker"
	sErrors "github.com/GoogleContainerTools/buildimage/pkg/buildimage/errors"
)

// SupportedPlatformAPIs are the platform APIs this tool can drive.
var SupportedPlatformAPIs = []string{"0.2", "0.3", "0.4", "0.5", "0.6", "0.7", "0.8", "0.9", "0.10", "0.11", "0.12", "0.13"}

type runImageMetadata struct {
	Image   string   `json:"image"`
	Mirrors []string `json:"mirrors"`
}

type stackMetadata struct {
	RunImage runImageMetadata `json:"runImage"`
}

type apiSet struct {
	Deprecated []string `json:"deprecated"`
	Supported  []string `json:"supported"`
}

type lifecycleMetadata struct {
	Version string `json:"version"`
	// Deprecated: builders now list every API in APIs.
	API struct {
		Buildpack string `json:"buildpack"`
		Platform  string `json:"platform"`
	} `json:"api"`
	APIs struct {
		Buildpack apiSet `json:"buildpack"`
		Platform  apiSet `json:"platform"`
	} `json:"apis"`
}

// BuildpackInfo identifies a buildpack.
type BuildpackInfo struct {
	ID      string `json:"id" toml:"id"`
	Version string `json:"version,omitempty" toml:"version,omitempty"`
}

type creatorMetadata struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// BuilderMetadata is what a builder image tells about itself, through its labels and environment.
type BuilderMetadata struct {
	Description string             `json:"description"`
	Stack       stackMetadata      `json:"stack"`
	Images      []runImageMetadata `json:"images"`
	Lifecycle   lifecycleMetadata  `json:"lifecycle"`
	Buildpacks  []BuildpackInfo    `json:"buildpacks"`
	CreatedBy   creatorMetadata    `json:"createdBy"`

	StackID string        `json:"-"`
	Owner   archive.Owner `json:"-"`
}

// NewBuilderMetadata reads the metadata of a builder image.
func NewBuilderMetadata(builder docker.ImageReference, image docker.ImageMetadata) (BuilderMetadata, error) {
	label, found := image.Labels[constants.Labels.BuilderMetadata]
	if !found {
		return BuilderMetadata{}, sErrors.NewConfigError("builder", "image %q is not a builder: label %q is missing", builder, constants.Labels.BuilderMetadata)
	}

	var md BuilderMetadata
	if err := json.Unmarshal([]byte(label), &md); err != nil {
		return BuilderMetadata{}, sErrors.NewConfigError("builder", "unable to decode the metadata of %q: %v", builder, err)
	}
	md.StackID = image.Labels[constants.Labels.StackID]

	uid, err := envInt(image.Env, "CNB_USER_ID")
	if err != nil {
		return BuilderMetadata{}, sErrors.WrapConfigError("builder", err)
	}
	gid, err := envInt(image.Env, "CNB_GROUP_ID")
	if err != nil {
		return BuilderMetadata{}, sErrors.WrapConfigError("builder", err)
	}
	md.Owner = archive.Owner{UID: uid, GID: gid}

	return md, nil
}

func envInt(env []string, name string) (int, error) {
	for _, e := range env {
		k, v, _ := strings.Cut(e, "=")
		if k != name {
			continue
		}
		i, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("builder environment variable %s=%q is not a number", name, v)
		}
		return i, nil
	}
	return 0, fmt.Errorf("builder environment variable %s is missing", name)
}

// RunImage is the run image advertised by the builder.
func (md BuilderMetadata) RunImage() string {
	if md.Stack.RunImage.Image != "" {
		return md.Stack.RunImage.Image
	}
	if len(md.Images) > 0 {
		return md.Images[0].Image
	}
	return ""
}

// PlatformAPIs lists the platform APIs supported by the builder's lifecycle.
func (md BuilderMetadata) PlatformAPIs() []string {
	apis := append(append([]string{}, md.Lifecycle.APIs.Platform.Deprecated...), md.Lifecycle.APIs.Platform.Supported...)
	if len(apis) == 0 && md.Lifecycle.API.Platform != "" {
		apis = []string{md.Lifecycle.API.Platform}
	}
	return apis
}

// Buildpack looks up a buildpack bundled with the builder. An empty version matches any version.
func (md BuilderMetadata) Buildpack(id, version string) (BuildpackInfo, bool) {
	for _, bp := range md.Buildpacks {
		if bp.ID == id && (version == "" || bp.Version == version) {
			return bp, true
		}
	}
	return BuildpackInfo{}, false
}

// FindLatestSupported returns the highest platform API known to both sides.
func FindLatestSupported(builderAPIs, supported []string) (*api.Version, error) {
	known := map[string]bool{}
	for _, s := range supported {
		v, err := api.NewVersion(s)
		if err != nil {
			return nil, fmt.Errorf("invalid platform API %q: %w", s, err)
		}
		known[v.String()] = true
	}

	var latest *api.Version
	for _, s := range builderAPIs {
		v, err := api.NewVersion(s)
		if err != nil {
			continue
		}
		if !known[v.String()] {
			continue
		}
		if latest == nil || latest.LessThan(v.String()) {
			latest = v
		}
	}

	if latest == nil {
		return nil, sErrors.NewConfigError("builder", "unable to find a platform API supported by both the builder %v and buildimage %v", builderAPIs, supported)
	}
	return latest, nil
}
