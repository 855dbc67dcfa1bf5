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

package constants

import (
	"github.com/sirupsen/logrus"
)

const (
	// DefaultLogLevel is the default global verbosity
	DefaultLogLevel = logrus.WarnLevel

	// DefaultBuilder is the builder image used when a request doesn't name one.
	DefaultBuilder = "paketobuildpacks/builder-noble-java-tiny:latest"

	DefaultConfigDir      = ".buildimage"
	DefaultConfigFile     = "config.yaml"
	DefaultProjectFile    = "buildimage.yaml"
	DefaultAppDirectory   = "/workspace"
	DefaultCreatorName    = "buildimage"
	DockerSocketPath      = "/var/run/docker.sock"
	DefaultDockerHost     = "unix://" + DockerSocketPath
	DefaultSecurityOption = "label=disable"

	// DefaultCreatorPlatformAPI is the lowest platform API for which the phases are collapsed into `creator`.
	DefaultCreatorPlatformAPI = "0.7"
	// LegacyPlatformAPI is the lowest platform API that uses the current phase binary names.
	LegacyPlatformAPI = "0.3"

	// LogTailLines is the number of trailing log lines kept with a phase failure.
	LogTailLines = 20
)

// Container filesystem layout shared by the lifecycle phases.
const (
	LifecycleDir   = "/cnb/lifecycle"
	BuildpacksDir  = "/cnb/buildpacks"
	LayersDir      = "/layers"
	CacheDir       = "/cache"
	LaunchCacheDir = "/launch-cache"
	PlatformDir    = "/platform"
	OrderPath      = PlatformDir + "/order.toml"
)

// Labels set on, or read from, images and containers.
var Labels = struct {
	Author             string
	AuthorValue        string
	Creator            string
	BuilderMetadata    string
	StackID            string
	BuildpackageMeta   string
	ManagedVolume      string
	ManagedVolumeValue string
}{
	Author:             "author",
	AuthorValue:        "buildimage",
	Creator:            "io.buildimage.creator",
	BuilderMetadata:    "io.buildpacks.builder.metadata",
	StackID:            "io.buildpacks.stack.id",
	BuildpackageMeta:   "io.buildpacks.buildpackage.metadata",
	ManagedVolume:      "io.buildimage.managed",
	ManagedVolumeValue: "true",
}

// Task identifies a step of a build, used to annotate log entries.
type Task string

const (
	Build     = Task("Build")
	Pull      = Task("Pull")
	Lifecycle = Task("Lifecycle")
	Publish   = Task("Publish")
	Cleanup   = Task("Cleanup")

	SubtaskIDNone = "-1"
)

// KnownTrustedBuilders are builders trusted with registry credentials and daemon access by default.
var KnownTrustedBuilders = []string{
	"paketobuildpacks/builder-noble-java-tiny",
	"paketobuildpacks/builder-jammy-java-tiny",
	"paketobuildpacks/builder-jammy-tiny",
	"paketobuildpacks/builder-jammy-base",
	"paketobuildpacks/builder-jammy-full",
	"paketobuildpacks/builder-jammy-buildpackless-tiny",
	"gcr.io/buildpacks/builder",
	"heroku/builder",
}
