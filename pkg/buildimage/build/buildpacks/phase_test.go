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
	"testing"

	"github.com/GoogleContainerTools/buildimage/pkg/buildimage/docker"
	"github.com/GoogleContainerTools/buildimage/testutil"
)

func TestPhaseApply(t *testing.T) {
	tests := []struct {
		description string
		phase       func() *Phase
		expected    docker.ContainerCreateOpts
		requiresApp bool
	}{
		{
			description: "bare",
			phase:       func() *Phase { return NewPhase("detector", false) },
			expected: docker.ContainerCreateOpts{
				Cmd:    []string{"/cnb/lifecycle/detector"},
				Labels: map[string]string{"author": "buildimage"},
			},
		},
		{
			description: "verbose",
			phase:       func() *Phase { return NewPhase("restorer", true).WithArgs("-a", "b") },
			expected: docker.ContainerCreateOpts{
				Cmd:    []string{"/cnb/lifecycle/restorer", "-log-level", "debug", "-a", "b"},
				Labels: map[string]string{"author": "buildimage"},
			},
		},
		{
			description: "app, caches and layers",
			phase: func() *Phase {
				return NewPhase("creator", false).
					WithApp("/workspace", docker.Binding{Source: "pack-app-1", Destination: "/workspace"}).
					WithBuildCache("/cache", docker.Binding{Source: "build-cache", Destination: "/cache"}).
					WithLaunchCache("/launch-cache", docker.Binding{Source: "launch-cache", Destination: "/launch-cache"}).
					WithLayers("/layers", docker.Binding{Source: "pack-layers-1", Destination: "/layers"}).
					WithPlatform("/platform").
					WithImageName(docker.MustParseImageReference("demo/app"))
			},
			expected: docker.ContainerCreateOpts{
				Cmd: []string{"/cnb/lifecycle/creator",
					"-app", "/workspace",
					"-cache-dir", "/cache",
					"-launch-cache", "/launch-cache",
					"-layers", "/layers",
					"-platform", "/platform",
					"docker.io/demo/app:latest"},
				Labels: map[string]string{"author": "buildimage"},
				Binds:  []string{"pack-app-1:/workspace", "build-cache:/cache", "launch-cache:/launch-cache", "pack-layers-1:/layers"},
			},
			requiresApp: true,
		},
		{
			description: "daemon access",
			phase: func() *Phase {
				return NewPhase("exporter", false).
					WithDaemonAccess().
					WithBinding(docker.Binding{Source: "/var/run/docker.sock", Destination: "/var/run/docker.sock"}).
					WithRunImage(docker.MustParseImageReference("paketobuildpacks/run:base")).
					WithProcessType("web").
					WithSkipRestore().
					WithOrder("/platform/order.toml")
			},
			expected: docker.ContainerCreateOpts{
				User: "root",
				Cmd: []string{"/cnb/lifecycle/exporter", "-daemon",
					"-run-image", "docker.io/paketobuildpacks/run:base",
					"-process-type", "web",
					"-skip-restore",
					"-order", "/platform/order.toml"},
				Labels: map[string]string{"author": "buildimage"},
				Binds:  []string{"/var/run/docker.sock:/var/run/docker.sock"},
			},
		},
		{
			description: "env, network and security options",
			phase: func() *Phase {
				return NewPhase("build", false).
					WithEnv("SOURCE_DATE_EPOCH", "315532801").
					WithEnv("CNB_PLATFORM_API", "0.2").
					WithNetworkMode("host").
					WithSecurityOption("label=disable").
					WithSecurityOption("seccomp=unconfined")
			},
			expected: docker.ContainerCreateOpts{
				Cmd:         []string{"/cnb/lifecycle/build"},
				Labels:      map[string]string{"author": "buildimage"},
				Env:         []string{"CNB_PLATFORM_API=0.2", "SOURCE_DATE_EPOCH=315532801"},
				NetworkMode: "host",
				SecurityOpt: []string{"label=disable", "seccomp=unconfined"},
			},
		},
	}
	for _, test := range tests {
		testutil.Run(t, test.description, func(t *testutil.T) {
			phase := test.phase()

			var opts docker.ContainerCreateOpts
			phase.Apply(&opts)

			t.CheckDeepEqual(test.expected, opts)
			t.CheckDeepEqual(test.requiresApp, phase.RequiresApp())

			// Applying twice renders the same configuration.
			var again docker.ContainerCreateOpts
			phase.Apply(&again)
			t.CheckDeepEqual(opts, again)
		})
	}
}

func TestUnknownPhase(t *testing.T) {
	testutil.Run(t, "", func(t *testutil.T) {
		defer func() {
			t.CheckTrue(recover() != nil)
		}()

		NewPhase("rebaser", false)
		t.Fatal("expected a panic")
	})
}
