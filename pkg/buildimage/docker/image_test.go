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
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/docker/docker/api/types/registry"

	"github.com/GoogleContainerTools/buildimage/testutil"
)

func TestPush(t *testing.T) {
	tests := []struct {
		description    string
		ref            string
		pushErr        error
		expectedDigest string
		shouldErr      bool
	}{
		{
			description:    "digest from aux message",
			ref:            "docker.io/demo/app:1.0",
			expectedDigest: "sha256:",
		},
		{
			description: "push failure",
			ref:         "registry.example.com/demo/app:1.0",
			pushErr:     fmt.Errorf("unauthorized"),
			shouldErr:   true,
		},
	}
	for _, test := range tests {
		testutil.Run(t, test.description, func(t *testutil.T) {
			api := (&testutil.FakeAPIClient{PushErrors: map[string]error{test.ref: test.pushErr}}).AddImage(test.ref, nil)
			localDocker := NewLocalDaemon(api)

			digest, err := localDocker.Push(context.Background(), &bytes.Buffer{}, test.ref, registry.AuthConfig{Username: "user", Password: "secret"})

			t.CheckError(test.shouldErr, err)
			if !test.shouldErr {
				t.CheckContains(test.expectedDigest, digest)
				t.CheckDeepEqual([]string{test.ref}, api.Pushed)
			}
		})
	}
}

func TestPull(t *testing.T) {
	testutil.Run(t, "pull with platform", func(t *testutil.T) {
		api := &testutil.FakeAPIClient{}
		localDocker := NewLocalDaemon(api)
		var out bytes.Buffer

		platform, err := ParsePlatform("linux/arm64")
		t.CheckNoError(err)
		err = localDocker.Pull(context.Background(), &out, "paketobuildpacks/builder-noble-java-tiny", platform, registry.AuthConfig{})

		t.CheckNoError(err)
		t.CheckDeepEqual([]string{"paketobuildpacks/builder-noble-java-tiny"}, api.Pulled)
		t.CheckContains("Pulling from paketobuildpacks/builder-noble-java-tiny", out.String())
		t.CheckTrue(api.HasImage("paketobuildpacks/builder-noble-java-tiny"))
	})

	testutil.Run(t, "pull failure", func(t *testutil.T) {
		api := &testutil.FakeAPIClient{ErrImagePull: fmt.Errorf("manifest unknown")}

		err := NewLocalDaemon(api).Pull(context.Background(), &bytes.Buffer{}, "demo/missing", nil, registry.AuthConfig{})

		t.CheckErrorContains("manifest unknown", err)
	})
}

func TestImageExists(t *testing.T) {
	tests := []struct {
		description string
		api         *testutil.FakeAPIClient
		expected    bool
		shouldErr   bool
	}{
		{
			description: "present",
			api:         (&testutil.FakeAPIClient{}).AddImage("demo/app:1.0", nil),
			expected:    true,
		},
		{
			description: "missing",
			api:         &testutil.FakeAPIClient{},
			expected:    false,
		},
		{
			description: "daemon error",
			api:         &testutil.FakeAPIClient{ErrImageInspect: fmt.Errorf("permission denied")},
			shouldErr:   true,
		},
	}
	for _, test := range tests {
		testutil.Run(t, test.description, func(t *testutil.T) {
			exists, err := NewLocalDaemon(test.api).ImageExists(context.Background(), "docker.io/demo/app:1.0")

			t.CheckErrorAndDeepEqual(test.shouldErr, err, test.expected, exists)
		})
	}
}

func TestImageInspect(t *testing.T) {
	testutil.Run(t, "", func(t *testutil.T) {
		api := (&testutil.FakeAPIClient{}).AddImage("builder", map[string]string{"io.buildpacks.stack.id": "io.buildpacks.stacks.noble"}, "CNB_USER_ID=1002")

		md, err := NewLocalDaemon(api).ImageInspect(context.Background(), "builder")

		t.CheckNoError(err)
		t.CheckDeepEqual(map[string]string{"io.buildpacks.stack.id": "io.buildpacks.stacks.noble"}, md.Labels)
		t.CheckDeepEqual([]string{"CNB_USER_ID=1002"}, md.Env)
		t.CheckDeepEqual("linux", md.OS)
	})
}

func TestContainerRun(t *testing.T) {
	testutil.Run(t, "create, start, logs and wait", func(t *testutil.T) {
		api := &testutil.FakeAPIClient{
			ExitCodes: map[string]int64{"builder": 51},
			Logs:      map[string]string{"builder": "ERROR: No buildpack groups passed detection.\n"},
		}
		localDocker := NewLocalDaemon(api)
		ctx := context.Background()

		id, err := localDocker.ContainerCreate(ctx, ContainerCreateOpts{
			Image: "builder",
			Cmd:   []string{"/cnb/lifecycle/builder"},
			Binds: []string{"pack-layers-abc:/layers"},
		})
		t.CheckNoError(err)
		t.CheckNoError(localDocker.ContainerStart(ctx, id))

		var out bytes.Buffer
		t.CheckNoError(localDocker.ContainerLogs(ctx, id, &out, &out))
		code, err := localDocker.ContainerWait(ctx, id)
		t.CheckNoError(err)
		t.CheckNoError(localDocker.Remove(ctx, id))

		t.CheckDeepEqual(int64(51), code)
		t.CheckDeepEqual("ERROR: No buildpack groups passed detection.\n", out.String())
		t.CheckDeepEqual([]string{"create builder", "start builder", "wait builder", "remove builder"}, api.Journal)
		t.CheckTrue(api.HasVolume("pack-layers-abc"))
		t.CheckDeepEqual(0, len(api.LeakedContainers()))
	})

	testutil.Run(t, "cancelled wait", func(t *testutil.T) {
		api := &testutil.FakeAPIClient{BlockWait: true}
		localDocker := NewLocalDaemon(api)
		ctx, cancel := context.WithCancel(context.Background())

		id, err := localDocker.ContainerCreate(ctx, ContainerCreateOpts{Image: "builder", Cmd: []string{"/cnb/lifecycle/creator"}})
		t.CheckNoError(err)
		cancel()
		_, err = localDocker.ContainerWait(ctx, id)

		t.CheckErrorContains("context canceled", err)
		t.CheckNoError(localDocker.Stop(context.Background(), id, time.Second))
		t.CheckTrue(api.Container("creator").Stopped)
	})
}

func TestVolumes(t *testing.T) {
	testutil.Run(t, "", func(t *testutil.T) {
		api := &testutil.FakeAPIClient{}
		localDocker := NewLocalDaemon(api)
		ctx := context.Background()

		t.CheckNoError(localDocker.VolumeCreate(ctx, "pack-platform-abc", map[string]string{"io.buildimage.managed": "true"}))
		exists, err := localDocker.VolumeExists(ctx, "pack-platform-abc")
		t.CheckNoError(err)
		t.CheckTrue(exists)

		t.CheckNoError(localDocker.VolumeRemove(ctx, "pack-platform-abc"))
		exists, err = localDocker.VolumeExists(ctx, "pack-platform-abc")
		t.CheckNoError(err)
		t.CheckFalse(exists)

		// missing volumes are ignored
		t.CheckNoError(localDocker.VolumeRemove(ctx, "pack-platform-abc"))
	})
}
