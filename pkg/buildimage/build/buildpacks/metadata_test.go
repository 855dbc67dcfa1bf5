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

	"github.com/GoogleContainerTools/buildimage/pkg/buildimage/archive"
	"github.com/GoogleContainerTools/buildimage/pkg/buildimage/docker"
	sErrors "github.com/GoogleContainerTools/buildimage/pkg/buildimage/errors"
	"github.com/GoogleContainerTools/buildimage/testutil"
)

func TestNewBuilderMetadata(t *testing.T) {
	builder := docker.MustParseImageReference(trustedBuilder)

	testutil.Run(t, "valid", func(t *testutil.T) {
		md, err := NewBuilderMetadata(builder, docker.ImageMetadata{Labels: builderLabels("0.9", "0.10"), Env: builderEnv})

		t.CheckNoError(err)
		t.CheckDeepEqual("test builder", md.Description)
		t.CheckDeepEqual("0.20.4", md.Lifecycle.Version)
		t.CheckDeepEqual(runImageName, md.RunImage())
		t.CheckDeepEqual([]string{"0.9", "0.10"}, md.PlatformAPIs())
		t.CheckDeepEqual("io.buildpacks.stacks.noble", md.StackID)
		t.CheckDeepEqual(archive.Owner{UID: 1002, GID: 1000}, md.Owner)
	})

	tests := []struct {
		description string
		labels      map[string]string
		env         []string
	}{
		{
			description: "not a builder",
			labels:      map[string]string{"maintainer": "me"},
			env:         builderEnv,
		},
		{
			description: "invalid metadata",
			labels:      map[string]string{"io.buildpacks.builder.metadata": "{"},
			env:         builderEnv,
		},
		{
			description: "missing user id",
			labels:      builderLabels("0.9"),
			env:         []string{"CNB_GROUP_ID=1000"},
		},
		{
			description: "invalid group id",
			labels:      builderLabels("0.9"),
			env:         []string{"CNB_USER_ID=1002", "CNB_GROUP_ID=cnb"},
		},
	}
	for _, test := range tests {
		testutil.Run(t, test.description, func(t *testutil.T) {
			_, err := NewBuilderMetadata(builder, docker.ImageMetadata{Labels: test.labels, Env: test.env})

			t.CheckDeepEqual(sErrors.Config, sErrors.StageOf(err))
		})
	}
}

func TestBuilderMetadataFallbacks(t *testing.T) {
	testutil.Run(t, "", func(t *testutil.T) {
		labels := map[string]string{
			"io.buildpacks.builder.metadata": `{"images":[{"image":"example.com/run:1"}],"lifecycle":{"version":"0.9.0","api":{"platform":"0.4"}}}`,
		}

		md, err := NewBuilderMetadata(docker.MustParseImageReference(untrustedBuilder), docker.ImageMetadata{Labels: labels, Env: builderEnv})

		t.CheckNoError(err)
		t.CheckDeepEqual("example.com/run:1", md.RunImage())
		t.CheckDeepEqual([]string{"0.4"}, md.PlatformAPIs())
	})
}

func TestBuilderMetadataBuildpack(t *testing.T) {
	md, err := NewBuilderMetadata(docker.MustParseImageReference(trustedBuilder), docker.ImageMetadata{Labels: builderLabels("0.9"), Env: builderEnv})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		id, version string
		found       bool
	}{
		{id: "paketo-buildpacks/java", found: true},
		{id: "paketo-buildpacks/java", version: "18.0.0", found: true},
		{id: "paketo-buildpacks/java", version: "17.0.0"},
		{id: "paketo-buildpacks/go"},
	}
	for _, test := range tests {
		testutil.Run(t, test.id+"@"+test.version, func(t *testutil.T) {
			_, found := md.Buildpack(test.id, test.version)

			t.CheckDeepEqual(test.found, found)
		})
	}
}

func TestFindLatestSupported(t *testing.T) {
	tests := []struct {
		description string
		builderAPIs []string
		supported   []string
		expected    string
		shouldErr   bool
	}{
		{
			description: "highest common version",
			builderAPIs: []string{"0.3", "0.9", "0.10", "0.14"},
			supported:   SupportedPlatformAPIs,
			expected:    "0.10",
		},
		{
			description: "unordered",
			builderAPIs: []string{"0.12", "0.2", "0.11"},
			supported:   []string{"0.11", "0.2"},
			expected:    "0.11",
		},
		{
			description: "ignores malformed versions",
			builderAPIs: []string{"latest", "0.8"},
			supported:   SupportedPlatformAPIs,
			expected:    "0.8",
		},
		{
			description: "nothing in common",
			builderAPIs: []string{"0.1", "1.0"},
			supported:   SupportedPlatformAPIs,
			shouldErr:   true,
		},
		{
			description: "empty",
			supported:   SupportedPlatformAPIs,
			shouldErr:   true,
		},
	}
	for _, test := range tests {
		testutil.Run(t, test.description, func(t *testutil.T) {
			v, err := FindLatestSupported(test.builderAPIs, test.supported)

			t.CheckError(test.shouldErr, err)
			if !test.shouldErr {
				t.CheckDeepEqual(test.expected, v.String())
			}
		})
	}
}
