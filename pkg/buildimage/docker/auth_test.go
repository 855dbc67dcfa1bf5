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
	"fmt"
	"testing"

	"github.com/docker/docker/api/types/registry"

	"github.com/GoogleContainerTools/buildimage/testutil"
)

type testAuthHelper map[string]registry.AuthConfig

func (t testAuthHelper) GetAuthConfig(registryHost string) (registry.AuthConfig, error) {
	auth, found := t[registryHost]
	if !found {
		return registry.AuthConfig{}, fmt.Errorf("no credentials for %s", registryHost)
	}
	return auth, nil
}

func TestResolveAuth(t *testing.T) {
	helper := testAuthHelper{
		"https://index.docker.io/v1/": {Username: "hub-user", Password: "hub-pass"},
		"registry.example.com":        {IdentityToken: "token"},
	}

	tests := []struct {
		description string
		image       string
		explicit    *registry.AuthConfig
		expected    registry.AuthConfig
		shouldErr   bool
	}{
		{
			description: "docker hub",
			image:       "demo/app",
			expected:    registry.AuthConfig{Username: "hub-user", Password: "hub-pass"},
		},
		{
			description: "private registry",
			image:       "registry.example.com/demo/app:1.0",
			expected:    registry.AuthConfig{IdentityToken: "token"},
		},
		{
			description: "explicit credentials win",
			image:       "registry.example.com/demo/app:1.0",
			explicit:    &registry.AuthConfig{Username: "user", Password: "secret", ServerAddress: "registry.example.com"},
			expected:    registry.AuthConfig{Username: "user", Password: "secret", ServerAddress: "registry.example.com"},
		},
		{
			description: "unknown registry",
			image:       "gcr.io/demo/app",
			shouldErr:   true,
		},
	}
	for _, test := range tests {
		testutil.Run(t, test.description, func(t *testutil.T) {
			t.Override(&DefaultAuthHelper, helper)

			auth, err := ResolveAuth(MustParseImageReference(test.image), test.explicit)

			t.CheckErrorAndDeepEqual(test.shouldErr, err, test.expected, auth)
		})
	}
}

func TestEncodedRegistryAuth(t *testing.T) {
	testutil.Run(t, "anonymous", func(t *testutil.T) {
		encoded, err := encodedRegistryAuth(registry.AuthConfig{})

		t.CheckNoError(err)
		t.CheckDeepEqual("", encoded)
	})

	testutil.Run(t, "credentials", func(t *testutil.T) {
		encoded, err := encodedRegistryAuth(registry.AuthConfig{Username: "user", Password: "secret"})
		t.CheckNoError(err)

		decoded, err := registry.DecodeAuthConfig(encoded)
		t.CheckNoError(err)
		t.CheckDeepEqual("user", decoded.Username)
		t.CheckDeepEqual("secret", decoded.Password)
	})
}
