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

	"github.com/docker/cli/cli/config"
	"github.com/docker/docker/api/types/registry"
	dockerregistry "github.com/docker/docker/registry"
)

// DefaultAuthHelper is exposed so that other packages can override it for testing
var DefaultAuthHelper AuthConfigHelper = credsHelper{}

// AuthConfigHelper looks up the credentials of a registry.
// It exists for testing purposes since the docker config can shell out
// to native credential helpers.
type AuthConfigHelper interface {
	GetAuthConfig(registry string) (registry.AuthConfig, error)
}

type credsHelper struct{}

func (credsHelper) GetAuthConfig(registryHost string) (registry.AuthConfig, error) {
	cf, err := config.Load(config.Dir())
	if err != nil {
		return registry.AuthConfig{}, fmt.Errorf("docker config: %w", err)
	}

	auth, err := cf.GetAuthConfig(registryHost)
	if err != nil {
		return registry.AuthConfig{}, err
	}

	return registry.AuthConfig{
		Username:      auth.Username,
		Password:      auth.Password,
		Auth:          auth.Auth,
		Email:         auth.Email,
		ServerAddress: auth.ServerAddress,
		IdentityToken: auth.IdentityToken,
		RegistryToken: auth.RegistryToken,
	}, nil
}

// ResolveAuth returns the explicit credentials when given, or the user's
// docker credentials for the registry hosting the image.
func ResolveAuth(ref ImageReference, explicit *registry.AuthConfig) (registry.AuthConfig, error) {
	if explicit != nil {
		return *explicit, nil
	}
	return DefaultAuthHelper.GetAuthConfig(authConfigKey(ref))
}

// HasCredentials returns true if the auth config carries any credential.
func HasCredentials(auth registry.AuthConfig) bool {
	return !isEmptyAuth(auth)
}

func authConfigKey(ref ImageReference) string {
	if ref.Domain == "docker.io" {
		return dockerregistry.IndexServer
	}
	return ref.Domain
}

func isEmptyAuth(auth registry.AuthConfig) bool {
	return auth.Username == "" && auth.Password == "" && auth.Auth == "" && auth.IdentityToken == "" && auth.RegistryToken == ""
}

func encodedRegistryAuth(auth registry.AuthConfig) (string, error) {
	if isEmptyAuth(auth) {
		return "", nil
	}
	return registry.EncodeAuthConfig(auth)
}
