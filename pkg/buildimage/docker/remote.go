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

	"github.com/docker/docker/api/types/registry"
	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/name"
	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// For testing
var (
	RemoteDigest = remoteDigest
	RemoteImage  = remoteImage
)

// remoteDigest asks the registry for the digest of a pushed image.
func remoteDigest(ctx context.Context, ref string, auth registry.AuthConfig) (string, error) {
	r, err := name.ParseReference(ref, name.WeakValidation)
	if err != nil {
		return "", fmt.Errorf("parsing reference %q: %w", ref, err)
	}

	desc, err := remote.Head(r, remoteOptions(ctx, auth)...)
	if err != nil {
		return "", fmt.Errorf("getting digest of %q: %w", ref, err)
	}
	return desc.Digest.String(), nil
}

// remoteImage fetches an image straight from its registry.
func remoteImage(ctx context.Context, ref string, auth registry.AuthConfig, platform *ocispec.Platform) (v1.Image, error) {
	r, err := name.ParseReference(ref, name.WeakValidation)
	if err != nil {
		return nil, fmt.Errorf("parsing reference %q: %w", ref, err)
	}

	opts := remoteOptions(ctx, auth)
	if platform != nil {
		opts = append(opts, remote.WithPlatform(toV1Platform(platform)))
	}
	img, err := remote.Image(r, opts...)
	if err != nil {
		return nil, fmt.Errorf("fetching image %q: %w", ref, err)
	}
	return img, nil
}

func remoteOptions(ctx context.Context, auth registry.AuthConfig) []remote.Option {
	opts := []remote.Option{remote.WithContext(ctx)}
	if isEmptyAuth(auth) {
		return append(opts, remote.WithAuthFromKeychain(authn.DefaultKeychain))
	}
	return append(opts, remote.WithAuth(authn.FromConfig(authn.AuthConfig{
		Username:      auth.Username,
		Password:      auth.Password,
		Auth:          auth.Auth,
		IdentityToken: auth.IdentityToken,
		RegistryToken: auth.RegistryToken,
	})))
}
