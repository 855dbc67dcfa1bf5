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
	"strings"

	"github.com/distribution/reference"
	"github.com/opencontainers/go-digest"
)

const defaultTag = "latest"

// ImageReference is a parsed and normalized image name.
// At most one of Tag and Digest is set.
type ImageReference struct {
	Domain string
	Path   string
	Tag    string
	Digest string
}

// ParseImageReference parses an image name. A name with neither a tag nor a digest gets the `latest` tag.
// When both are given, the digest identifies the image and the tag is dropped.
func ParseImageReference(image string) (ImageReference, error) {
	if strings.TrimSpace(image) == "" {
		return ImageReference{}, fmt.Errorf("image reference must not be empty")
	}

	named, err := reference.ParseNormalizedNamed(image)
	if err != nil {
		return ImageReference{}, fmt.Errorf("parsing image reference %q: %w", image, err)
	}

	ref := ImageReference{
		Domain: reference.Domain(named),
		Path:   reference.Path(named),
	}
	switch n := named.(type) {
	case reference.Digested:
		d, err := digest.Parse(n.Digest().String())
		if err != nil {
			return ImageReference{}, fmt.Errorf("parsing digest of %q: %w", image, err)
		}
		ref.Digest = d.String()
	case reference.Tagged:
		ref.Tag = n.Tag()
	default:
		ref.Tag = defaultTag
	}

	return ref, nil
}

// MustParseImageReference is like ParseImageReference but panics on malformed input.
func MustParseImageReference(image string) ImageReference {
	ref, err := ParseImageReference(image)
	if err != nil {
		panic(err)
	}
	return ref
}

// Name is the repository name, without tag or digest.
func (r ImageReference) Name() string {
	return r.Domain + "/" + r.Path
}

// IsZero returns true for the zero ImageReference.
func (r ImageReference) IsZero() bool {
	return r == ImageReference{}
}

// String returns the fully qualified form, eg. `docker.io/library/ubuntu:latest`.
func (r ImageReference) String() string {
	if r.IsZero() {
		return ""
	}
	if r.Digest != "" {
		return r.Name() + "@" + r.Digest
	}
	return r.Name() + ":" + r.Tag
}

// Familiar returns the shortest form, eg. `ubuntu:latest`.
func (r ImageReference) Familiar() string {
	named, err := reference.ParseNormalizedNamed(r.String())
	if err != nil {
		return r.String()
	}
	return reference.FamiliarString(named)
}

// WithTag returns a copy of the reference with the given tag and no digest.
func (r ImageReference) WithTag(tag string) (ImageReference, error) {
	named, err := reference.ParseNormalizedNamed(r.Name())
	if err != nil {
		return ImageReference{}, err
	}
	if _, err := reference.WithTag(named, tag); err != nil {
		return ImageReference{}, fmt.Errorf("invalid tag %q: %w", tag, err)
	}
	return ImageReference{Domain: r.Domain, Path: r.Path, Tag: tag}, nil
}

// WithDigest returns a copy of the reference with the given digest and no tag.
func (r ImageReference) WithDigest(d string) (ImageReference, error) {
	parsed, err := digest.Parse(d)
	if err != nil {
		return ImageReference{}, fmt.Errorf("invalid digest %q: %w", d, err)
	}
	return ImageReference{Domain: r.Domain, Path: r.Path, Digest: parsed.String()}, nil
}

// Registry is the registry hostname. Docker Hub is reported as `docker.io`.
func (r ImageReference) Registry() string {
	return r.Domain
}
