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
	"archive/tar"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/google/go-containerregistry/pkg/v1/mutate"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/pkg/errors"

	"github.com/GoogleContainerTools/buildimage/pkg/buildimage/archive"
	"github.com/GoogleContainerTools/buildimage/pkg/buildimage/constants"
	"github.com/GoogleContainerTools/buildimage/pkg/buildimage/docker"
)

const (
	builderPrefix = "urn:cnb:builder:"
	dockerPrefix  = "docker://"
	descriptor    = "buildpack.toml"
)

// BuildpackReference locates a buildpack: bundled with the builder, on disk or in a registry.
// It is resolved when the build starts.
type BuildpackReference string

// ParseBuildpackReference accepts `urn:cnb:builder:<id>[@<version>]`, `<id>[@<version>]`,
// a directory or a tarball containing a buildpack.toml, and `[docker://]<image>`.
func ParseBuildpackReference(s string) (BuildpackReference, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("buildpack reference must not be empty")
	}
	return BuildpackReference(s), nil
}

func (r BuildpackReference) String() string {
	return string(r)
}

// Buildpack is a resolved buildpack.
type Buildpack struct {
	BuildpackInfo

	// content writes the buildpack as a tar stream to extract at `/`. It is nil for builder buildpacks.
	content func(w io.Writer, owner archive.Owner) error
}

// FromBuilder is true when the buildpack is already installed in the builder.
func (bp Buildpack) FromBuilder() bool {
	return bp.content == nil
}

type buildpackDescriptor struct {
	API       string        `toml:"api"`
	Buildpack BuildpackInfo `toml:"buildpack"`
}

type buildpackageMetadata struct {
	ID      string `json:"id"`
	Version string `json:"version"`
}

func (r BuildpackReference) resolve(ctx context.Context, md BuilderMetadata, platform *ocispec.Platform) (Buildpack, error) {
	s := string(r)

	switch {
	case strings.HasPrefix(s, builderPrefix):
		id, version := splitIDVersion(strings.TrimPrefix(s, builderPrefix))
		info, found := md.Buildpack(id, version)
		if !found {
			return Buildpack{}, fmt.Errorf("buildpack %q not found in builder", s)
		}
		return Buildpack{BuildpackInfo: info}, nil

	case strings.HasPrefix(s, dockerPrefix):
		return resolveImage(ctx, strings.TrimPrefix(s, dockerPrefix), platform)
	}

	if fi, err := os.Stat(s); err == nil {
		if fi.IsDir() {
			return resolveDirectory(s)
		}
		return resolveTarball(s)
	}

	if info, found := md.Buildpack(splitIDVersion(s)); found {
		return Buildpack{BuildpackInfo: info}, nil
	}

	return resolveImage(ctx, s, platform)
}

func splitIDVersion(s string) (string, string) {
	id, version, _ := strings.Cut(s, "@")
	return id, version
}

func resolveDirectory(dir string) (Buildpack, error) {
	var d buildpackDescriptor
	if _, err := toml.DecodeFile(filepath.Join(dir, descriptor), &d); err != nil {
		return Buildpack{}, errors.Wrapf(err, "reading buildpack descriptor of %q", dir)
	}
	if err := d.validate(); err != nil {
		return Buildpack{}, errors.Wrapf(err, "buildpack %q", dir)
	}

	content, err := archive.FromDirectory(dir)
	if err != nil {
		return Buildpack{}, err
	}
	return Buildpack{
		BuildpackInfo: d.Buildpack,
		content:       installUnder(content, d.Buildpack),
	}, nil
}

func resolveTarball(file string) (Buildpack, error) {
	f, err := os.Open(file)
	if err != nil {
		return Buildpack{}, err
	}
	defer f.Close()

	r, err := archive.Decompress(f)
	if err != nil {
		return Buildpack{}, errors.Wrapf(err, "reading %q", file)
	}

	tr := tar.NewReader(r)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			return Buildpack{}, fmt.Errorf("%s not found in %q", descriptor, file)
		}
		if err != nil {
			return Buildpack{}, errors.Wrapf(err, "reading %q", file)
		}
		if path.Clean(header.Name) != descriptor {
			continue
		}

		var d buildpackDescriptor
		if _, err := toml.NewDecoder(tr).Decode(&d); err != nil {
			return Buildpack{}, errors.Wrapf(err, "reading buildpack descriptor of %q", file)
		}
		if err := d.validate(); err != nil {
			return Buildpack{}, errors.Wrapf(err, "buildpack %q", file)
		}
		return Buildpack{
			BuildpackInfo: d.Buildpack,
			content:       installUnder(archive.FromTarFile(file), d.Buildpack),
		}, nil
	}
}

func resolveImage(ctx context.Context, s string, platform *ocispec.Platform) (Buildpack, error) {
	ref, err := docker.ParseImageReference(s)
	if err != nil {
		return Buildpack{}, errors.Wrapf(err, "buildpack %q is neither in the builder, on disk nor an image", s)
	}

	auth, err := docker.ResolveAuth(ref, nil)
	if err != nil {
		return Buildpack{}, err
	}
	img, err := docker.RemoteImage(ctx, ref.String(), auth, platform)
	if err != nil {
		return Buildpack{}, err
	}

	cf, err := img.ConfigFile()
	if err != nil {
		return Buildpack{}, errors.Wrapf(err, "reading configuration of %q", s)
	}
	label, found := cf.Config.Labels[constants.Labels.BuildpackageMeta]
	if !found {
		return Buildpack{}, fmt.Errorf("image %q is not a buildpackage: label %q is missing", s, constants.Labels.BuildpackageMeta)
	}
	var md buildpackageMetadata
	if err := json.Unmarshal([]byte(label), &md); err != nil {
		return Buildpack{}, errors.Wrapf(err, "decoding metadata of %q", s)
	}

	return Buildpack{
		BuildpackInfo: BuildpackInfo{ID: md.ID, Version: md.Version},
		content: func(w io.Writer, _ archive.Owner) error {
			rc := mutate.Extract(img)
			defer rc.Close()

			_, err := io.Copy(w, rc)
			return err
		},
	}, nil
}

func (d buildpackDescriptor) validate() error {
	if d.Buildpack.ID == "" {
		return fmt.Errorf("%s must define buildpack.id", descriptor)
	}
	if d.Buildpack.Version == "" {
		return fmt.Errorf("%s must define buildpack.version", descriptor)
	}
	return nil
}

// installUnder moves the entries of a buildpack archive to `cnb/buildpacks/<id>/<version>`.
func installUnder(content archive.Content, info BuildpackInfo) func(io.Writer, archive.Owner) error {
	return func(w io.Writer, owner archive.Owner) error {
		src, err := content(owner)
		if err != nil {
			return err
		}

		pr, pw := io.Pipe()
		go func() {
			_, err := src.WriteTo(pw)
			pw.CloseWithError(err)
		}()
		defer pr.Close()

		idDir := path.Join(strings.TrimPrefix(constants.BuildpacksDir, "/"), escapeID(info.ID))
		versionDir := path.Join(idDir, info.Version)

		tw := tar.NewWriter(w)
		for _, dir := range []string{idDir, versionDir} {
			if err := tw.WriteHeader(&tar.Header{
				Typeflag: tar.TypeDir,
				Name:     dir + "/",
				Mode:     0o755,
				Uid:      owner.UID,
				Gid:      owner.GID,
				ModTime:  archive.ModTime,
			}); err != nil {
				return err
			}
		}

		tr := tar.NewReader(pr)
		for {
			header, err := tr.Next()
			if err == io.EOF {
				break
			}
			if err != nil {
				return err
			}
			name := path.Clean(header.Name)
			if name == "." {
				continue
			}
			header.Name = path.Join(versionDir, name)
			if header.Typeflag == tar.TypeDir {
				header.Name += "/"
			}
			if err := tw.WriteHeader(header); err != nil {
				return err
			}
			if _, err := io.Copy(tw, tr); err != nil {
				return err
			}
		}
		return tw.Close()
	}
}

// escapeID turns a buildpack id into a directory name, as the lifecycle expects.
func escapeID(id string) string {
	return strings.ReplaceAll(id, "/", "_")
}

type orderTOML struct {
	Order []orderEntry `toml:"order"`
}

type orderEntry struct {
	Group []BuildpackInfo `toml:"group"`
}

// encodeOrder writes an order.toml with a single group made of all the buildpacks.
func encodeOrder(buildpacks []Buildpack) ([]byte, error) {
	var group []BuildpackInfo
	for _, bp := range buildpacks {
		group = append(group, bp.BuildpackInfo)
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(orderTOML{Order: []orderEntry{{Group: group}}}); err != nil {
		return nil, errors.Wrap(err, "encoding order.toml")
	}
	return buf.Bytes(), nil
}
