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
	"encoding/json"
	"io"
	"os"
	"sync/atomic"

	"github.com/docker/docker/api/types/registry"
	"github.com/google/go-cmp/cmp"

	"github.com/GoogleContainerTools/buildimage/pkg/buildimage/archive"
	"github.com/GoogleContainerTools/buildimage/pkg/buildimage/docker"
	"github.com/GoogleContainerTools/buildimage/testutil"
)

const (
	trustedBuilder   = "paketobuildpacks/builder-noble-java-tiny:latest"
	untrustedBuilder = "example.com/builders/untrusted:1.0"
	runImageName     = "paketobuildpacks/run-noble-tiny:latest"
)

var cacheComparer = cmp.AllowUnexported(Cache{})

// noCredentials is an AuthConfigHelper that never finds credentials.
type noCredentials struct{}

func (noCredentials) GetAuthConfig(string) (registry.AuthConfig, error) {
	return registry.AuthConfig{}, nil
}

func builderLabels(platformAPIs ...string) map[string]string {
	md := map[string]interface{}{
		"description": "test builder",
		"stack": map[string]interface{}{
			"runImage": map[string]interface{}{"image": runImageName},
		},
		"lifecycle": map[string]interface{}{
			"version": "0.20.4",
			"apis": map[string]interface{}{
				"platform": map[string]interface{}{"deprecated": []string{}, "supported": platformAPIs},
			},
		},
		"buildpacks": []map[string]string{
			{"id": "paketo-buildpacks/java", "version": "18.0.0"},
			{"id": "paketo-buildpacks/node", "version": "3.0.0"},
		},
	}
	b, err := json.Marshal(md)
	if err != nil {
		panic(err)
	}
	return map[string]string{
		"io.buildpacks.builder.metadata": string(b),
		"io.buildpacks.stack.id":         "io.buildpacks.stacks.noble",
	}
}

var builderEnv = []string{"CNB_USER_ID=1002", "CNB_GROUP_ID=1000", "PATH=/usr/bin"}

// newFakeAPI knows about a trusted and an untrusted builder, and the run image.
func newFakeAPI(platformAPIs ...string) *testutil.FakeAPIClient {
	if len(platformAPIs) == 0 {
		platformAPIs = []string{"0.7", "0.8", "0.9"}
	}
	return (&testutil.FakeAPIClient{}).
		AddImage(trustedBuilder, builderLabels(platformAPIs...), builderEnv...).
		AddImage(untrustedBuilder, builderLabels(platformAPIs...), builderEnv...).
		AddImage(runImageName, nil)
}

// appContent is an application made of a single file. It counts how many times it was archived.
type appContent struct {
	calls int32
	owner archive.Owner
}

func (a *appContent) content(owner archive.Owner) (archive.TarArchive, error) {
	atomic.AddInt32(&a.calls, 1)
	a.owner = owner
	return tarFile{name: "app.jar", content: "jar"}, nil
}

func (a *appContent) Calls() int {
	return int(atomic.LoadInt32(&a.calls))
}

type tarFile struct {
	name    string
	content string
}

func (f tarFile) WriteTo(w io.Writer) (int64, error) {
	tw := tar.NewWriter(w)
	if err := tw.WriteHeader(&tar.Header{Name: f.name, Mode: 0o644, Size: int64(len(f.content)), Typeflag: tar.TypeReg}); err != nil {
		return 0, err
	}
	if _, err := tw.Write([]byte(f.content)); err != nil {
		return 0, err
	}
	return int64(len(f.content)), tw.Close()
}

func newRequest(name string, content archive.Content) BuildRequest {
	return NewBuildRequest(docker.MustParseImageReference(name), content)
}

func fixedNames(t *testutil.T) {
	t.Override(&randomSuffix, func() string { return "abc" })
	t.Override(&docker.DefaultAuthHelper, noCredentials{})
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
