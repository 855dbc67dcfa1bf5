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
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/GoogleContainerTools/buildimage/pkg/buildimage/docker"
	"github.com/GoogleContainerTools/buildimage/testutil"
)

func TestPrinter(t *testing.T) {
	testutil.Run(t, "", func(t *testutil.T) {
		var out bytes.Buffer
		p := NewPrinter(&out)
		req := newRequest("demo/app:1.0", (&appContent{}).content)

		p.Start(req)
		p.ExecutingLifecycle(req, "0.20.4", "0.12", VolumeCache("pack-cache-build"))
		p.UploadedApplication(2048)
		w := p.RunningPhase(req, "creator")
		fmt.Fprint(w, "===> DETECTING\n===> BUILDING\n")
		flush(w)
		p.SkippingPhase("restorer", "due to cleaning cache")
		p.ExecutedLifecycle(req)
		p.TaggedImage(docker.MustParseImageReference("demo/app:latest"))
		p.PushedImage(docker.MustParseImageReference("demo/app:1.0"), "sha256:3b8d3c1e1f8c0d7c3f9a4c16e0a4b2a6d5e3f2c1b0a9f8e7d6c5b4a39281706f")
		p.PushedImage(docker.MustParseImageReference("demo/app:latest"), "unknown")
		p.FailedCleaning("volume", "pack-app-abc", errors.New("in use"))

		t.CheckDeepEqual(`Building image 'docker.io/demo/app:1.0'

 > Executing lifecycle version v0.20.4
 > Using creator buildimage@0.0.0-dev
 > Using build cache volume:pack-cache-build
 > Using platform API 0.12
 > Uploaded application (2.0 kB)

 > Running creator
    [creator] ===> DETECTING
    [creator] ===> BUILDING

 > Skipping restorer due to cleaning cache

Successfully built image 'docker.io/demo/app:1.0'

Successfully created image tag 'docker.io/demo/app:latest'

 > Pushed image 'docker.io/demo/app@sha256:3b8d3c1e1f8c0d7c3f9a4c16e0a4b2a6d5e3f2c1b0a9f8e7d6c5b4a39281706f'
 > Pushed image 'docker.io/demo/app:latest'
 > Unable to remove volume 'pack-app-abc': in use
`, out.String())
	})
}

func TestPrinterPulling(t *testing.T) {
	testutil.Run(t, "", func(t *testutil.T) {
		var out bytes.Buffer
		p := NewPrinter(&out)
		ref := docker.MustParseImageReference(trustedBuilder)

		w := p.PullingImage(ref, BuilderImage)
		fmt.Fprint(w, "latest: Pulling from paketobuildpacks/builder-noble-java-tiny\n")
		flush(w)
		p.PulledImage(ref, BuilderImage, "sha256:123")

		t.CheckContains(" > Pulling builder image 'docker.io/paketobuildpacks/builder-noble-java-tiny:latest'", out.String())
		t.CheckContains(" > Pulled builder image 'sha256:123'", out.String())
	})
}
