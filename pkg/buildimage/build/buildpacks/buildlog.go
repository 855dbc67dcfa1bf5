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
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/segmentio/textio"

	"github.com/GoogleContainerTools/buildimage/pkg/buildimage/docker"
)

// ImageType is the role of a pulled image.
type ImageType string

const (
	BuilderImage = ImageType("builder image")
	RunImage     = ImageType("run image")
)

// BuildLog receives the progress of a build.
type BuildLog interface {
	Start(req BuildRequest)
	// PullingImage returns where the pull progress is written.
	PullingImage(ref docker.ImageReference, imageType ImageType) io.Writer
	PulledImage(ref docker.ImageReference, imageType ImageType, id string)
	ExecutingLifecycle(req BuildRequest, lifecycleVersion, platformAPI string, buildCache Cache)
	// RunningPhase returns where the output of a phase is written.
	RunningPhase(req BuildRequest, phase string) io.Writer
	SkippingPhase(phase, reason string)
	UploadedApplication(size int64)
	ExecutedLifecycle(req BuildRequest)
	TaggedImage(tag docker.ImageReference)
	// PushingImage returns where the push progress is written.
	PushingImage(ref docker.ImageReference) io.Writer
	PushedImage(ref docker.ImageReference, digest string)
	FailedCleaning(kind, name string, err error)
	SensitiveTargetBinding(b docker.Binding)
}

// Printer is a BuildLog printing human readable text.
type Printer struct {
	out io.Writer
}

// NewPrinter creates a BuildLog writing to out.
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

func (p *Printer) Start(req BuildRequest) {
	fmt.Fprintf(p.out, "Building image '%s'\n\n", req.Name())
}

func (p *Printer) PullingImage(ref docker.ImageReference, imageType ImageType) io.Writer {
	fmt.Fprintf(p.out, " > Pulling %s '%s'\n", imageType, ref)
	return textio.NewPrefixWriter(p.out, "    ")
}

func (p *Printer) PulledImage(ref docker.ImageReference, imageType ImageType, id string) {
	fmt.Fprintf(p.out, " > Pulled %s '%s'\n", imageType, id)
}

func (p *Printer) ExecutingLifecycle(req BuildRequest, lifecycleVersion, platformAPI string, buildCache Cache) {
	fmt.Fprintf(p.out, " > Executing lifecycle version v%s\n", lifecycleVersion)
	fmt.Fprintf(p.out, " > Using creator %s\n", req.Creator())
	fmt.Fprintf(p.out, " > Using build cache %s\n", buildCache)
	fmt.Fprintf(p.out, " > Using platform API %s\n", platformAPI)
}

func (p *Printer) RunningPhase(req BuildRequest, phase string) io.Writer {
	fmt.Fprintf(p.out, "\n > Running %s\n", phase)
	return textio.NewPrefixWriter(p.out, fmt.Sprintf("    [%s] ", phase))
}

func (p *Printer) SkippingPhase(phase, reason string) {
	fmt.Fprintf(p.out, "\n > Skipping %s %s\n", phase, reason)
}

func (p *Printer) UploadedApplication(size int64) {
	fmt.Fprintf(p.out, " > Uploaded application (%s)\n", humanize.Bytes(uint64(size)))
}

func (p *Printer) ExecutedLifecycle(req BuildRequest) {
	fmt.Fprintf(p.out, "\nSuccessfully built image '%s'\n\n", req.Name())
}

func (p *Printer) TaggedImage(tag docker.ImageReference) {
	fmt.Fprintf(p.out, "Successfully created image tag '%s'\n\n", tag)
}

func (p *Printer) PushingImage(ref docker.ImageReference) io.Writer {
	fmt.Fprintf(p.out, " > Pushing image '%s'\n", ref)
	return textio.NewPrefixWriter(p.out, "    ")
}

func (p *Printer) PushedImage(ref docker.ImageReference, digest string) {
	pushed, err := ref.WithDigest(digest)
	if err != nil {
		fmt.Fprintf(p.out, " > Pushed image '%s'\n", ref)
		return
	}
	fmt.Fprintf(p.out, " > Pushed image '%s'\n", pushed)
}

func (p *Printer) FailedCleaning(kind, name string, err error) {
	fmt.Fprintf(p.out, " > Unable to remove %s '%s': %v\n", kind, name, err)
}

func (p *Printer) SensitiveTargetBinding(b docker.Binding) {
	fmt.Fprintf(p.out, " > Warning: Binding '%s' uses a container path which is used by buildpacks while building. Binding to it can cause problems!\n", b)
}

// flush writes the pending partial line of a prefix writer.
func flush(w io.Writer) {
	if f, ok := w.(interface{ Flush() error }); ok {
		_ = f.Flush()
	}
}
