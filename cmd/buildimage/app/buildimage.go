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

package app

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/GoogleContainerTools/buildimage/cmd/buildimage/app/cmd"
	sErrors "github.com/GoogleContainerTools/buildimage/pkg/buildimage/errors"
)

// Run executes the command line. SIGINT and SIGTERM cancel the running build.
func Run(out, stderr io.Writer) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	c := cmd.NewBuildImageCommand(out, stderr)
	return c.ExecuteContext(ctx)
}

// ExitCode maps an error to the process exit code.
func ExitCode(err error) int {
	return sErrors.ExitCode(err)
}
