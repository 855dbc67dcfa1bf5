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

package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/GoogleContainerTools/buildimage/pkg/buildimage/version"
)

// NewCmdVersion describes the CLI command to print the version.
func NewCmdVersion(out io.Writer) *cobra.Command {
	var full bool

	return NewCmd(out, "version").
		WithDescription("Print the version information").
		WithFlags(func(f *pflag.FlagSet) {
			f.BoolVar(&full, "full", false, "Print the commit, build date and platform")
		}).
		NoArgs(func(_ context.Context, out io.Writer) error {
			info := version.Get()
			if !full {
				_, err := fmt.Fprintln(out, info.Version)
				return err
			}
			b, err := yaml.Marshal(info)
			if err != nil {
				return fmt.Errorf("encoding version: %w", err)
			}
			_, err = out.Write(b)
			return err
		})
}
