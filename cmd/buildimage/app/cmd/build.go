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
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/GoogleContainerTools/buildimage/pkg/buildimage/build/buildpacks"
	"github.com/GoogleContainerTools/buildimage/pkg/buildimage/config"
	"github.com/GoogleContainerTools/buildimage/pkg/buildimage/docker"
	sErrors "github.com/GoogleContainerTools/buildimage/pkg/buildimage/errors"
	"github.com/GoogleContainerTools/buildimage/pkg/buildimage/output/log"
)

// For testing
var (
	newDaemon = docker.NewAPIClientImpl
)

type buildOptions struct {
	configFile string
	flags      *pflag.FlagSet

	path           string
	excludes       []string
	builder        string
	trustBuilder   bool
	runImage       string
	pullPolicy     buildpacks.PullPolicy
	env            []string
	envFile        string
	buildpacks     []string
	volumes        []string
	network        string
	clearCache     bool
	verboseLogging bool
	publish        bool
	tags           []string
	workspace      string
	buildCache     string
	launchCache    string
	createdDate    string
	appDir         string
	securityOpts   []string
	platform       string
	processType    string
	dockerHost     string
}

func (o *buildOptions) addFlags(f *pflag.FlagSet) {
	o.flags = f

	f.StringVarP(&o.configFile, "config", "f", "", "Build configuration file (defaults to buildimage.yaml when present)")
	f.StringVarP(&o.path, "path", "p", "", "Application directory or archive (jar, war, zip, tar)")
	f.StringArrayVar(&o.excludes, "exclude", nil, "Pattern of files to leave out of the application directory")
	f.StringVarP(&o.builder, "builder", "B", "", "Builder image")
	f.BoolVar(&o.trustBuilder, "trust-builder", false, "Run the builder with access to the daemon and the registry credentials")
	f.StringVar(&o.runImage, "run-image", "", "Run image, instead of the one advertised by the builder")
	f.Var(&o.pullPolicy, "pull-policy", "Pull policy of the builder and run images: always, if-not-present or never")
	f.StringArrayVarP(&o.env, "env", "e", nil, "Build-time environment variable, as KEY=VALUE")
	f.StringVar(&o.envFile, "env-file", "", "File of build-time environment variables")
	f.StringArrayVarP(&o.buildpacks, "buildpack", "b", nil, "Buildpack to use instead of the builder's detection order")
	f.StringArrayVar(&o.volumes, "volume", nil, "Binding mounted in the build containers, as source:destination[:options]")
	f.StringVar(&o.network, "network", "", "Network of the build containers")
	f.BoolVar(&o.clearCache, "clear-cache", false, "Clear the build and launch caches before building")
	f.BoolVar(&o.verboseLogging, "verbose-logging", false, "Run the lifecycle with debug logging")
	f.BoolVar(&o.publish, "publish", false, "Push the built image and its tags")
	f.StringArrayVarP(&o.tags, "tag", "t", nil, "Additional tag of the built image")
	f.StringVar(&o.workspace, "workspace", "", "Workspace of the build, as volume:<name> or bind:<path>")
	f.StringVar(&o.buildCache, "build-cache", "", "Build cache, as volume:<name> or bind:<path>")
	f.StringVar(&o.launchCache, "launch-cache", "", "Launch cache, as volume:<name> or bind:<path>")
	f.StringVar(&o.createdDate, "creation-time", "", "Creation date of the image: 'now' or an RFC 3339 timestamp")
	f.StringVar(&o.appDir, "app-dir", "", "Directory of the application in the build containers")
	f.StringArrayVar(&o.securityOpts, "security-opt", nil, "Security option of the build containers")
	f.StringVar(&o.platform, "platform", "", "Platform of the builder, run and built images, eg. linux/arm64")
	f.StringVar(&o.processType, "default-process", "", "Default process type of the built image")
	f.StringVar(&o.dockerHost, "docker-host", "", "Address of the Docker daemon, also used by the build containers")
}

// apply overrides the configuration with the flags set on the command line.
func (o *buildOptions) apply(cfg *config.BuildConfig, args []string) error {
	changed := o.flags.Changed

	if len(args) > 0 {
		cfg.Image = args[0]
	}
	if changed("path") {
		cfg.Path = o.path
	}
	if changed("exclude") {
		cfg.Excludes = o.excludes
	}
	if changed("builder") {
		cfg.Builder = o.builder
	}
	if changed("trust-builder") {
		cfg.TrustBuilder = &o.trustBuilder
	}
	if changed("run-image") {
		cfg.RunImage = o.runImage
	}
	if changed("pull-policy") {
		cfg.PullPolicy = o.pullPolicy.String()
	}
	if changed("env-file") {
		cfg.EnvFile = o.envFile
	}
	if changed("env") {
		if cfg.Env == nil {
			cfg.Env = map[string]string{}
		}
		for _, e := range o.env {
			k, v, found := strings.Cut(e, "=")
			if !found || k == "" {
				return sErrors.NewConfigError("env", "%q must be in the form KEY=VALUE", e)
			}
			cfg.Env[k] = v
		}
	}
	if changed("buildpack") {
		cfg.Buildpacks = o.buildpacks
	}
	if changed("volume") {
		cfg.Bindings = o.volumes
	}
	if changed("network") {
		cfg.Network = o.network
	}
	if changed("clear-cache") {
		cfg.CleanCache = &o.clearCache
	}
	if changed("verbose-logging") {
		cfg.VerboseLogging = &o.verboseLogging
	}
	if changed("publish") {
		cfg.Publish = &o.publish
	}
	if changed("tag") {
		cfg.Tags = o.tags
	}
	if changed("workspace") {
		cfg.BuildWorkspace = o.workspace
	}
	if changed("build-cache") {
		cfg.BuildCache = o.buildCache
	}
	if changed("launch-cache") {
		cfg.LaunchCache = o.launchCache
	}
	if changed("creation-time") {
		cfg.CreatedDate = o.createdDate
	}
	if changed("app-dir") {
		cfg.ApplicationDirectory = o.appDir
	}
	if changed("security-opt") {
		cfg.SecurityOptions = o.securityOpts
	}
	if changed("platform") {
		cfg.ImagePlatform = o.platform
	}
	if changed("default-process") {
		cfg.ProcessType = o.processType
	}
	if changed("docker-host") {
		cfg.Docker.Host = o.dockerHost
	}
	return nil
}

// NewCmdBuild describes the CLI command to build an image.
func NewCmdBuild(out io.Writer) *cobra.Command {
	opts := &buildOptions{}

	return NewCmd(out, "build [IMAGE]").
		WithDescription("Build an image").
		WithLongDescription("Build an image from application sources with a buildpacks builder. Flags override the values of the configuration files.").
		WithExample("Build the application in the current directory", "build demo/app --path .").
		WithExample("Build a jar with an explicit builder and push the image", "build registry.example.com/demo/app:1.0 -p target/app.jar -B paketobuildpacks/builder-jammy-base --publish").
		WithExample("Build with the settings of a configuration file", "build -f buildimage.yaml").
		WithFlags(opts.addFlags).
		MaximumNArgs(1, func(ctx context.Context, out io.Writer, args []string) error {
			return doBuild(ctx, out, opts, args)
		})
}

func doBuild(ctx context.Context, out io.Writer, opts *buildOptions, args []string) error {
	cfg, err := config.Load(ctx, opts.configFile)
	if err != nil {
		return sErrors.WrapConfigError("config", err)
	}
	if err := opts.apply(cfg, args); err != nil {
		return err
	}
	if cfg.Path == "" {
		cfg.Path = "."
	}

	req, err := cfg.ToRequest()
	if err != nil {
		return err
	}

	daemon, err := newDaemon(ctx, cfg.Docker.HostConfig)
	if err != nil {
		return sErrors.NewEngineError("connecting to the Docker daemon", err)
	}
	defer daemon.Close()

	b := buildpacks.NewBuilder(daemon, buildpacks.NewPrinter(out),
		buildpacks.WithDockerHost(cfg.Docker.HostConfig),
		buildpacks.WithTrustedBuilders(cfg.TrustedBuilders...))
	refs, err := b.Build(ctx, req)
	if err != nil {
		return err
	}

	for _, ref := range refs {
		log.Entry(ctx).Debugf("Built %s", ref)
	}
	return nil
}
