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
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/docker/cli/cli/connhelper"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/tlsconfig"

	"github.com/GoogleContainerTools/buildimage/pkg/buildimage/output/log"
	"github.com/GoogleContainerTools/buildimage/pkg/buildimage/version"
)

// For testing
var (
	NewAPIClient = NewAPIClientImpl
)

// HostConfig selects and secures the daemon to build with.
// The zero value uses the DOCKER_* environment variables.
type HostConfig struct {
	Host      string `yaml:"host,omitempty"`
	TLSVerify bool   `yaml:"tlsVerify,omitempty"`
	CertPath  string `yaml:"certPath,omitempty"`
	// BindHostToBuilder makes the lifecycle talk to the same daemon address as the build.
	BindHostToBuilder bool `yaml:"bindHostToBuilder,omitempty"`
}

// IsRemote returns true for daemons reached over the network.
func (c HostConfig) IsRemote() bool {
	return c.Host != "" && !strings.HasPrefix(c.Host, "unix://") && !strings.HasPrefix(c.Host, "npipe://")
}

// SocketPath returns the local socket path of a unix daemon address.
func (c HostConfig) SocketPath() string {
	return strings.TrimPrefix(c.Host, "unix://")
}

// NewAPIClientImpl creates a LocalDaemon connected to the configured daemon.
// It will "negotiate" the highest possible API version supported by both the client
// and the server if there is a mismatch.
func NewAPIClientImpl(ctx context.Context, cfg HostConfig) (LocalDaemon, error) {
	apiClient, err := newAPIClient(cfg)
	if err != nil {
		return nil, err
	}
	log.Entry(ctx).Debugf("Using docker daemon at %s", apiClient.DaemonHost())
	return NewLocalDaemon(apiClient), nil
}

func newAPIClient(cfg HostConfig) (client.CommonAPIClient, error) {
	opts := []client.Opt{
		client.WithHTTPHeaders(map[string]string{"User-Agent": version.UserAgent()}),
		client.WithAPIVersionNegotiation(),
	}

	host := cfg.Host
	if host == "" {
		opts = append(opts, client.FromEnv)
		host = os.Getenv("DOCKER_HOST")
	}

	if host != "" {
		helper, err := connhelper.GetConnectionHelper(host)
		switch {
		case err == nil && helper != nil:
			httpClient := &http.Client{
				Transport: &http.Transport{
					DialContext: helper.Dialer,
				},
			}
			opts = append(opts, client.WithHTTPClient(httpClient), client.WithHost(helper.Host))
		case cfg.Host != "":
			if cfg.CertPath != "" {
				httpClient, err := tlsHTTPClient(cfg)
				if err != nil {
					return nil, err
				}
				opts = append(opts, client.WithHTTPClient(httpClient))
			}
			opts = append(opts, client.WithHost(cfg.Host))
		}
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("error getting docker client: %w", err)
	}
	return cli, nil
}

func tlsHTTPClient(cfg HostConfig) (*http.Client, error) {
	tlsc, err := tlsconfig.Client(tlsconfig.Options{
		CAFile:             filepath.Join(cfg.CertPath, "ca.pem"),
		CertFile:           filepath.Join(cfg.CertPath, "cert.pem"),
		KeyFile:            filepath.Join(cfg.CertPath, "key.pem"),
		InsecureSkipVerify: !cfg.TLSVerify,
	})
	if err != nil {
		return nil, fmt.Errorf("configuring docker TLS from %q: %w", cfg.CertPath, err)
	}

	return &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: tlsc,
		},
	}, nil
}
