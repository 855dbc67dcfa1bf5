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
	"testing"

	"github.com/GoogleContainerTools/buildimage/testutil"
)

func TestNewAPIClient(t *testing.T) {
	tests := []struct {
		description  string
		cfg          HostConfig
		envs         map[string]string
		expectedHost string
		shouldErr    bool
	}{
		{
			description:  "environment",
			envs:         map[string]string{"DOCKER_HOST": "tcp://docker.example.com:2375"},
			expectedHost: "tcp://docker.example.com:2375",
		},
		{
			description:  "explicit host wins",
			cfg:          HostConfig{Host: "unix:///run/user/1000/docker.sock"},
			envs:         map[string]string{"DOCKER_HOST": "tcp://docker.example.com:2375"},
			expectedHost: "unix:///run/user/1000/docker.sock",
		},
		{
			description: "missing certificates",
			cfg:         HostConfig{Host: "tcp://docker.example.com:2376", TLSVerify: true, CertPath: "/does/not/exist"},
			shouldErr:   true,
		},
	}
	for _, test := range tests {
		testutil.Run(t, test.description, func(t *testutil.T) {
			t.SetEnvs(map[string]string{"DOCKER_HOST": "", "DOCKER_CERT_PATH": "", "DOCKER_TLS_VERIFY": ""})
			t.SetEnvs(test.envs)

			cli, err := newAPIClient(test.cfg)

			t.CheckError(test.shouldErr, err)
			if !test.shouldErr {
				t.CheckDeepEqual(test.expectedHost, cli.DaemonHost())
			}
		})
	}
}

func TestHostConfig(t *testing.T) {
	tests := []struct {
		host   string
		remote bool
	}{
		{host: "", remote: false},
		{host: "unix:///var/run/docker.sock", remote: false},
		{host: "npipe:////./pipe/docker_engine", remote: false},
		{host: "tcp://192.168.99.100:2376", remote: true},
		{host: "ssh://user@host", remote: true},
	}
	for _, test := range tests {
		testutil.Run(t, test.host, func(t *testutil.T) {
			t.CheckDeepEqual(test.remote, HostConfig{Host: test.host}.IsRemote())
		})
	}
}
