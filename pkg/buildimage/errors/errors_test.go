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

package errors

import (
	"context"
	"fmt"
	"testing"

	"github.com/pkg/errors"

	"github.com/GoogleContainerTools/buildimage/testutil"
)

func TestLifecycleStatusMessage(t *testing.T) {
	tests := []struct {
		code     int
		expected string
	}{
		{CodeFailed, "buildpacks lifecycle failed"},
		{CodeInvalidArgs, "lifecycle reported invalid arguments"},
		{CodeIncompatiblePlatformAPI, "incompatible version of Platform API"},
		{CodeIncompatibleBuildpackAPI, "incompatible version of Buildpacks API"},
		{CodeFailedDetect, "buildpacks could not determine application type"},
		{CodeFailedDetectWithErrors, "buildpacks could not determine application type"},
		{CodeAnalyzeError, "buildpacks failed analyzing metadata from previous builds"},
		{CodeRestoreError, "buildpacks failed to restore cached layers"},
		{CodeFailedBuildWithErrors, "buildpacks failed to build image"},
		{CodeBuildError, "buildpacks failed to build image"},
		{CodeExportError, "buildpacks failed to save image and cache layers"},

		{0, "lifecycle failed with status code 0"},
		// rebase and launch are never run by a build
		{70, "lifecycle failed with status code 70"},
		{82, "lifecycle failed with status code 82"},
	}
	for _, test := range tests {
		testutil.Run(t, fmt.Sprintf("code %d", test.code), func(t *testutil.T) {
			t.CheckDeepEqual(test.expected, LifecycleStatusMessage(test.code))
		})
	}
}

func TestPhaseErrorMessage(t *testing.T) {
	testutil.Run(t, "", func(t *testutil.T) {
		err := &PhaseError{Phase: "builder", ExitCode: 51, Logs: []string{"ERROR: failed to build", "exit status 1"}}

		t.CheckDeepEqual("builder lifecycle 'builder' failed with status code 51: buildpacks failed to build image\nERROR: failed to build\nexit status 1", err.Error())
	})
}

func TestStageOf(t *testing.T) {
	tests := []struct {
		description string
		err         error
		stage       Stage
		exitCode    int
	}{
		{description: "no error", err: nil, stage: "", exitCode: 0},
		{description: "config", err: NewConfigError("name", "must not be empty"), stage: Config, exitCode: 2},
		{description: "wrapped config", err: errors.Wrap(NewConfigError("name", "must not be empty"), "validating"), stage: Config, exitCode: 2},
		{description: "engine", err: NewEngineError("creating container", fmt.Errorf("connection refused")), stage: Engine, exitCode: 3},
		{description: "pull", err: &PullError{Ref: "builder", Err: fmt.Errorf("denied")}, stage: Pull, exitCode: 4},
		{description: "phase", err: fmt.Errorf("running: %w", &PhaseError{Phase: "creator", ExitCode: 51}), stage: Phase, exitCode: 5},
		{description: "publish", err: &PublishError{Ref: "demo/app", Err: fmt.Errorf("unauthorized")}, stage: Publish, exitCode: 6},
		{description: "cancelled", err: &CancelledError{Phase: "builder", Err: context.Canceled}, stage: Cancelled, exitCode: 130},
		{description: "context cancelled", err: context.Canceled, stage: Cancelled, exitCode: 130},
		{description: "unknown", err: fmt.Errorf("boom"), stage: Unknown, exitCode: 1},
	}
	for _, test := range tests {
		testutil.Run(t, test.description, func(t *testutil.T) {
			t.CheckDeepEqual(test.stage, StageOf(test.err))
			t.CheckDeepEqual(test.exitCode, ExitCode(test.err))
		})
	}
}

func TestConfigErrorMessage(t *testing.T) {
	testutil.Run(t, "", func(t *testutil.T) {
		t.CheckDeepEqual("invalid pullPolicy: unknown value \"SOMETIMES\"", NewConfigError("pullPolicy", "unknown value %q", "SOMETIMES").Error())
		t.CheckDeepEqual("invalid configuration: nothing to build", NewConfigError("", "nothing to build").Error())
	})
}
