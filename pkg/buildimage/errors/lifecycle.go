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

import "fmt"

// Exit codes reported by the lifecycle binaries.
const (
	CodeFailed                   = 1
	CodeInvalidArgs              = 3
	CodeIncompatiblePlatformAPI  = 11
	CodeIncompatibleBuildpackAPI = 12
	CodeFailedDetect             = 20
	CodeFailedDetectWithErrors   = 21
	CodeDetectError              = 22
	CodeAnalyzeError             = 30
	CodeRestoreError             = 40
	CodeFailedBuildWithErrors    = 51
	CodeBuildError               = 52
	CodeExportError              = 62
)

// LifecycleStatusMessage describes a lifecycle exit code.
func LifecycleStatusMessage(code int) string {
	switch code {
	case CodeFailed:
		return "buildpacks lifecycle failed"
	case CodeInvalidArgs:
		return "lifecycle reported invalid arguments"
	case CodeIncompatiblePlatformAPI:
		return "incompatible version of Platform API"
	case CodeIncompatibleBuildpackAPI:
		return "incompatible version of Buildpacks API"
	case CodeFailedDetect, CodeFailedDetectWithErrors, CodeDetectError:
		return "buildpacks could not determine application type"
	case CodeAnalyzeError:
		return "buildpacks failed analyzing metadata from previous builds"
	case CodeRestoreError:
		return "buildpacks failed to restore cached layers"
	case CodeFailedBuildWithErrors, CodeBuildError:
		return "buildpacks failed to build image"
	case CodeExportError:
		return "buildpacks failed to save image and cache layers"
	default:
		return fmt.Sprintf("lifecycle failed with status code %d", code)
	}
}
