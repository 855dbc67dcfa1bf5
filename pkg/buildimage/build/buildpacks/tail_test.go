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
	"testing"

	"github.com/GoogleContainerTools/buildimage/testutil"
)

func TestTailWriter(t *testing.T) {
	tests := []struct {
		description string
		writes      []string
		expected    []string
	}{
		{
			description: "complete lines",
			writes:      []string{"one\ntwo\n"},
			expected:    []string{"one", "two"},
		},
		{
			description: "lines split across writes",
			writes:      []string{"on", "e\ntw", "o\nthr"},
			expected:    []string{"one", "two", "thr"},
		},
		{
			description: "keeps the last lines",
			writes:      []string{"1\n2\n3\n4\n5\n"},
			expected:    []string{"3", "4", "5"},
		},
		{
			description: "partial line counts",
			writes:      []string{"1\n2\n3\n4"},
			expected:    []string{"2", "3", "4"},
		},
		{
			description: "nothing written",
		},
	}
	for _, test := range tests {
		testutil.Run(t, test.description, func(t *testutil.T) {
			w := newTailWriter(3)
			for _, s := range test.writes {
				n, err := fmt.Fprint(w, s)
				t.CheckNoError(err)
				t.CheckDeepEqual(len(s), n)
			}

			t.CheckDeepEqual(test.expected, w.Lines())
		})
	}
}
