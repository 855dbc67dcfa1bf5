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

package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type BadReader struct{}

func (BadReader) Read([]byte) (int, error) { return 0, fmt.Errorf("bad read") }

type BadWriter struct{}

func (BadWriter) Write([]byte) (int, error) { return 0, fmt.Errorf("bad write") }

type T struct {
	*testing.T
}

// Run runs the given test function as a named sub test with a *testutil.T.
func Run(t *testing.T, name string, f func(t *T)) {
	t.Helper()
	t.Run(name, func(tt *testing.T) {
		tt.Helper()
		f(&T{T: tt})
	})
}

// Override sets the value of a package variable and restores it when the test ends.
func (t *T) Override(dest, tmp interface{}) {
	t.Helper()
	if err := override(t.T, dest, tmp); err != nil {
		t.Fatal(err)
	}
}

func override(t *testing.T, dest, tmp interface{}) error {
	defer func() {
		if r := recover(); r != nil {
			t.Fatal(r)
		}
	}()

	dValue := reflect.ValueOf(dest).Elem()

	// Save current value
	curValue := reflect.New(dValue.Type()).Elem()
	curValue.Set(dValue)

	// Set to temporary value
	var tmpV reflect.Value
	if tmp == nil {
		tmpV = reflect.Zero(dValue.Type())
	} else {
		tmpV = reflect.ValueOf(tmp)
	}
	dValue.Set(tmpV)

	t.Cleanup(func() {
		dValue.Set(curValue)
	})
	return nil
}

// SetEnvs sets the given environment variables for the duration of the test.
func (t *T) SetEnvs(envs map[string]string) {
	t.Helper()
	for key, value := range envs {
		t.Setenv(key, value)
	}
}

func (t *T) CheckDeepEqual(expected, actual interface{}, opts ...cmp.Option) {
	t.Helper()
	CheckDeepEqual(t.T, expected, actual, opts...)
}

func (t *T) CheckError(shouldErr bool, err error) {
	t.Helper()
	CheckError(t.T, shouldErr, err)
}

func (t *T) CheckErrorAndDeepEqual(shouldErr bool, err error, expected, actual interface{}, opts ...cmp.Option) {
	t.Helper()
	CheckErrorAndDeepEqual(t.T, shouldErr, err, expected, actual, opts...)
}

func (t *T) CheckNoError(err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
}

func (t *T) CheckErrorContains(message string, err error) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error containing %q, but returned none", message)
	}
	if !strings.Contains(err.Error(), message) {
		t.Fatalf("expected error containing %q, got %q", message, err.Error())
	}
}

func (t *T) CheckContains(expected, actual string) {
	t.Helper()
	if !strings.Contains(actual, expected) {
		t.Errorf("expected output to contain %q, got:\n%s", expected, actual)
	}
}

func (t *T) CheckNotContains(unexpected, actual string) {
	t.Helper()
	if strings.Contains(actual, unexpected) {
		t.Errorf("expected output not to contain %q, got:\n%s", unexpected, actual)
	}
}

func (t *T) CheckTrue(actual bool) {
	t.Helper()
	if !actual {
		t.Error("expected true, got false")
	}
}

func (t *T) CheckFalse(actual bool) {
	t.Helper()
	if actual {
		t.Error("expected false, got true")
	}
}

// NewTempDir creates a temporary directory that is removed when the test ends.
func (t *T) NewTempDir() *TempDir {
	t.Helper()
	return &TempDir{t: t.T, root: t.TempDir()}
}

// TempDir is a temporary directory with helpers to populate it.
type TempDir struct {
	t    *testing.T
	root string
}

func (h *TempDir) Root() string {
	return h.root
}

func (h *TempDir) Path(file string) string {
	return filepath.Join(h.root, filepath.FromSlash(file))
}

// Write creates a file, and its parents, with the given content.
func (h *TempDir) Write(file, content string) *TempDir {
	h.t.Helper()
	path := h.Path(file)
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		h.t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), os.ModePerm); err != nil {
		h.t.Fatal(err)
	}
	return h
}

// Mkdir creates an empty directory.
func (h *TempDir) Mkdir(dir string) *TempDir {
	h.t.Helper()
	if err := os.MkdirAll(h.Path(dir), os.ModePerm); err != nil {
		h.t.Fatal(err)
	}
	return h
}

func CheckDeepEqual(t *testing.T, expected, actual interface{}, opts ...cmp.Option) {
	t.Helper()
	if diff := cmp.Diff(actual, expected, opts...); diff != "" {
		t.Errorf("%T differ (-got, +want): %s", expected, diff)
	}
}

func CheckErrorAndDeepEqual(t *testing.T, shouldErr bool, err error, expected, actual interface{}, opts ...cmp.Option) {
	t.Helper()
	if err := checkErr(shouldErr, err); err != nil {
		t.Error(err)
		return
	}
	if !shouldErr {
		CheckDeepEqual(t, expected, actual, opts...)
	}
}

func CheckError(t *testing.T, shouldErr bool, err error) {
	t.Helper()
	if err := checkErr(shouldErr, err); err != nil {
		t.Error(err)
	}
}

func checkErr(shouldErr bool, err error) error {
	if err == nil && shouldErr {
		return fmt.Errorf("expected error, but returned none")
	}
	if err != nil && !shouldErr {
		return fmt.Errorf("unexpected error: %s", err)
	}
	return nil
}
