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

package archive

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"io"
	"os"
	"testing"

	"github.com/GoogleContainerTools/buildimage/testutil"
)

type entry struct {
	Name    string
	Content string
	UID     int
	GID     int
}

func readEntries(t *testutil.T, content Content, owner Owner) []entry {
	t.Helper()

	a, err := content(owner)
	t.CheckNoError(err)

	var buf bytes.Buffer
	n, err := a.WriteTo(&buf)
	t.CheckNoError(err)
	t.CheckDeepEqual(int64(buf.Len()), n)

	var entries []entry
	tr := tar.NewReader(&buf)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		t.CheckNoError(err)
		t.CheckTrue(header.ModTime.Equal(ModTime))

		b, err := io.ReadAll(tr)
		t.CheckNoError(err)
		entries = append(entries, entry{Name: header.Name, Content: string(b), UID: header.Uid, GID: header.Gid})
	}
	return entries
}

func names(entries []entry) []string {
	var names []string
	for _, e := range entries {
		names = append(names, e.Name)
	}
	return names
}

func TestFromDirectory(t *testing.T) {
	tests := []struct {
		description string
		excludes    []string
		expected    []string
	}{
		{
			description: "all files",
			expected:    []string{"app.py", "lib/", "lib/util.py", "target/", "target/app.jar", "target/classes/", "target/classes/A.class"},
		},
		{
			description: "excluded directory",
			excludes:    []string{"target"},
			expected:    []string{"app.py", "lib/", "lib/util.py"},
		},
		{
			description: "excluded pattern with exception",
			excludes:    []string{"target", "!target/app.jar"},
			expected:    []string{"app.py", "lib/", "lib/util.py", "target/app.jar"},
		},
		{
			description: "glob",
			excludes:    []string{"**/*.py"},
			expected:    []string{"lib/", "target/", "target/app.jar", "target/classes/", "target/classes/A.class"},
		},
	}
	for _, test := range tests {
		testutil.Run(t, test.description, func(t *testutil.T) {
			tmpDir := t.NewTempDir().
				Write("app.py", "print()").
				Write("lib/util.py", "").
				Write("target/app.jar", "jar").
				Write("target/classes/A.class", "")

			content, err := FromDirectory(tmpDir.Root(), test.excludes...)
			t.CheckNoError(err)

			entries := readEntries(t, content, Owner{UID: 1000, GID: 1001})
			t.CheckDeepEqual(test.expected, names(entries))
			for _, e := range entries {
				t.CheckDeepEqual(1000, e.UID)
				t.CheckDeepEqual(1001, e.GID)
			}
		})
	}
}

func TestFromDirectoryInvalidPattern(t *testing.T) {
	testutil.Run(t, "", func(t *testutil.T) {
		_, err := FromDirectory(t.TempDir(), "[")

		t.CheckErrorContains("invalid exclude patterns", err)
	})
}

func TestFromDirectorySymlinks(t *testing.T) {
	testutil.Run(t, "", func(t *testutil.T) {
		tmpDir := t.NewTempDir().Write("file", "content")
		t.CheckNoError(os.Symlink("file", tmpDir.Path("relative")))
		t.CheckNoError(os.Symlink(tmpDir.Path("file"), tmpDir.Path("absolute")))

		content, err := FromDirectory(tmpDir.Root())
		t.CheckNoError(err)

		t.CheckDeepEqual([]string{"file", "relative"}, names(readEntries(t, content, Owner{})))
	})
}

func TestFromZip(t *testing.T) {
	testutil.Run(t, "", func(t *testutil.T) {
		tmpDir := t.NewTempDir()

		var buf bytes.Buffer
		zw := zip.NewWriter(&buf)
		_, err := zw.Create("META-INF/")
		t.CheckNoError(err)
		w, err := zw.Create("META-INF/MANIFEST.MF")
		t.CheckNoError(err)
		_, err = w.Write([]byte("Main-Class: App"))
		t.CheckNoError(err)
		t.CheckNoError(zw.Close())
		tmpDir.Write("app.jar", buf.String())

		entries := readEntries(t, FromZip(tmpDir.Path("app.jar")), Owner{UID: 1, GID: 2})

		t.CheckDeepEqual([]entry{
			{Name: "META-INF/", UID: 1, GID: 2},
			{Name: "META-INF/MANIFEST.MF", Content: "Main-Class: App", UID: 1, GID: 2},
		}, entries)
	})
}

func TestFromZipIllegalEntry(t *testing.T) {
	testutil.Run(t, "", func(t *testutil.T) {
		tmpDir := t.NewTempDir()

		var buf bytes.Buffer
		zw := zip.NewWriter(&buf)
		_, err := zw.Create("../escape")
		t.CheckNoError(err)
		t.CheckNoError(zw.Close())
		tmpDir.Write("app.zip", buf.String())

		a, err := FromZip(tmpDir.Path("app.zip"))(Owner{})
		t.CheckNoError(err)

		_, err = a.WriteTo(io.Discard)
		t.CheckErrorContains("illegal entry", err)
	})
}

func TestFromTarFile(t *testing.T) {
	tarball := func(t *testutil.T, gzipped bool) string {
		var buf bytes.Buffer
		var w io.Writer = &buf
		var gw *gzip.Writer
		if gzipped {
			gw = gzip.NewWriter(&buf)
			w = gw
		}
		tw := tar.NewWriter(w)
		t.CheckNoError(tw.WriteHeader(&tar.Header{Name: "index.js", Mode: 0o644, Size: 2, Uid: 42}))
		_, err := tw.Write([]byte("//"))
		t.CheckNoError(err)
		t.CheckNoError(tw.Close())
		if gw != nil {
			t.CheckNoError(gw.Close())
		}
		return buf.String()
	}

	for _, gzipped := range []bool{false, true} {
		testutil.Run(t, map[bool]string{false: "tar", true: "tgz"}[gzipped], func(t *testutil.T) {
			tmpDir := t.NewTempDir().Write("app.tar", tarball(t, gzipped))

			entries := readEntries(t, FromTarFile(tmpDir.Path("app.tar")), Owner{UID: 1000, GID: 1000})

			t.CheckDeepEqual([]entry{{Name: "index.js", Content: "//", UID: 1000, GID: 1000}}, entries)
		})
	}
}

func TestForPath(t *testing.T) {
	tests := []struct {
		description string
		path        string
		shouldErr   bool
	}{
		{description: "directory", path: "app"},
		{description: "jar", path: "app.jar"},
		{description: "tgz", path: "app.tgz"},
		{description: "unsupported", path: "app.txt", shouldErr: true},
		{description: "missing", path: "missing", shouldErr: true},
	}
	for _, test := range tests {
		testutil.Run(t, test.description, func(t *testutil.T) {
			tmpDir := t.NewTempDir().
				Mkdir("app").
				Write("app.jar", "").
				Write("app.tgz", "").
				Write("app.txt", "")

			content, err := ForPath(tmpDir.Path(test.path))

			t.CheckError(test.shouldErr, err)
			if !test.shouldErr {
				t.CheckTrue(content != nil)
			}
		})
	}
}
