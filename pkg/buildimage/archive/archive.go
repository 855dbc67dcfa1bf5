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
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ModTime is the modification time of every archive entry, for reproducible images.
var ModTime = time.Date(1980, time.January, 1, 0, 0, 1, 0, time.UTC)

// Owner is the user and group owning the extracted application files.
type Owner struct {
	UID int
	GID int
}

// TarArchive writes a tar stream.
type TarArchive interface {
	WriteTo(w io.Writer) (int64, error)
}

// Content produces the application archive, owned by the given user.
type Content func(owner Owner) (TarArchive, error)

// ForPath picks the archive provider matching an application path:
// a directory, a zip based archive (jar, war, zip) or a tarball.
func ForPath(path string, excludes ...string) (Content, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("application path: %w", err)
	}
	if info.IsDir() {
		return FromDirectory(path, excludes...)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".jar", ".war", ".zip":
		return FromZip(path), nil
	case ".tar", ".tgz", ".gz":
		return FromTarFile(path), nil
	default:
		return nil, fmt.Errorf("unsupported application archive %q: expected a directory, a jar, war, zip or tar file", path)
	}
}

type archiveFunc func(w io.Writer) error

func (f archiveFunc) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	err := f(cw)
	return cw.n, err
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
