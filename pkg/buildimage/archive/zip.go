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
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path"
)

// FromZip converts a zip based archive, such as an executable jar, to a tar stream.
func FromZip(zipFile string) Content {
	return func(owner Owner) (TarArchive, error) {
		return archiveFunc(func(w io.Writer) error {
			return writeZip(w, zipFile, owner)
		}), nil
	}
}

func writeZip(w io.Writer, zipFile string, owner Owner) error {
	zr, err := zip.OpenReader(zipFile)
	if err != nil {
		return fmt.Errorf("opening %q: %w", zipFile, err)
	}
	defer zr.Close()

	tw := tar.NewWriter(w)
	for _, f := range zr.File {
		name := path.Clean(f.Name)
		if path.IsAbs(name) || name == ".." || len(name) > 2 && name[:3] == "../" {
			return fmt.Errorf("illegal entry %q in %q", f.Name, zipFile)
		}

		fi := f.FileInfo()
		header := &tar.Header{
			Name: name,
			Mode: int64(fi.Mode().Perm()),
		}
		if fi.IsDir() {
			header.Typeflag = tar.TypeDir
			header.Name += "/"
			if header.Mode == 0 {
				header.Mode = 0o755
			}
		} else {
			header.Typeflag = tar.TypeReg
			header.Size = int64(f.UncompressedSize64)
			if header.Mode == 0 {
				header.Mode = 0o644
			}
		}
		own(header, owner)

		if err := tw.WriteHeader(header); err != nil {
			return err
		}
		if fi.IsDir() {
			continue
		}
		if err := copyZipEntry(tw, f); err != nil {
			return err
		}
	}
	return tw.Close()
}

func copyZipEntry(w io.Writer, f *zip.File) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("reading %q: %w", f.Name, err)
	}
	defer rc.Close()

	_, err = io.Copy(w, rc)
	return err
}

// FromTarFile re-owns the entries of an existing, optionally gzipped, tarball.
func FromTarFile(tarFile string) Content {
	return func(owner Owner) (TarArchive, error) {
		return archiveFunc(func(w io.Writer) error {
			return writeTar(w, tarFile, owner)
		}), nil
	}
}

func writeTar(w io.Writer, tarFile string, owner Owner) error {
	f, err := os.Open(tarFile)
	if err != nil {
		return fmt.Errorf("opening %q: %w", tarFile, err)
	}
	defer f.Close()

	r, err := Decompress(f)
	if err != nil {
		return fmt.Errorf("reading %q: %w", tarFile, err)
	}

	tr := tar.NewReader(r)
	tw := tar.NewWriter(w)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("reading %q: %w", tarFile, err)
		}
		own(header, owner)
		if err := tw.WriteHeader(header); err != nil {
			return err
		}
		if _, err := io.Copy(tw, tr); err != nil {
			return err
		}
	}
	return tw.Close()
}

// Decompress transparently gunzips a stream that starts with the gzip magic number.
func Decompress(src io.Reader) (io.Reader, error) {
	r := bufio.NewReader(src)
	magic, err := r.Peek(2)
	if err != nil && err != io.EOF {
		return nil, err
	}
	if len(magic) == 2 && magic[0] == 0x1f && magic[1] == 0x8b {
		return gzip.NewReader(r)
	}
	return r, nil
}
