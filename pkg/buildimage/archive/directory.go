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
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/karrick/godirwalk"
	"github.com/moby/patternmatcher"
	"github.com/sirupsen/logrus"
)

// FromDirectory archives the content of a directory, skipping files that match the exclude patterns.
func FromDirectory(root string, excludes ...string) (Content, error) {
	matcher, err := patternmatcher.New(excludes)
	if err != nil {
		return nil, fmt.Errorf("invalid exclude patterns: %w", err)
	}

	return func(owner Owner) (TarArchive, error) {
		return archiveFunc(func(w io.Writer) error {
			return writeDirectory(w, root, matcher, owner)
		}), nil
	}, nil
}

func writeDirectory(w io.Writer, root string, matcher *patternmatcher.PatternMatcher, owner Owner) error {
	tw := tar.NewWriter(w)

	err := godirwalk.Walk(root, &godirwalk.Options{
		Callback: func(path string, de *godirwalk.Dirent) error {
			relPath, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			if relPath == "." {
				return nil
			}

			ignored, err := matcher.MatchesOrParentMatches(relPath)
			if err != nil {
				return err
			}
			if ignored {
				if de.IsDir() && skipDir(relPath, matcher) {
					return godirwalk.SkipThis
				}
				return nil
			}

			return addFile(tw, path, relPath, owner)
		},
	})
	if err != nil {
		return fmt.Errorf("archiving %q: %w", root, err)
	}
	return tw.Close()
}

// exclusion handling closely follows github.com/docker/docker/pkg/archive
func skipDir(relPath string, matcher *patternmatcher.PatternMatcher) bool {
	// No exceptions (!...) in patterns so just skip dir
	if !matcher.Exclusions() {
		return true
	}

	dirSlash := relPath + string(filepath.Separator)
	for _, pat := range matcher.Patterns() {
		if !pat.Exclusion() {
			continue
		}
		if strings.HasPrefix(pat.String()+string(filepath.Separator), dirSlash) {
			return false
		}
	}
	return true
}

func addFile(tw *tar.Writer, path, relPath string, owner Owner) error {
	fi, err := os.Lstat(path)
	if err != nil {
		return err
	}

	mode := fi.Mode()
	if mode&os.ModeSocket != 0 || mode&os.ModeNamedPipe != 0 {
		return nil
	}

	link := ""
	if mode&os.ModeSymlink != 0 {
		if link, err = os.Readlink(path); err != nil {
			return err
		}
		if filepath.IsAbs(link) {
			logrus.Warnf("Skipping %s. Only relative symlinks are supported.", path)
			return nil
		}
	}

	header, err := tar.FileInfoHeader(fi, link)
	if err != nil {
		return err
	}
	header.Name = filepath.ToSlash(relPath)
	if fi.IsDir() {
		header.Name += "/"
	}
	if runtime.GOOS == "windows" {
		header.Mode = int64(chmodTarEntry(os.FileMode(header.Mode)))
	}
	own(header, owner)

	if err := tw.WriteHeader(header); err != nil {
		return err
	}
	if !mode.IsRegular() {
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := io.Copy(tw, f); err != nil {
		return fmt.Errorf("writing real file %q: %w", path, err)
	}
	return nil
}

func own(header *tar.Header, owner Owner) {
	header.ModTime = ModTime
	header.AccessTime = time.Time{}
	header.ChangeTime = time.Time{}
	header.Uid = owner.UID
	header.Gid = owner.GID
	header.Uname = ""
	header.Gname = ""
}

// Code copied from https://github.com/moby/moby/blob/master/pkg/archive/archive_windows.go
func chmodTarEntry(perm os.FileMode) os.FileMode {
	// Remove group- and world-writable bits.
	perm &= 0o755

	// Add the x bit: make everything +x from windows
	perm |= 0o111

	return perm
}
