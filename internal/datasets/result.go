package datasets

import (
	"archive/tar"
	"archive/zip"
	"bufio"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rtm0/cdsstore/internal/dataset"
)

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zipMagic  = []byte("PK\x03\x04")
)

// OpenResult reads a downloaded CDS result. A single NetCDF file is read
// directly; a tar.gz or zip archive is unpacked into tempDir and its NetCDF
// members are concatenated along time in name order.
func OpenResult(resultPath, tempDir string, extraCoords ...string) (*dataset.Dataset, error) {
	magic, err := readMagic(resultPath)
	if err != nil {
		return nil, err
	}
	var files []string
	switch {
	case bytes.HasPrefix(magic, gzipMagic):
		files, err = extractTarGz(resultPath, tempDir)
	case bytes.HasPrefix(magic, zipMagic):
		files, err = extractZip(resultPath, tempDir)
	default:
		return dataset.ReadNetCDF(resultPath, extraCoords...)
	}
	if err != nil {
		return nil, fmt.Errorf("cannot unpack %s: %w", resultPath, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("archive %s contains no NetCDF files", resultPath)
	}
	sort.Strings(files)
	parts := make([]*dataset.Dataset, 0, len(files))
	for _, f := range files {
		ds, err := dataset.ReadNetCDF(f, extraCoords...)
		if err != nil {
			return nil, err
		}
		parts = append(parts, ds)
	}
	return dataset.Concat("time", parts...)
}

func readMagic(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	magic, err := bufio.NewReader(f).Peek(4)
	if err != nil && err != io.EOF {
		return nil, err
	}
	return magic, nil
}

func extractTarGz(path, dir string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer gz.Close()

	var files []string
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return files, nil
		}
		if err != nil {
			return nil, err
		}
		if hdr.Typeflag != tar.TypeReg || !isNetCDF(hdr.Name) {
			continue
		}
		dst, err := member(dir, hdr.Name)
		if err != nil {
			return nil, err
		}
		if err := writeMember(dst, tr); err != nil {
			return nil, err
		}
		files = append(files, dst)
	}
}

func extractZip(path, dir string) ([]string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	var files []string
	for _, zf := range zr.File {
		if zf.FileInfo().IsDir() || !isNetCDF(zf.Name) {
			continue
		}
		dst, err := member(dir, zf.Name)
		if err != nil {
			return nil, err
		}
		rc, err := zf.Open()
		if err != nil {
			return nil, err
		}
		err = writeMember(dst, rc)
		rc.Close()
		if err != nil {
			return nil, err
		}
		files = append(files, dst)
	}
	return files, nil
}

func isNetCDF(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), ".nc")
}

// member maps an archive member name to a path below dir, keeping its
// directories so equal base names do not collide.
func member(dir, name string) (string, error) {
	rel := strings.TrimPrefix(filepath.Clean("/"+name), "/")
	if rel == "" {
		return "", fmt.Errorf("invalid archive member %q", name)
	}
	return filepath.Join(dir, rel), nil
}

func writeMember(dst string, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
