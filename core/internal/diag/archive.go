package diag

import (
	"archive/tar"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
)

// tarGzDir packs srcDir into dstFile with the directory's base name as
// the top-level entry, so extraction recreates the collection tree.
func tarGzDir(srcDir string, dstFile string) error {
	f, err := os.Create(dstFile)
	if err != nil {
		return err
	}
	defer f.Close()

	gz := gzip.NewWriter(f)
	defer gz.Close()

	tarw := tar.NewWriter(gz)
	defer tarw.Close()

	root := filepath.Clean(srcDir)
	return filepath.WalkDir(root, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		rel, _ := filepath.Rel(root, path)
		name := filepath.ToSlash(rel)
		if name == "." {
			name = filepath.Base(root)
		} else {
			name = filepath.ToSlash(filepath.Join(filepath.Base(root), rel))
		}

		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return nil
		}
		hdr.Name = name
		if err := tarw.WriteHeader(hdr); err != nil {
			return nil
		}
		if info.IsDir() {
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		in, err := os.Open(path)
		if err != nil {
			return nil
		}
		defer in.Close()
		_, _ = io.Copy(tarw, in)
		return nil
	})
}
