package evidence

import (
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"flaptrace/collectors"
)

type Manifest struct {
	CaseID    string                `json:"case_id"`
	CreatedAt string                `json:"created_at"`
	Artifacts []collectors.Artifact `json:"artifacts"`
	Metadata  map[string]string     `json:"metadata,omitempty"`
}

// BuildManifest walks outputDir and hashes every regular file into an
// artifact record. The manifest file itself is excluded so the hash set
// stays stable across re-runs of the build step.
func BuildManifest(outputDir, caseID string, metadata map[string]string) (Manifest, error) {
	m := Manifest{
		CaseID:    caseID,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Metadata:  metadata,
	}

	err := filepath.WalkDir(outputDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(outputDir, path)
		if err != nil {
			return err
		}
		if rel == "manifest.json" {
			return nil
		}
		sum, size, err := SHA256File(path)
		if err != nil {
			return err
		}
		m.Artifacts = append(m.Artifacts, collectors.Artifact{
			RelativePath: filepath.ToSlash(rel),
			CollectedAt:  time.Now().UTC().Format(time.RFC3339),
			SizeBytes:    size,
			SHA256:       sum,
		})
		return nil
	})
	return m, err
}

func WriteManifest(outputDir string, m Manifest) error {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	path := filepath.Join(outputDir, "manifest.json")
	return os.WriteFile(path, b, 0o600)
}
