package report

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"

	"git.0xdad.com/tblyler/medreminder/apperr"
	"gopkg.in/yaml.v3"
)

// Artifact formats
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// ArtifactStore persists generated reports
type ArtifactStore interface {
	Save(report *Report) (string, error)
}

// DirArtifacts writes each report to its own file in a directory
type DirArtifacts struct {
	dir    string
	format string
	rand   func() uint32
}

// NewDirArtifacts for dir in the given format, json or yaml
func NewDirArtifacts(dir string, format string) (*DirArtifacts, error) {
	switch format {
	case FormatJSON, FormatYAML:
	default:
		return nil, fmt.Errorf("unsupported report format %q", format)
	}

	return &DirArtifacts{
		dir:    dir,
		format: format,
		rand:   rand.Uint32,
	}, nil
}

// Filename of a report artifact, the random suffix keeps reports generated in
// the same second apart
func (a *DirArtifacts) Filename(report *Report) string {
	return fmt.Sprintf(
		"medication_report_user%s_%s_%s_%d.%s",
		report.UserID,
		report.ReportType,
		report.GeneratedAt.Format("20060102_150405"),
		a.rand(),
		a.format,
	)
}

func (a *DirArtifacts) encode(report *Report) ([]byte, error) {
	if a.format == FormatYAML {
		return yaml.Marshal(report)
	}

	return json.MarshalIndent(report, "", "  ")
}

// Save a report, returning the path it was written to
func (a *DirArtifacts) Save(report *Report) (string, error) {
	data, err := a.encode(report)
	if err != nil {
		return "", apperr.New(apperr.KindArtifactPersistFailed, "user "+report.UserID.String(), fmt.Errorf("failed to encode report: %w", err))
	}

	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return "", apperr.New(apperr.KindArtifactPersistFailed, "user "+report.UserID.String(), fmt.Errorf("failed to create reports directory %s: %w", a.dir, err))
	}

	path := filepath.Join(a.dir, a.Filename(report))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", apperr.New(apperr.KindArtifactPersistFailed, "user "+report.UserID.String(), fmt.Errorf("failed to write report %s: %w", path, err))
	}

	return path, nil
}
