// Package archive gathers the artifacts of one provisioning run into a
// timestamped result directory.
package archive

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/runvoy/keyforge/internal/constants"
	appErrors "github.com/runvoy/keyforge/internal/errors"
	"github.com/runvoy/keyforge/internal/logger"
)

// maxDirAttempts bounds the numeric suffixes tried when two runs of the same
// project share a timestamp.
const maxDirAttempts = 10

// errSourceKept reports a copy that succeeded while the original stayed put.
var errSourceKept = errors.New("original could not be removed")

// Artifact is a file produced during the run.
type Artifact struct {
	Name string
	Path string
}

// Request describes what to archive.
type Request struct {
	ProjectID string
	RunAt     time.Time
	Artifacts []Artifact
	// APIKey is written to its own file since it has no file of its own.
	APIKey string
	// Manifest is marshalled to YAML as the run summary. Skipped when nil.
	Manifest any
}

// Moved records an artifact that now lives in the archive.
type Moved struct {
	Name string `yaml:"name"`
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// Result describes what was archived. Err is set when the directory could
// not be created; artifacts then stay at their original paths. Leftover lists
// original paths of archived artifacts that could not be removed.
type Result struct {
	Dir          string   `yaml:"dir,omitempty"`
	Moved        []Moved  `yaml:"moved,omitempty"`
	Missing      []string `yaml:"missing,omitempty"`
	Failed       []string `yaml:"failed,omitempty"`
	Leftover     []string `yaml:"leftover,omitempty"`
	ManifestPath string   `yaml:"manifest,omitempty"`
	APIKeyPath   string   `yaml:"api_key,omitempty"`
	Err          error    `yaml:"-"`
}

// PathOf returns where the named artifact ended up, falling back to its
// original path when it was not moved.
func (r Result) PathOf(a Artifact) string {
	for _, m := range r.Moved {
		if m.Name == a.Name {
			return m.To
		}
	}
	return a.Path
}

// Archiver moves artifacts under Root.
type Archiver struct {
	fs     afero.Fs
	root   string
	logger *slog.Logger
}

// New creates an Archiver rooted at root.
func New(fsys afero.Fs, root string, log *slog.Logger) *Archiver {
	if log == nil {
		log = logger.Discard()
	}
	return &Archiver{fs: fsys, root: root, logger: log}
}

// Archive creates <root>/<project>-<timestamp> and moves every existing
// artifact into it. Missing artifacts are skipped without error. Nothing
// already done is undone when a step fails.
func (a *Archiver) Archive(req Request) Result {
	log := a.logger.With(constants.ProjectIDLogField, req.ProjectID)
	var result Result

	dir, err := a.createRunDir(req.ProjectID, req.RunAt)
	if err != nil {
		log.Error("failed to create archive directory", "error", err)
		result.Err = appErrors.ErrArchive("failed to create archive directory", err)
		return result
	}
	result.Dir = dir

	for _, artifact := range req.Artifacts {
		if artifact.Path == "" {
			result.Missing = append(result.Missing, artifact.Name)
			continue
		}
		dest := filepath.Join(dir, filepath.Base(artifact.Path))
		moved, err := a.move(artifact.Path, dest)
		switch {
		case moved && errors.Is(err, errSourceKept):
			log.Warn("artifact archived but its original remains", "artifact", artifact.Name, "path", artifact.Path, "error", err)
			result.Moved = append(result.Moved, Moved{Name: artifact.Name, From: artifact.Path, To: dest})
			result.Leftover = append(result.Leftover, artifact.Path)
		case err != nil:
			log.Warn("failed to archive artifact", "artifact", artifact.Name, "error", err)
			result.Failed = append(result.Failed, artifact.Name)
		case !moved:
			log.Debug("artifact missing, skipping", "artifact", artifact.Name)
			result.Missing = append(result.Missing, artifact.Name)
		default:
			result.Moved = append(result.Moved, Moved{Name: artifact.Name, From: artifact.Path, To: dest})
		}
	}

	if req.APIKey != "" {
		path := filepath.Join(dir, constants.APIKeyFileName)
		if err := a.writePrivate(path, []byte(req.APIKey+"\n")); err != nil {
			log.Warn("failed to write api key file", "error", err)
			result.Failed = append(result.Failed, constants.APIKeyFileName)
		} else {
			result.APIKeyPath = path
		}
	}

	if req.Manifest != nil {
		path := filepath.Join(dir, constants.ArchiveManifestName)
		if err := a.writeManifest(path, req.Manifest); err != nil {
			log.Warn("failed to write run manifest", "error", err)
			result.Failed = append(result.Failed, constants.ArchiveManifestName)
		} else {
			result.ManifestPath = path
		}
	}

	log.Info("run archived", "dir", dir, "moved", len(result.Moved), "missing", len(result.Missing))
	return result
}

func (a *Archiver) createRunDir(projectID string, runAt time.Time) (string, error) {
	if err := a.fs.MkdirAll(a.root, constants.KeyDirPermissions); err != nil {
		return "", fmt.Errorf("create archive root: %w", err)
	}

	base := filepath.Join(a.root, projectID+"-"+runAt.Format(constants.ArchiveTimestampLayout))
	dir := base
	for attempt := 1; attempt <= maxDirAttempts; attempt++ {
		err := a.fs.Mkdir(dir, constants.KeyDirPermissions)
		if err == nil {
			if err := a.fs.Chmod(dir, constants.KeyDirPermissions); err != nil {
				return "", fmt.Errorf("restrict archive directory: %w", err)
			}
			return dir, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("create archive directory: %w", err)
		}
		dir = base + "-" + strconv.Itoa(attempt+1)
	}
	return "", fmt.Errorf("create archive directory: %s and %d alternatives exist", base, maxDirAttempts-1)
}

// move renames src to dest, copying when a rename is impossible (e.g. across
// file systems). It reports false when src does not exist, and true with
// errSourceKept when the copy landed but src could not be removed.
func (a *Archiver) move(src, dest string) (bool, error) {
	info, err := a.fs.Stat(src)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if err := a.fs.Rename(src, dest); err == nil {
		return true, nil
	}

	data, err := afero.ReadFile(a.fs, src)
	if err != nil {
		return false, err
	}
	if err := a.writeFile(dest, data, info.Mode().Perm()); err != nil {
		return false, err
	}
	if err := a.fs.Remove(src); err != nil {
		return true, fmt.Errorf("%w: %w", errSourceKept, err)
	}
	return true, nil
}

func (a *Archiver) writeManifest(path string, manifest any) error {
	data, err := yaml.Marshal(manifest)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	return a.writePrivate(path, data)
}

func (a *Archiver) writePrivate(path string, data []byte) error {
	return a.writeFile(path, data, constants.CredentialFilePermissions)
}

func (a *Archiver) writeFile(path string, data []byte, perm os.FileMode) error {
	f, err := a.fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return err
	}
	if err := a.fs.Chmod(path, perm); err != nil {
		_ = f.Close()
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
