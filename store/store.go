// Package store manages the on-disk layout of one run's artifacts. Pure path
// and existence bookkeeping; no business logic.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"video-factory/types"
)

// Fixed roles within a run directory. Scene images use the "scene-N-image"
// role family.
const (
	RoleScript     = "script"
	RoleVoiceover  = "voiceover"
	RoleTiming     = "timing"
	RoleSubtitles  = "subtitles"
	RoleMusic      = "music"
	RoleFinalVideo = "final-video"
	RoleState      = "state"
)

var sceneRole = regexp.MustCompile(`^scene-(\d+)-image$`)

// SceneImageRole names the artifact role for the 1-based scene ordinal
func SceneImageRole(ordinal int) string {
	return fmt.Sprintf("scene-%d-image", ordinal)
}

// Store lays out one run's directory under a base output dir
type Store struct {
	baseDir string
	runID   string
}

// New creates the store for a run and its directory on disk
func New(baseDir, runID string) (*Store, error) {
	s := &Store{baseDir: baseDir, runID: runID}
	if err := os.MkdirAll(s.Dir(), 0755); err != nil {
		return nil, fmt.Errorf("create run dir: %w", err)
	}
	return s, nil
}

// Dir is the run's root directory: {base}/{timestamp}-{slug}
func (s *Store) Dir() string {
	return filepath.Join(s.baseDir, s.runID)
}

// Path maps a logical role to its fixed relative location inside the run dir.
// The mapping is stable so re-running the same input lands artifacts at the
// same places and cache hits can materialize there.
func (s *Store) Path(role string) (string, error) {
	switch role {
	case RoleScript:
		return filepath.Join(s.Dir(), "script.json"), nil
	case RoleVoiceover:
		return filepath.Join(s.Dir(), "voiceover.mp3"), nil
	case RoleTiming:
		return filepath.Join(s.Dir(), "timing.json"), nil
	case RoleSubtitles:
		return filepath.Join(s.Dir(), "subtitles.srt"), nil
	case RoleMusic:
		return filepath.Join(s.Dir(), "music.mp3"), nil
	case RoleFinalVideo:
		return filepath.Join(s.Dir(), "final-video.mp4"), nil
	case RoleState:
		return filepath.Join(s.Dir(), "pipeline-state.json"), nil
	}
	if m := sceneRole.FindStringSubmatch(role); m != nil {
		n, _ := strconv.Atoi(m[1])
		return filepath.Join(s.Dir(), "scenes", fmt.Sprintf("scene-%03d.png", n)), nil
	}
	return "", fmt.Errorf("unknown artifact role %q", role)
}

// Reserve returns the path for role and makes sure its parent directory
// exists, so a stage adapter can write straight to it
func (s *Store) Reserve(role string) (string, error) {
	path, err := s.Path(role)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("reserve %s: %w", role, err)
	}
	return path, nil
}

// Finalize checks a reserved path was actually produced and returns its ref
func (s *Store) Finalize(role string) (types.ArtifactRef, error) {
	path, err := s.Path(role)
	if err != nil {
		return types.ArtifactRef{}, err
	}
	fi, err := os.Stat(path)
	if err != nil {
		return types.ArtifactRef{}, fmt.Errorf("finalize %s: %w", role, err)
	}
	if fi.Size() == 0 {
		return types.ArtifactRef{}, fmt.Errorf("finalize %s: empty artifact at %s", role, path)
	}
	return types.ArtifactRef{Role: role, Path: path}, nil
}

// Exists reports whether the artifact for role is already on disk, for
// resumability checks
func (s *Store) Exists(role string) bool {
	path, err := s.Path(role)
	if err != nil {
		return false
	}
	fi, err := os.Stat(path)
	return err == nil && fi.Size() > 0
}
