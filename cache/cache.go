// Package cache maps stage fingerprints to previously produced artifacts so
// re-runs can skip external calls entirely.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"video-factory/stage"
	"video-factory/types"
)

// Entry is one persisted cache record
type Entry struct {
	Fingerprint string    `json:"fingerprint"`
	Stage       string    `json:"stage"`
	Artifact    string    `json:"artifact"` // blob path inside the cache dir
	CreatedAt   time.Time `json:"created_at"`
}

// Cache is an append-only, content-addressed artifact cache rooted at one
// directory. Writes for distinct fingerprints are independent files; equal
// fingerprints resolve last-writer-wins.
type Cache struct {
	dir string
	mu  sync.Mutex
}

// New opens (creating if needed) a cache directory
func New(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &Cache{dir: dir}, nil
}

// Fingerprint hashes stage identity, adapter version, and the canonical JSON
// serialization of the normalized input. A version bump changes every
// fingerprint for that stage, making superseded entries unreachable.
func Fingerprint(stageID, version string, input any) string {
	h := sha256.New()
	io.WriteString(h, stageID)
	io.WriteString(h, "\x00")
	io.WriteString(h, version)
	io.WriteString(h, "\x00")
	h.Write(canonicalJSON(input))
	return hex.EncodeToString(h.Sum(nil))
}

// canonicalJSON serializes input deterministically. encoding/json already
// sorts map keys; struct fields keep declaration order, which is fixed per
// adapter version.
func canonicalJSON(input any) []byte {
	data, err := json.Marshal(input)
	if err != nil {
		// Non-serializable inputs hash by their formatted value instead.
		return []byte(fmt.Sprintf("%#v", input))
	}
	return data
}

// NormalizeParams flattens a parameter map into a sorted key=value list so
// equal parameter sets always fingerprint identically.
func NormalizeParams(params map[string]string) []string {
	out := make([]string, 0, len(params))
	for k, v := range params {
		out = append(out, k+"="+types.NormalizeText(v))
	}
	sort.Strings(out)
	return out
}

// Lookup resolves a fingerprint to its cached artifact. A corrupt or
// incomplete entry is reported as a miss, never as a failure.
func (c *Cache) Lookup(fp string) (types.ArtifactRef, bool) {
	data, err := os.ReadFile(c.entryPath(fp))
	if err != nil {
		return types.ArtifactRef{}, false
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		log.Printf("[cache] %v, treating as miss", &stage.CacheCorruptionError{Fingerprint: fp, Err: err})
		return types.ArtifactRef{}, false
	}
	fi, err := os.Stat(e.Artifact)
	if err != nil || fi.Size() == 0 {
		if err == nil {
			err = errors.New("empty blob")
		}
		log.Printf("[cache] %v, treating as miss", &stage.CacheCorruptionError{Fingerprint: fp, Err: err})
		return types.ArtifactRef{}, false
	}
	return types.ArtifactRef{Role: e.Stage, Path: e.Artifact}, true
}

// Store copies the artifact into the cache and records the entry. The blob is
// written fully before the entry file, so a crash mid-store leaves at worst a
// missing entry, which reads as a miss.
func (c *Cache) Store(fp, stageID, artifactPath string) (Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	blob := c.blobPath(fp, filepath.Ext(artifactPath))
	if err := copyFile(artifactPath, blob); err != nil {
		return Entry{}, fmt.Errorf("cache blob: %w", err)
	}

	e := Entry{
		Fingerprint: fp,
		Stage:       stageID,
		Artifact:    blob,
		CreatedAt:   time.Now().UTC(),
	}
	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return Entry{}, err
	}
	if err := os.WriteFile(c.entryPath(fp), data, 0644); err != nil {
		return Entry{}, fmt.Errorf("cache entry: %w", err)
	}
	return e, nil
}

// CopyTo materializes a cached artifact at dest, so downstream stages see the
// same layout a fresh invocation would have produced
func (c *Cache) CopyTo(fp, dest string) error {
	ref, ok := c.Lookup(fp)
	if !ok {
		return fmt.Errorf("cache: no entry for %s", fp)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}
	return copyFile(ref.Path, dest)
}

func (c *Cache) entryPath(fp string) string {
	return filepath.Join(c.dir, fp+".json")
}

// blobPath keeps blobs namespaced apart from entry files; a .json artifact
// must not share its path with the fingerprint's entry record.
func (c *Cache) blobPath(fp, ext string) string {
	return filepath.Join(c.dir, fp+".blob"+ext)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
