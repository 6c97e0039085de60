package model

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/xupit3r/slm/internal/eval"
	"github.com/xupit3r/slm/internal/predictor"
)

const manifestVersion = "1.0"

// manifestName is the manifest's file name without extension; model IDs may not use it
const manifestName = "manifest"

var (
	// ErrNotFound means the store has no model with the requested ID
	ErrNotFound = errors.New("model not found")

	// ErrChecksumMismatch means an artifact changed since it was stored
	ErrChecksumMismatch = errors.New("model checksum mismatch")

	// ErrInvalidID means the ID cannot be used as a file name
	ErrInvalidID = errors.New("invalid model id")

	validID = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)
)

// Record describes one trained model in the store
type Record struct {
	ID        string        `json:"id"`
	Path      string        `json:"path"`
	SizeBytes int64         `json:"size_bytes"`
	Checksum  string        `json:"checksum"`
	TrainedAt time.Time     `json:"trained_at"`
	LastUsed  time.Time     `json:"last_used"`
	UseCount  int           `json:"use_count"`
	VocabSize int           `json:"vocab_size"`
	Window    int           `json:"window"`
	Metrics   *eval.Metrics `json:"metrics,omitempty"`
}

// Manifest tracks stored models
type Manifest struct {
	Version string   `json:"version"`
	Models  []Record `json:"models"`
}

// Store keeps trained artifacts in a directory indexed by manifest.json.
// It is safe for concurrent use.
type Store struct {
	Dir string

	mu           sync.Mutex
	manifest     *Manifest
	manifestPath string
}

// NewStore opens or creates a store rooted at dir
func NewStore(dir string) (*Store, error) {
	// Expand home directory
	if len(dir) > 0 && dir[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dir = filepath.Join(home, dir[1:])
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create model directory: %w", err)
	}

	s := &Store{
		Dir:          dir,
		manifestPath: filepath.Join(dir, manifestName+".json"),
	}

	if err := s.loadManifest(); err != nil {
		return nil, err
	}

	return s, nil
}

// loadManifest loads the manifest from disk, creating it when missing
func (s *Store) loadManifest() error {
	data, err := os.ReadFile(s.manifestPath)
	if os.IsNotExist(err) {
		s.manifest = &Manifest{
			Version: manifestVersion,
			Models:  []Record{},
		}
		return s.saveManifest()
	}
	if err != nil {
		return fmt.Errorf("failed to read manifest: %w", err)
	}

	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return fmt.Errorf("failed to parse manifest: %w", err)
	}

	s.manifest = &manifest
	return nil
}

// saveManifest writes the manifest through a temp file and rename
func (s *Store) saveManifest() error {
	data, err := json.MarshalIndent(s.manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	tmp := s.manifestPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	if err := os.Rename(tmp, s.manifestPath); err != nil {
		return fmt.Errorf("failed to replace manifest: %w", err)
	}

	return nil
}

func (s *Store) find(id string) int {
	for i := range s.manifest.Models {
		if s.manifest.Models[i].ID == id {
			return i
		}
	}
	return -1
}

// List returns all stored models ordered by ID
func (s *Store) List() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	models := make([]Record, len(s.manifest.Models))
	copy(models, s.manifest.Models)
	sort.Slice(models, func(i, j int) bool { return models[i].ID < models[j].ID })
	return models
}

// Get returns a stored model by ID
func (s *Store) Get(id string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.find(id)
	if i < 0 {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s.manifest.Models[i], nil
}

// Has checks if a model is stored
func (s *Store) Has(id string) bool {
	_, err := s.Get(id)
	return err == nil
}

// Add registers the artifact at rec.Path. Size is read from disk and the
// checksum computed when empty. An existing record with the same ID is
// replaced but keeps its usage counters.
func (s *Store) Add(rec Record) error {
	if err := checkID(rec.ID); err != nil {
		return err
	}

	info, err := os.Stat(rec.Path)
	if err != nil {
		return fmt.Errorf("failed to stat model file: %w", err)
	}
	rec.SizeBytes = info.Size()

	if rec.Checksum == "" {
		if rec.Checksum, err = ComputeSHA256(rec.Path); err != nil {
			return fmt.Errorf("failed to checksum model file: %w", err)
		}
	}

	now := time.Now()
	if rec.TrainedAt.IsZero() {
		rec.TrainedAt = now
	}
	if rec.LastUsed.IsZero() {
		rec.LastUsed = now
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.find(rec.ID); i >= 0 {
		rec.UseCount = s.manifest.Models[i].UseCount
		s.manifest.Models[i] = rec
	} else {
		s.manifest.Models = append(s.manifest.Models, rec)
	}

	return s.saveManifest()
}

// SaveArtifact writes a to ModelPath(id) and registers it
func (s *Store) SaveArtifact(id string, a predictor.Artifact, metrics *eval.Metrics) (Record, error) {
	if err := checkID(id); err != nil {
		return Record{}, err
	}

	path := s.ModelPath(id)
	if err := predictor.SaveFile(path, a); err != nil {
		return Record{}, err
	}

	rec := Record{
		ID:        id,
		Path:      path,
		VocabSize: a.Model.VocabSize(),
		Window:    a.Model.Window(),
		Metrics:   metrics,
	}
	if err := s.Add(rec); err != nil {
		return Record{}, err
	}
	return s.Get(id)
}

// LoadArtifact verifies and decodes a stored model, then marks it used
func (s *Store) LoadArtifact(id string) (*predictor.Artifact, Record, error) {
	rec, err := s.Get(id)
	if err != nil {
		return nil, Record{}, err
	}

	valid, err := s.VerifyChecksum(id)
	if err != nil {
		return nil, rec, fmt.Errorf("%w: %v", predictor.ErrModelUnavailable, err)
	}
	if !valid {
		return nil, rec, fmt.Errorf("%w: %s", ErrChecksumMismatch, id)
	}

	a, err := predictor.LoadFile(rec.Path)
	if err != nil {
		return nil, rec, err
	}

	if err := s.UpdateLastUsed(id); err != nil {
		return nil, rec, err
	}
	return a, rec, nil
}

// Remove deletes a model file and its record
func (s *Store) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.find(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	if err := os.Remove(s.manifest.Models[i].Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete model file: %w", err)
	}

	s.manifest.Models = append(s.manifest.Models[:i], s.manifest.Models[i+1:]...)
	return s.saveManifest()
}

// UpdateLastUsed updates the last used timestamp for a model
func (s *Store) UpdateLastUsed(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.find(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	s.manifest.Models[i].LastUsed = time.Now()
	s.manifest.Models[i].UseCount++
	return s.saveManifest()
}

// TotalSize returns the total size of stored models in bytes
func (s *Store) TotalSize() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var total int64
	for _, rec := range s.manifest.Models {
		total += rec.SizeBytes
	}
	return total
}

// VerifyChecksum reports whether a model file still matches its checksum
func (s *Store) VerifyChecksum(id string) (bool, error) {
	rec, err := s.Get(id)
	if err != nil {
		return false, err
	}

	if rec.Checksum == "" {
		// No checksum to verify
		return true, nil
	}

	computed, err := ComputeSHA256(rec.Path)
	if err != nil {
		return false, err
	}

	return computed == rec.Checksum, nil
}

// checkID rejects IDs that are not plain file names or that would collide
// with the manifest
func checkID(id string) error {
	if !validID.MatchString(id) || strings.EqualFold(id, manifestName) {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}

// ModelPath returns the artifact path for a model ID
func (s *Store) ModelPath(id string) string {
	return filepath.Join(s.Dir, id+".json")
}

// ComputeSHA256 computes the SHA256 checksum of a file
func ComputeSHA256(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}

	return hex.EncodeToString(hash.Sum(nil)), nil
}
