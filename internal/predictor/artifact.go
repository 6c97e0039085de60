package predictor

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// ArtifactVersion is the on-disk format version written by Save
const ArtifactVersion = 1

// Artifact is a trained model together with the vocabulary it was trained on
type Artifact struct {
	Model      *Linear
	Vocabulary []string
}

type artifactFile struct {
	Version    int      `json:"version"`
	VocabSize  int      `json:"vocab_size"`
	Window     int      `json:"window"`
	Weights    []byte   `json:"weights"`
	Vocabulary []string `json:"vocabulary"`
}

// Save writes the artifact as JSON to w
func Save(w io.Writer, a Artifact) error {
	if a.Model == nil {
		return errors.New("artifact has no model")
	}
	if len(a.Vocabulary) != a.Model.vocabSize {
		return errors.Errorf("vocabulary has %d tokens, model expects %d", len(a.Vocabulary), a.Model.vocabSize)
	}

	weights, err := a.Model.weights.MarshalBinary()
	if err != nil {
		return errors.Wrap(err, "encoding weights")
	}

	enc := json.NewEncoder(w)
	if err := enc.Encode(artifactFile{
		Version:    ArtifactVersion,
		VocabSize:  a.Model.vocabSize,
		Window:     a.Model.window,
		Weights:    weights,
		Vocabulary: a.Vocabulary,
	}); err != nil {
		return errors.Wrap(err, "writing artifact")
	}
	return nil
}

// Load reads an artifact written by Save. Any decode failure is reported
// as ErrModelUnavailable.
func Load(r io.Reader) (*Artifact, error) {
	var f artifactFile
	if err := json.NewDecoder(r).Decode(&f); err != nil {
		return nil, errors.Wrapf(ErrModelUnavailable, "decoding artifact: %v", err)
	}
	if f.Version != ArtifactVersion {
		return nil, errors.Wrapf(ErrModelUnavailable, "unsupported artifact version %d", f.Version)
	}
	if f.VocabSize <= 0 || f.Window <= 0 {
		return nil, errors.Wrapf(ErrModelUnavailable, "invalid shape: vocab_size=%d window=%d", f.VocabSize, f.Window)
	}
	if len(f.Vocabulary) != f.VocabSize {
		return nil, errors.Wrapf(ErrModelUnavailable, "vocabulary has %d tokens, header says %d", len(f.Vocabulary), f.VocabSize)
	}

	weights := &mat.Dense{}
	if err := weights.UnmarshalBinary(f.Weights); err != nil {
		return nil, errors.Wrapf(ErrModelUnavailable, "decoding weights: %v", err)
	}
	rows, cols := weights.Dims()
	if rows != f.VocabSize || cols != featureWidth(f.VocabSize) {
		return nil, errors.Wrapf(ErrModelUnavailable, "weights are %dx%d, expected %dx%d",
			rows, cols, f.VocabSize, featureWidth(f.VocabSize))
	}

	return &Artifact{
		Model: &Linear{
			vocabSize: f.VocabSize,
			window:    f.Window,
			weights:   weights,
		},
		Vocabulary: f.Vocabulary,
	}, nil
}

// SaveFile writes the artifact to path, creating parent directories
func SaveFile(path string, a Artifact) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(err, "creating model directory")
	}

	file, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "creating %s", path)
	}

	if err := Save(file, a); err != nil {
		file.Close()
		return err
	}
	return errors.Wrapf(file.Close(), "closing %s", path)
}

// LoadFile reads an artifact from path
func LoadFile(path string) (*Artifact, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(ErrModelUnavailable, "opening %s: %v", path, err)
	}
	defer file.Close()

	a, err := Load(file)
	if err != nil {
		return nil, errors.WithMessage(err, path)
	}
	return a, nil
}
