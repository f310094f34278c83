// Package dlib implements the vision.Classifier interface with dlib's face
// recognition models via go-face.
//
// The models directory must contain shape_predictor_5_face_landmarks.dat,
// dlib_face_recognition_resnet_model_v1.dat and mmod_human_face_detector.dat.
package dlib

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	face "github.com/Kagami/go-face"

	"github.com/nadzzz/bmo/internal/vision"
)

// DefaultTolerance is the maximum Euclidean distance between two descriptors
// of the same person. Lower is stricter.
const DefaultTolerance = 0.6

// Recognizer detects faces and compares their 128-d descriptors.
type Recognizer struct {
	tolerance float64

	// go-face recognizers are not safe for concurrent use.
	mu  sync.Mutex
	rec *face.Recognizer
}

// New loads the dlib models from modelsDir. A non-positive tolerance falls
// back to DefaultTolerance.
func New(modelsDir string, tolerance float64) (*Recognizer, error) {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	rec, err := face.NewRecognizer(modelsDir)
	if err != nil {
		return nil, fmt.Errorf("loading face models from %s: %w", modelsDir, err)
	}
	return &Recognizer{tolerance: tolerance, rec: rec}, nil
}

// Detect returns a descriptor for every face in a JPEG image.
func (r *Recognizer) Detect(ctx context.Context, image []byte) ([]vision.Signature, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	start := time.Now()
	faces, err := r.rec.Recognize(image)
	r.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("recognizing faces: %w", err)
	}

	sigs := make([]vision.Signature, 0, len(faces))
	for _, f := range faces {
		sig := make(vision.Signature, len(f.Descriptor))
		copy(sig, f.Descriptor[:])
		sigs = append(sigs, sig)
	}

	slog.Debug("face detection complete", "faces", len(sigs), "duration", time.Since(start))
	return sigs, ctx.Err()
}

// Compare reports whether sig is within tolerance of any enrolled descriptor.
func (r *Recognizer) Compare(sig vision.Signature, enrolled []vision.Signature) bool {
	return Within(sig, enrolled, r.tolerance)
}

// Within reports whether the Euclidean distance from sig to any of enrolled
// is at most tolerance.
func Within(sig vision.Signature, enrolled []vision.Signature, tolerance float64) bool {
	query := descriptor(sig)
	limit := tolerance * tolerance
	for _, e := range enrolled {
		if face.SquaredEuclideanDistance(query, descriptor(e)) <= limit {
			return true
		}
	}
	return false
}

func descriptor(sig vision.Signature) face.Descriptor {
	var d face.Descriptor
	copy(d[:], sig)
	return d
}

// Close frees the dlib models.
func (r *Recognizer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rec.Close()
	return nil
}
