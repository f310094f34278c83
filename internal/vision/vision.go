// Package vision turns camera images into face-match results against the
// operator's enrolled identities.
//
// Detection and comparison are delegated to a Classifier backend (see the
// dlib subpackage); this package owns the enrolled set and the policy that a
// face is known if it matches any enrolled signature.
package vision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
)

// ErrClassification marks a failed detection. Callers treat it as transient.
var ErrClassification = errors.New("classification failed")

// Signature is a face descriptor produced by a Classifier.
type Signature []float32

// FaceMatch is the classification of one detected face.
type FaceMatch struct {
	MatchesEnrolled bool
}

// Classifier is the face recognition backend.
type Classifier interface {
	// Detect returns one signature per face found in the image.
	Detect(ctx context.Context, image []byte) ([]Signature, error)

	// Compare reports whether sig is within the backend's match threshold
	// of any signature in enrolled.
	Compare(sig Signature, enrolled []Signature) bool
}

// Enrolled is the immutable set of known face signatures.
type Enrolled struct {
	sigs []Signature
}

// NewEnrolled builds an enrolled set from signatures.
func NewEnrolled(sigs ...Signature) Enrolled {
	return Enrolled{sigs: slices.Clone(sigs)}
}

// Len returns the number of enrolled signatures.
func (e Enrolled) Len() int { return len(e.sigs) }

// LoadEnrolled reads each image file and enrolls the first face found in it.
// Files that cannot be read or contain no face are skipped with a warning;
// when nothing loads the set is empty and no face will ever match.
func LoadEnrolled(ctx context.Context, c Classifier, paths []string) Enrolled {
	var sigs []Signature
	for _, path := range paths {
		sig, err := enrollFile(ctx, c, path)
		if err != nil {
			slog.Warn("face enrollment failed", "path", path, "error", err)
			continue
		}
		sigs = append(sigs, sig)
		slog.Info("enrolled face loaded", "path", path)
	}
	if len(sigs) == 0 {
		slog.Warn("no enrolled faces: patrol can only be cleared by the operator")
	}
	return Enrolled{sigs: sigs}
}

func enrollFile(ctx context.Context, c Classifier, path string) (Signature, error) {
	img, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	sigs, err := c.Detect(ctx, img)
	if err != nil {
		return nil, err
	}
	if len(sigs) == 0 {
		return nil, fmt.Errorf("no face found in %s", path)
	}
	return sigs[0], nil
}

// Adapter classifies images against a fixed enrolled set.
type Adapter struct {
	classifier Classifier
	enrolled   Enrolled
}

// NewAdapter creates an Adapter.
func NewAdapter(c Classifier, enrolled Enrolled) *Adapter {
	return &Adapter{classifier: c, enrolled: enrolled}
}

// Enrolled returns the adapter's enrolled set.
func (a *Adapter) Enrolled() Enrolled { return a.enrolled }

// Unavailable returns a Classifier whose every detection fails with cause.
// It stands in for a backend that could not be loaded.
func Unavailable(cause error) Classifier { return unavailable{cause: cause} }

type unavailable struct{ cause error }

func (u unavailable) Detect(context.Context, []byte) ([]Signature, error) { return nil, u.cause }

func (unavailable) Compare(Signature, []Signature) bool { return false }

// Classify detects faces in image and reports for each whether it matches
// an enrolled identity. Errors wrap ErrClassification.
func (a *Adapter) Classify(ctx context.Context, image []byte) ([]FaceMatch, error) {
	sigs, err := a.classifier.Detect(ctx, image)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrClassification, err)
	}

	matches := make([]FaceMatch, len(sigs))
	if a.enrolled.Len() == 0 {
		return matches, nil
	}
	for i, sig := range sigs {
		matches[i].MatchesEnrolled = a.classifier.Compare(sig, a.enrolled.sigs)
	}
	return matches, nil
}
