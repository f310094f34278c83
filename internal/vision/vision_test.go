package vision_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadzzz/bmo/internal/vision"
)

// fakeClassifier treats the image bytes as a list of one-byte signatures and
// matches signatures by exact value.
type fakeClassifier struct {
	err      error
	compares int
}

func (f *fakeClassifier) Detect(_ context.Context, image []byte) ([]vision.Signature, error) {
	if f.err != nil {
		return nil, f.err
	}
	sigs := make([]vision.Signature, 0, len(image))
	for _, b := range image {
		sigs = append(sigs, vision.Signature{float32(b)})
	}
	return sigs, nil
}

func (f *fakeClassifier) Compare(sig vision.Signature, enrolled []vision.Signature) bool {
	f.compares++
	for _, e := range enrolled {
		if e[0] == sig[0] {
			return true
		}
	}
	return false
}

func TestClassify_MatchesAnyEnrolled(t *testing.T) {
	c := &fakeClassifier{}
	a := vision.NewAdapter(c, vision.NewEnrolled(vision.Signature{1}, vision.Signature{2}))

	got, err := a.Classify(context.Background(), []byte{2, 9})

	require.NoError(t, err)
	assert.Equal(t, []vision.FaceMatch{{MatchesEnrolled: true}, {MatchesEnrolled: false}}, got)
}

func TestClassify_NoFaces(t *testing.T) {
	a := vision.NewAdapter(&fakeClassifier{}, vision.NewEnrolled(vision.Signature{1}))

	got, err := a.Classify(context.Background(), nil)

	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestClassify_EmptyEnrolledNeverMatches(t *testing.T) {
	c := &fakeClassifier{}
	a := vision.NewAdapter(c, vision.NewEnrolled())

	got, err := a.Classify(context.Background(), []byte{1, 2, 3})

	require.NoError(t, err)
	require.Len(t, got, 3)
	for _, m := range got {
		assert.False(t, m.MatchesEnrolled)
	}
	assert.Zero(t, c.compares, "Compare must not run without enrolled faces")
}

func TestClassify_ErrorPropagates(t *testing.T) {
	boom := errors.New("corrupt jpeg")
	a := vision.NewAdapter(&fakeClassifier{err: boom}, vision.NewEnrolled(vision.Signature{1}))

	_, err := a.Classify(context.Background(), []byte{1})

	require.Error(t, err)
	assert.ErrorIs(t, err, vision.ErrClassification)
	assert.ErrorIs(t, err, boom)
}

func TestLoadEnrolled(t *testing.T) {
	dir := t.TempDir()
	admin := filepath.Join(dir, "admin.jpg")
	blank := filepath.Join(dir, "blank.jpg")
	require.NoError(t, os.WriteFile(admin, []byte{7, 8}, 0o600))
	require.NoError(t, os.WriteFile(blank, nil, 0o600))

	enrolled := vision.LoadEnrolled(context.Background(), &fakeClassifier{},
		[]string{admin, blank, filepath.Join(dir, "missing.jpg")})

	assert.Equal(t, 1, enrolled.Len())

	a := vision.NewAdapter(&fakeClassifier{}, enrolled)
	got, err := a.Classify(context.Background(), []byte{7, 8})
	require.NoError(t, err)
	assert.True(t, got[0].MatchesEnrolled, "first face of the file is enrolled")
	assert.False(t, got[1].MatchesEnrolled)
}

func TestLoadEnrolled_DetectFailureYieldsEmptySet(t *testing.T) {
	dir := t.TempDir()
	admin := filepath.Join(dir, "admin.jpg")
	require.NoError(t, os.WriteFile(admin, []byte{1}, 0o600))

	enrolled := vision.LoadEnrolled(context.Background(),
		&fakeClassifier{err: errors.New("models missing")}, []string{admin})

	assert.Zero(t, enrolled.Len())
}

func TestUnavailable(t *testing.T) {
	cause := errors.New("no shape predictor")
	a := vision.NewAdapter(vision.Unavailable(cause), vision.NewEnrolled())

	_, err := a.Classify(context.Background(), []byte{1})

	assert.ErrorIs(t, err, vision.ErrClassification)
	assert.ErrorIs(t, err, cause)
	assert.Zero(t, a.Enrolled().Len())
}
