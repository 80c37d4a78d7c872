package sink

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"simcam-go/internal/convert"
	"simcam-go/internal/imageio"
	"simcam-go/internal/types"
)

func testFrame(index, w, h int) types.Frame {
	payload := make([]byte, w*h*types.BytesPerPixel)
	for i := range payload {
		payload[i] = byte(i % 23)
	}
	return types.Frame{Index: index, Width: w, Height: h, Payload: payload}
}

func newTestSink(t *testing.T, format imageio.Format) *Sink {
	t.Helper()
	s, err := New(Options{OutputRoot: t.TempDir(), Format: format})
	require.NoError(t, err)
	return s
}

func listFiles(t *testing.T, dir string) []string {
	t.Helper()
	var names []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			rel, _ := filepath.Rel(dir, path)
			names = append(names, filepath.ToSlash(rel))
		}
		return nil
	})
	require.NoError(t, err)
	return names
}

func TestRecordWritesOneFilePerKind(t *testing.T) {
	s := newTestSink(t, imageio.PNG)

	for _, kind := range []types.SensorKind{types.KindRGB, types.KindSegment} {
		require.NoError(t, s.Record(testFrame(42, 4, 3), kind, "run1"))
	}

	assert.ElementsMatch(t, []string{"run1/rgb/42.png", "run1/segment/42.png"}, listFiles(t, s.Root()))

	img, err := imageio.DecodeFile(s.Path("run1", types.KindSegment, 42))
	require.NoError(t, err)
	assert.Equal(t, 4, img.Bounds().Dx())
	assert.Equal(t, 3, img.Bounds().Dy())
	assert.Equal(t, Stats{Written: 2}, s.Stats())
}

func TestRecordDefaultsToJPEG(t *testing.T) {
	s := newTestSink(t, "")
	require.NoError(t, s.Record(testFrame(5, 8, 8), types.KindRGB, "run"))
	assert.Equal(t, []string{"run/rgb/5.jpeg"}, listFiles(t, s.Root()))
}

func TestRecordUnknownKind(t *testing.T) {
	s := newTestSink(t, imageio.PNG)

	err := s.Record(testFrame(1, 2, 2), "thermal", "run1")

	var cfgErr *types.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, types.SensorKind("thermal"), cfgErr.Kind)
	assert.Empty(t, listFiles(t, s.Root()))
	assert.Equal(t, Stats{Failed: 1}, s.Stats())
}

func TestRecordShortPayload(t *testing.T) {
	s := newTestSink(t, imageio.PNG)
	frame := testFrame(1, 2, 2)
	frame.Payload = frame.Payload[:5]

	err := s.Record(frame, types.KindRGB, "run1")

	var decErr *types.DecodeError
	require.True(t, errors.As(err, &decErr))
	assert.Empty(t, listFiles(t, s.Root()))
}

func TestRecordMkdirFailure(t *testing.T) {
	root := t.TempDir()
	// A regular file where the session directory should go.
	require.NoError(t, os.WriteFile(filepath.Join(root, "run1"), nil, 0o644))
	s, err := New(Options{OutputRoot: root, Format: imageio.PNG})
	require.NoError(t, err)

	err = s.Record(testFrame(1, 2, 2), types.KindRGB, "run1")

	var fsErr *types.FilesystemError
	require.True(t, errors.As(err, &fsErr))
	assert.Equal(t, "mkdir", fsErr.Op)
}

func TestRecordCustomTable(t *testing.T) {
	table, err := convert.NewTable(map[types.SensorKind]string{"depth": convert.NameDepth})
	require.NoError(t, err)
	s, err := New(Options{OutputRoot: t.TempDir(), Format: imageio.PNG, Conversions: table})
	require.NoError(t, err)

	require.NoError(t, s.Record(testFrame(3, 2, 2), "depth", "run"))
	require.Error(t, s.Record(testFrame(3, 2, 2), types.KindRGB, "run"))
}

func TestNewRejectsBadOptions(t *testing.T) {
	_, err := New(Options{})
	require.Error(t, err)

	_, err = New(Options{OutputRoot: t.TempDir(), Format: "gif"})
	require.Error(t, err)
}

func TestRecordConcurrent(t *testing.T) {
	s := newTestSink(t, imageio.PNG)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			kind := types.KindRGB
			if i%2 == 1 {
				kind = types.KindSegment
			}
			assert.NoError(t, s.Record(testFrame(i, 4, 4), kind, "run"))
		}(i)
	}
	wg.Wait()

	assert.Len(t, listFiles(t, s.Root()), 32)
	assert.Equal(t, uint64(32), s.Stats().Written)
}

func TestRecordRejectsOversizedFrame(t *testing.T) {
	s := newTestSink(t, imageio.PNG)
	// 1<<31 squared times four wraps to zero in int arithmetic.
	frame := types.Frame{Index: 1, Width: 1 << 31, Height: 1 << 31, Payload: []byte{}}

	var err error
	require.NotPanics(t, func() { err = s.Record(frame, types.KindRGB, "run1") })

	var decErr *types.DecodeError
	require.True(t, errors.As(err, &decErr))
	assert.Empty(t, listFiles(t, s.Root()))
	assert.Equal(t, Stats{Failed: 1}, s.Stats())
}

func TestRecordRejectsSessionOutsideRoot(t *testing.T) {
	parent := t.TempDir()
	s, err := New(Options{OutputRoot: filepath.Join(parent, "out"), Format: imageio.PNG})
	require.NoError(t, err)

	for _, session := range []string{"", ".", "..", "../../escaped", "../escaped", "a/b", `a\b`, "/abs"} {
		t.Run(session, func(t *testing.T) {
			err := s.Record(testFrame(1, 2, 2), types.KindRGB, session)

			var cfgErr *types.ConfigurationError
			require.True(t, errors.As(err, &cfgErr), "session %q: %v", session, err)
			assert.Equal(t, session, cfgErr.Session)
		})
	}
	assert.Empty(t, listFiles(t, parent))
}
