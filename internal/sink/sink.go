// Package sink writes camera frames to the capture output tree.
package sink

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"

	"simcam-go/internal/convert"
	"simcam-go/internal/imageio"
	"simcam-go/internal/types"
)

// Options configures a Sink.
type Options struct {
	OutputRoot  string
	Format      imageio.Format
	Quality     int
	Conversions *convert.Table
}

// Stats counts sink outcomes since construction.
type Stats struct {
	Written uint64 `json:"frames_written_total"`
	Failed  uint64 `json:"frames_failed_total"`
}

// Sink persists frames under <root>/<session>/<kind>/<index>.<ext>.
// It is safe for concurrent use.
type Sink struct {
	root        string
	encoder     imageio.Encoder
	conversions *convert.Table

	written atomic.Uint64
	failed  atomic.Uint64
}

// New validates opts and returns a Sink. A nil conversion table uses the
// rgb/segment defaults.
func New(opts Options) (*Sink, error) {
	if opts.OutputRoot == "" {
		return nil, errors.New("sink: output root is required")
	}
	format := opts.Format
	if format == "" {
		format = imageio.JPEG
	}
	quality := opts.Quality
	if quality == 0 {
		quality = imageio.DefaultQuality
	}
	enc, err := imageio.NewEncoder(format, quality)
	if err != nil {
		return nil, fmt.Errorf("sink: %w", err)
	}
	table := opts.Conversions
	if table == nil {
		table = convert.DefaultTable()
	}
	return &Sink{
		root:        opts.OutputRoot,
		encoder:     enc,
		conversions: table,
	}, nil
}

// Root is the output root directory.
func (s *Sink) Root() string {
	return s.root
}

// Path returns where a frame of kind in session is stored.
func (s *Sink) Path(session string, kind types.SensorKind, index int) string {
	return filepath.Join(s.root, session, string(kind), strconv.Itoa(index)+"."+s.encoder.Ext())
}

// Record converts frame with the conversion configured for kind and writes it.
// An unknown kind or a session key that is not a single path element returns
// *types.ConfigurationError and writes nothing.
func (s *Sink) Record(frame types.Frame, kind types.SensorKind, session string) error {
	err := s.record(frame, kind, session)
	if err != nil {
		s.failed.Add(1)
		return err
	}
	s.written.Add(1)
	return nil
}

func (s *Sink) record(frame types.Frame, kind types.SensorKind, session string) error {
	conv, err := s.conversions.Lookup(kind)
	if err != nil {
		return err
	}
	if err := types.CheckSession(session); err != nil {
		return err
	}

	img, err := conv(frame)
	if err != nil {
		return &types.DecodeError{Path: fmt.Sprintf("%s/frame %d", kind, frame.Index), Err: err}
	}

	dir := filepath.Join(s.root, session, string(kind))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &types.FilesystemError{Op: "mkdir", Path: dir, Err: err}
	}
	path := s.Path(session, kind, frame.Index)
	if err := imageio.WriteFile(path, s.encoder, img); err != nil {
		return &types.FilesystemError{Op: "write", Path: path, Err: err}
	}
	return nil
}

// Stats returns a snapshot of the counters.
func (s *Sink) Stats() Stats {
	return Stats{
		Written: s.written.Load(),
		Failed:  s.failed.Load(),
	}
}
