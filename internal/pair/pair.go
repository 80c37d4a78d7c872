// Package pair joins rgb and segment captures side by side.
//
// Frames are matched by position in each kind's lexicographically sorted
// listing, not by frame index. A missing or extra frame in either stream
// shifts every later pair.
package pair

import (
	"errors"
	"image"
	"image/draw"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"simcam-go/internal/imageio"
	"simcam-go/internal/types"
)

// Subdirectory names inside a session directory.
const (
	RGBDir     = "rgb"
	SegmentDir = "segment"
	ResultsDir = "results"
)

// Pair is one positional match and its output path.
type Pair struct {
	RGB     string `json:"rgb"`
	Segment string `json:"segment"`
	Output  string `json:"output"`
}

// Result describes one Combine call.
type Result struct {
	Session string `json:"session"`
	Skipped bool   `json:"skipped"`
	Written int    `json:"written"`
}

// Plan lists the pairs Combine would write for sessionDir.
func Plan(sessionDir string) ([]Pair, error) {
	rgb, err := listFlat(filepath.Join(sessionDir, RGBDir))
	if err != nil {
		return nil, err
	}
	segment, err := listRecursive(filepath.Join(sessionDir, SegmentDir))
	if err != nil {
		return nil, err
	}

	n := len(rgb)
	if len(segment) < n {
		n = len(segment)
	}
	results := filepath.Join(sessionDir, ResultsDir)
	pairs := make([]Pair, n)
	for i := 0; i < n; i++ {
		pairs[i] = Pair{
			RGB:     rgb[i],
			Segment: segment[i],
			Output:  filepath.Join(results, filepath.Base(rgb[i])),
		}
	}
	return pairs, nil
}

// Combine writes every positional pair of sessionDir into its results
// directory. If the results directory already exists the session counts as
// processed and nothing is written. A decode failure aborts the remaining
// pairs of the session.
func Combine(sessionDir string) (Result, error) {
	res := Result{Session: filepath.Base(sessionDir)}

	results := filepath.Join(sessionDir, ResultsDir)
	if err := os.Mkdir(results, 0o755); err != nil {
		if errors.Is(err, fs.ErrExist) {
			res.Skipped = true
			return res, nil
		}
		return res, &types.FilesystemError{Op: "mkdir", Path: results, Err: err}
	}

	pairs, err := Plan(sessionDir)
	if err != nil {
		return res, err
	}
	for _, p := range pairs {
		if err := writePair(p); err != nil {
			return res, err
		}
		res.Written++
	}
	return res, nil
}

func writePair(p Pair) error {
	rgb, err := imageio.DecodeFile(p.RGB)
	if err != nil {
		return &types.DecodeError{Path: p.RGB, Err: err}
	}
	segment, err := imageio.DecodeFile(p.Segment)
	if err != nil {
		return &types.DecodeError{Path: p.Segment, Err: err}
	}

	canvas := SideBySide(rgb, segment)

	format, err := imageio.FormatOf(p.Output)
	if err != nil {
		format = imageio.JPEG
	}
	enc, err := imageio.NewEncoder(format, imageio.DefaultQuality)
	if err != nil {
		return err
	}
	if err := imageio.WriteFile(p.Output, enc, canvas); err != nil {
		return &types.FilesystemError{Op: "write", Path: p.Output, Err: err}
	}
	return nil
}

// SideBySide pastes left at x=0 and right at x=left width on a canvas whose
// width is the sum of both widths and height the larger height. Uncovered
// canvas is black.
func SideBySide(left, right image.Image) *image.RGBA {
	lb, rb := left.Bounds(), right.Bounds()
	h := lb.Dy()
	if rb.Dy() > h {
		h = rb.Dy()
	}
	canvas := image.NewRGBA(image.Rect(0, 0, lb.Dx()+rb.Dx(), h))
	draw.Draw(canvas, canvas.Bounds(), image.Black, image.Point{}, draw.Src)
	draw.Draw(canvas, image.Rect(0, 0, lb.Dx(), lb.Dy()), left, lb.Min, draw.Src)
	draw.Draw(canvas, image.Rect(lb.Dx(), 0, lb.Dx()+rb.Dx(), rb.Dy()), right, rb.Min, draw.Src)
	return canvas
}

func listFlat(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, &types.FilesystemError{Op: "list", Path: dir, Err: err}
	}
	var files []string
	for _, entry := range entries {
		if !entry.Type().IsRegular() || hidden(entry.Name()) {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(files)
	return files, nil
}

func listRecursive(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir && errors.Is(err, fs.ErrNotExist) {
				return fs.SkipDir
			}
			return err
		}
		if d.Type().IsRegular() && !hidden(d.Name()) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, &types.FilesystemError{Op: "list", Path: dir, Err: err}
	}
	sort.Strings(files)
	return files, nil
}

// hidden matches dotfiles, including in-flight temporary writes.
func hidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
