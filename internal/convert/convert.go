// Package convert turns raw BGRA sensor payloads into displayable images.
package convert

import (
	"fmt"
	"image"
	"sort"

	"simcam-go/internal/types"
)

// Conversion maps one raw frame to an image. Implementations must not keep a
// reference to the frame payload.
type Conversion func(frame types.Frame) (image.Image, error)

// Conversion names accepted in configuration.
const (
	NameRaw              = "raw"
	NameCityScapes       = "city-scapes-palette"
	NameDepth            = "depth"
	NameLogarithmicDepth = "logarithmic-depth"
)

var named = map[string]Conversion{
	NameRaw:              Raw,
	NameCityScapes:       CityScapesPalette,
	NameDepth:            Depth,
	NameLogarithmicDepth: LogarithmicDepth,
}

// Names lists the known conversion names in sorted order.
func Names() []string {
	out := make([]string, 0, len(named))
	for name := range named {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// ByName resolves a conversion name.
func ByName(name string) (Conversion, bool) {
	c, ok := named[name]
	return c, ok
}

// DefaultNames is the kind-to-conversion mapping used when nothing is configured.
func DefaultNames() map[types.SensorKind]string {
	return map[types.SensorKind]string{
		types.KindRGB:     NameRaw,
		types.KindSegment: NameCityScapes,
	}
}

// Table is an immutable lookup from sensor kind to conversion.
type Table struct {
	entries map[types.SensorKind]Conversion
	names   map[types.SensorKind]string
}

// NewTable builds a table from kind-to-name pairs. An unknown name yields a
// *types.ConfigurationError.
func NewTable(byKind map[types.SensorKind]string) (*Table, error) {
	t := &Table{
		entries: make(map[types.SensorKind]Conversion, len(byKind)),
		names:   make(map[types.SensorKind]string, len(byKind)),
	}
	for kind, name := range byKind {
		c, ok := ByName(name)
		if !ok {
			return nil, &types.ConfigurationError{Kind: kind, Conversion: name}
		}
		t.entries[kind] = c
		t.names[kind] = name
	}
	return t, nil
}

// DefaultTable returns the rgb/segment table.
func DefaultTable() *Table {
	t, err := NewTable(DefaultNames())
	if err != nil {
		panic(fmt.Sprintf("default conversion table: %v", err))
	}
	return t
}

// Lookup returns the conversion for kind or a *types.ConfigurationError.
func (t *Table) Lookup(kind types.SensorKind) (Conversion, error) {
	c, ok := t.entries[kind]
	if !ok {
		return nil, &types.ConfigurationError{Kind: kind}
	}
	return c, nil
}

// Name returns the configured conversion name for kind, or "" if none.
func (t *Table) Name(kind types.SensorKind) string {
	return t.names[kind]
}

// Kinds lists the configured sensor kinds in sorted order.
func (t *Table) Kinds() []types.SensorKind {
	out := make([]types.SensorKind, 0, len(t.entries))
	for kind := range t.entries {
		out = append(out, kind)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Raw copies BGRA pixels into an RGBA image with full opacity.
func Raw(frame types.Frame) (image.Image, error) {
	if err := frame.CheckPayload(); err != nil {
		return nil, err
	}
	img := image.NewRGBA(image.Rect(0, 0, frame.Width, frame.Height))
	n := frame.Width * frame.Height
	for i := 0; i < n; i++ {
		src := frame.Payload[i*types.BytesPerPixel : i*types.BytesPerPixel+4]
		dst := img.Pix[i*4 : i*4+4]
		dst[0] = src[2]
		dst[1] = src[1]
		dst[2] = src[0]
		dst[3] = 0xff
	}
	return img, nil
}
