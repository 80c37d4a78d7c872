package convert

import (
	"image"
	"image/color"

	"simcam-go/internal/types"
)

// cityScapes is indexed by semantic tag.
var cityScapes = []color.RGBA{
	{0, 0, 0, 255},       // unlabeled
	{70, 70, 70, 255},    // building
	{100, 40, 40, 255},   // fence
	{55, 90, 80, 255},    // other
	{220, 20, 60, 255},   // pedestrian
	{153, 153, 153, 255}, // pole
	{157, 234, 50, 255},  // road line
	{128, 64, 128, 255},  // road
	{244, 35, 232, 255},  // sidewalk
	{107, 142, 35, 255},  // vegetation
	{0, 0, 142, 255},     // vehicle
	{102, 102, 156, 255}, // wall
	{220, 220, 0, 255},   // traffic sign
	{70, 130, 180, 255},  // sky
	{81, 0, 81, 255},     // ground
	{150, 100, 100, 255}, // bridge
	{230, 150, 140, 255}, // rail track
	{180, 165, 180, 255}, // guard rail
	{250, 170, 30, 255},  // traffic light
	{110, 190, 160, 255}, // static
	{170, 120, 50, 255},  // dynamic
	{45, 60, 150, 255},   // water
	{145, 170, 100, 255}, // terrain
}

// PaletteColor returns the CityScapes colour for a semantic tag. Tags past the
// end of the table render as unlabeled.
func PaletteColor(tag uint8) color.RGBA {
	if int(tag) >= len(cityScapes) {
		return cityScapes[0]
	}
	return cityScapes[tag]
}

// CityScapesPalette colours each pixel by the semantic tag stored in its red
// channel.
func CityScapesPalette(frame types.Frame) (image.Image, error) {
	if err := frame.CheckPayload(); err != nil {
		return nil, err
	}
	img := image.NewRGBA(image.Rect(0, 0, frame.Width, frame.Height))
	n := frame.Width * frame.Height
	for i := 0; i < n; i++ {
		c := PaletteColor(frame.Payload[i*types.BytesPerPixel+2])
		dst := img.Pix[i*4 : i*4+4]
		dst[0], dst[1], dst[2], dst[3] = c.R, c.G, c.B, c.A
	}
	return img, nil
}
