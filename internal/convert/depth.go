package convert

import (
	"image"
	"math"

	"simcam-go/internal/types"
)

const depthScale = 256*256*256 - 1

// normalizedDepth decodes the 24-bit depth packed into R, G and B, in [0, 1].
func normalizedDepth(px []byte) float64 {
	b, g, r := float64(px[0]), float64(px[1]), float64(px[2])
	return (r + g*256 + b*256*256) / depthScale
}

// Depth renders normalized depth as linear grayscale, near is dark.
func Depth(frame types.Frame) (image.Image, error) {
	return grayDepth(frame, func(d float64) float64 { return d })
}

// LogarithmicDepth renders depth on a log scale so near detail stays visible.
func LogarithmicDepth(frame types.Frame) (image.Image, error) {
	return grayDepth(frame, func(d float64) float64 {
		v := 1 + math.Log(d)/5.70378
		return math.Max(0, math.Min(1, v))
	})
}

func grayDepth(frame types.Frame, scale func(float64) float64) (image.Image, error) {
	if err := frame.CheckPayload(); err != nil {
		return nil, err
	}
	img := image.NewGray(image.Rect(0, 0, frame.Width, frame.Height))
	n := frame.Width * frame.Height
	for i := 0; i < n; i++ {
		d := normalizedDepth(frame.Payload[i*types.BytesPerPixel : i*types.BytesPerPixel+3])
		img.Pix[i] = uint8(math.Round(scale(d) * 255))
	}
	return img, nil
}
