//go:build !gocv

package preprocess

import (
	"bytes"
	"image"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"
)

// pixels decodes the image, resizes it to SxS with bilinear interpolation and
// writes the planar RGB values scaled to [0, 1]. Decoders are registered by
// the images package.
func (p *Preprocessor) pixels(data []byte) ([]float32, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(ErrDecode, err.Error())
	}
	if img.Bounds().Empty() {
		return nil, errors.Wrap(ErrDecode, "image has no pixels")
	}

	size := p.spec.InputSize
	img = resize.Resize(uint(size), uint(size), img, resize.Bilinear)

	channelSize := size * size
	backing := make([]float32, p.spec.Channels*channelSize)
	red := backing[0:channelSize]
	green := backing[channelSize : channelSize*2]
	blue := backing[channelSize*2 : channelSize*3]

	bounds := img.Bounds()
	i := 0
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			red[i] = float32(r>>8) / 255.0
			green[i] = float32(g>>8) / 255.0
			blue[i] = float32(b>>8) / 255.0
			i++
		}
	}
	return backing, nil
}
