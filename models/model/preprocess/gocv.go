//go:build gocv

package preprocess

import (
	"image"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// pixels decodes the image with OpenCV and lets BlobFromImage do the resize,
// the BGR to RGB swap and the 1/255 scaling in one pass.
func (p *Preprocessor) pixels(data []byte) ([]float32, error) {
	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return nil, errors.Wrap(ErrDecode, err.Error())
	}
	defer mat.Close()
	if mat.Empty() {
		return nil, errors.Wrap(ErrDecode, "image has no pixels")
	}

	size := p.spec.InputSize
	blob := gocv.BlobFromImage(mat, 1.0/255.0, image.Pt(size, size), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	values, err := blob.DataPtrFloat32()
	if err != nil {
		return nil, errors.Wrap(err, "read blob")
	}

	// The blob is released on return, the tensor needs its own copy.
	backing := make([]float32, len(values))
	copy(backing, values)
	return backing, nil
}
