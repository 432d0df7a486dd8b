package media

import (
	"bytes"
	"errors"
	"io"

	"github.com/disintegration/imaging"
)

// Thumbnail decodes an image and renders a JPEG that fits within width x height,
// keeping the aspect ratio and honouring EXIF orientation.
func Thumbnail(r io.Reader, width, height int) ([]byte, error) {
	if width <= 0 || height <= 0 {
		return nil, ErrInvalidDimensions
	}

	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, errors.Join(ErrFailedToDecode, err)
	}

	thumb := imaging.Fit(img, width, height, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(80)); err != nil {
		return nil, errors.Join(ErrFailedToEncode, err)
	}
	return buf.Bytes(), nil
}
