// Package avatar normalizes uploaded profile images into fixed-size JPEG
// squares before they reach storage.
package avatar

import (
	"bytes"
	"fmt"
	"io"

	"github.com/disintegration/imaging"
)

// ContentType of every processed avatar.
const ContentType = "image/jpeg"

const defaultQuality = 85

// Processor crops and scales uploads to a centered square.
type Processor struct {
	size    int
	quality int
}

// NewProcessor returns a processor producing size x size JPEGs.
func NewProcessor(size int) *Processor {
	if size <= 0 {
		size = 400
	}
	return &Processor{size: size, quality: defaultQuality}
}

// Process decodes the upload (format auto-detected), fills the target square
// with a centered crop, and re-encodes as JPEG. The bytes are ready for
// storage.
func (p *Processor) Process(r io.Reader) ([]byte, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	square := imaging.Fill(img, p.size, p.size, imaging.Center, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, square, imaging.JPEG, imaging.JPEGQuality(p.quality)); err != nil {
		return nil, fmt.Errorf("encode avatar: %w", err)
	}
	return buf.Bytes(), nil
}
