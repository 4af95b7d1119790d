package render

/*
 Copyright 2019 - 2025 Crunchy Data Solutions, Inc.
 Licensed under the Apache License, Version 2.0 (the "License");
 you may not use this file except in compliance with the License.
 You may obtain a copy of the License at
      http://www.apache.org/licenses/LICENSE-2.0
 Unless required by applicable law or agreed to in writing, software
 distributed under the License is distributed on an "AS IS" BASIS,
 WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 See the License for the specific language governing permissions and
 limitations under the License.
*/

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"strings"
	"sync"

	"github.com/tobilg/raster-tileserver/internal/tile"
)

// ContentTypePNG is the content type of rendered tiles
const ContentTypePNG = "image/png"

// Encoder writes tiles as PNG with a fixed compression level,
// so equal images always encode to equal bytes
type Encoder struct {
	enc *png.Encoder
}

type bufferPool struct {
	pool sync.Pool
}

func (p *bufferPool) Get() *png.EncoderBuffer {
	b, _ := p.pool.Get().(*png.EncoderBuffer)
	return b
}

func (p *bufferPool) Put(b *png.EncoderBuffer) {
	p.pool.Put(b)
}

// ParseCompression maps a compression name to a PNG compression level
func ParseCompression(name string) (png.CompressionLevel, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "default":
		return png.DefaultCompression, nil
	case "speed":
		return png.BestSpeed, nil
	case "best":
		return png.BestCompression, nil
	case "none":
		return png.NoCompression, nil
	}
	return png.DefaultCompression, fmt.Errorf("unknown compression %q", name)
}

// NewEncoder creates an encoder with the given compression level
func NewEncoder(level png.CompressionLevel) *Encoder {
	return &Encoder{enc: &png.Encoder{
		CompressionLevel: level,
		BufferPool:       &bufferPool{},
	}}
}

// Encode returns the PNG bytes of img
func (e *Encoder) Encode(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := e.enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding png: %w", err)
	}
	return buf.Bytes(), nil
}

var (
	blankOnce sync.Once
	blankTile []byte
)

// BlankTile returns the encoding of a fully transparent tile.
// The returned slice is shared and must not be modified.
func BlankTile() []byte {
	blankOnce.Do(func() {
		img := image.NewNRGBA(image.Rect(0, 0, tile.Size, tile.Size))
		enc := &png.Encoder{CompressionLevel: png.BestCompression}
		var buf bytes.Buffer
		if err := enc.Encode(&buf, img); err != nil {
			panic(err)
		}
		blankTile = buf.Bytes()
	})
	return blankTile
}
