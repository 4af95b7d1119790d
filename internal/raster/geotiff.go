package raster

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
	"compress/zlib"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"io"
	"math"
	"strconv"
	"strings"

	"golang.org/x/image/tiff"
)

// TIFF tags read from the first IFD
const (
	tagImageWidth      = 256
	tagImageLength     = 257
	tagBitsPerSample   = 258
	tagCompression     = 259
	tagStripOffsets    = 273
	tagSamplesPerPixel = 277
	tagRowsPerStrip    = 278
	tagStripByteCounts = 279
	tagPredictor       = 317
	tagTileWidth       = 322
	tagTileLength      = 323
	tagTileOffsets     = 324
	tagTileByteCounts  = 325
	tagSampleFormat    = 339
	tagModelPixelScale = 33550
	tagModelTiepoint   = 33922
	tagGeoKeyDirectory = 34735
	tagGDALNodata      = 42113
)

// GeoKeys
const (
	keyModelType      = 1024
	keyGeographicType = 2048
	keyProjectedType  = 3072

	modelTypeProjected  = 1
	modelTypeGeographic = 2
)

// Compression and predictor schemes of the sample reader
const (
	compressionNone         = 1
	compressionDeflate      = 8
	compressionDeflateAdobe = 32946

	predictorNone       = 1
	predictorHorizontal = 2
)

// TIFF sample formats
const (
	sampleUint  = 1
	sampleInt   = 2
	sampleFloat = 3
)

// TIFF field types
const (
	typeByte   = 1
	typeASCII  = 2
	typeShort  = 3
	typeLong   = 4
	typeDouble = 12
)

var typeSize = map[uint16]uint32{
	typeByte:   1,
	typeASCII:  1,
	typeShort:  2,
	typeLong:   4,
	typeDouble: 8,
}

const (
	tiffIdentifier    = 42
	bigTiffIdentifier = 43
)

// ErrUnsupported is returned for valid TIFF files this reader cannot handle
var ErrUnsupported = errors.New("unsupported raster")

type ifdValue struct {
	numbers []float64
	text    string
}

// readIFD returns the values of the wanted tags of the first IFD and the byte order of the file
func readIFD(b []byte) (map[uint16]ifdValue, binary.ByteOrder, error) {
	if len(b) < 8 {
		return nil, nil, errors.New("not a TIFF file: too short")
	}
	var order binary.ByteOrder
	switch string(b[0:2]) {
	case "II":
		order = binary.LittleEndian
	case "MM":
		order = binary.BigEndian
	default:
		return nil, nil, errors.New("not a TIFF file: invalid byte order")
	}
	switch order.Uint16(b[2:4]) {
	case tiffIdentifier:
	case bigTiffIdentifier:
		return nil, nil, fmt.Errorf("BigTIFF: %w", ErrUnsupported)
	default:
		return nil, nil, errors.New("not a TIFF file: invalid identifier")
	}

	offset := order.Uint32(b[4:8])
	if offset == 0 || uint64(offset)+2 > uint64(len(b)) {
		return nil, nil, errors.New("invalid IFD offset")
	}
	numEntries := int(order.Uint16(b[offset : offset+2]))
	start := uint64(offset) + 2
	if start+uint64(numEntries)*12 > uint64(len(b)) {
		return nil, nil, errors.New("truncated IFD")
	}

	values := make(map[uint16]ifdValue)
	for i := 0; i < numEntries; i++ {
		entry := b[start+uint64(i)*12 : start+uint64(i+1)*12]
		tag := order.Uint16(entry[0:2])
		switch tag {
		case tagImageWidth, tagImageLength, tagBitsPerSample, tagSamplesPerPixel, tagSampleFormat,
			tagCompression, tagPredictor, tagStripOffsets, tagRowsPerStrip, tagStripByteCounts,
			tagTileWidth, tagTileLength, tagTileOffsets, tagTileByteCounts,
			tagModelPixelScale, tagModelTiepoint, tagGeoKeyDirectory, tagGDALNodata:
		default:
			continue
		}
		ftype := order.Uint16(entry[2:4])
		count := order.Uint32(entry[4:8])
		size, ok := typeSize[ftype]
		if !ok {
			return nil, nil, fmt.Errorf("tag %d: field type %d: %w", tag, ftype, ErrUnsupported)
		}
		total := uint64(size) * uint64(count)
		data := entry[8:12]
		if total > 4 {
			off := uint64(order.Uint32(entry[8:12]))
			if off+total > uint64(len(b)) {
				return nil, nil, fmt.Errorf("tag %d: value out of bounds", tag)
			}
			data = b[off : off+total]
		} else {
			data = data[:total]
		}
		values[tag] = decodeValue(order, ftype, count, data)
	}
	return values, order, nil
}

func decodeValue(order binary.ByteOrder, ftype uint16, count uint32, data []byte) ifdValue {
	var v ifdValue
	switch ftype {
	case typeASCII:
		v.text = strings.TrimRight(string(data), "\x00 ")
		return v
	}
	v.numbers = make([]float64, count)
	for i := range v.numbers {
		switch ftype {
		case typeByte:
			v.numbers[i] = float64(data[i])
		case typeShort:
			v.numbers[i] = float64(order.Uint16(data[i*2:]))
		case typeLong:
			v.numbers[i] = float64(order.Uint32(data[i*4:]))
		case typeDouble:
			v.numbers[i] = math.Float64frombits(order.Uint64(data[i*8:]))
		}
	}
	return v
}

// first returns the first number of a tag, or def when the tag is missing
func first(tags map[uint16]ifdValue, tag uint16, def int) int {
	if v, ok := tags[tag]; ok && len(v.numbers) > 0 {
		return int(v.numbers[0])
	}
	return def
}

// Decode parses a single-band GeoTIFF.
// 8 and 16 bit unsigned integers go through x/image/tiff; signed
// integers and floats are read from the strips or tiles directly.
func Decode(b []byte) (*Raster, error) {
	tags, order, err := readIFD(b)
	if err != nil {
		return nil, err
	}
	if spp := first(tags, tagSamplesPerPixel, 1); spp != 1 {
		return nil, fmt.Errorf("%d samples per pixel: %w", spp, ErrUnsupported)
	}

	r := &Raster{stats: newStatsCache()}
	if err := r.readGeoreference(tags); err != nil {
		return nil, err
	}

	format := first(tags, tagSampleFormat, sampleUint)
	bits := first(tags, tagBitsPerSample, 1)
	if format == sampleUint && bits <= 16 {
		img, err := tiff.Decode(bytes.NewReader(b))
		if err != nil {
			return nil, fmt.Errorf("decoding TIFF pixels: %w", err)
		}
		if err := r.readPixels(img); err != nil {
			return nil, err
		}
		return r, nil
	}
	if err := r.readSamples(b, order, tags, format, bits); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Raster) readGeoreference(tags map[uint16]ifdValue) error {
	scale, ok := tags[tagModelPixelScale]
	if !ok || len(scale.numbers) < 2 {
		return errors.New("missing tag: ModelPixelScale")
	}
	tie, ok := tags[tagModelTiepoint]
	if !ok || len(tie.numbers) < 6 {
		return errors.New("missing tag: ModelTiepoint")
	}
	r.PixelSizeX = scale.numbers[0]
	r.PixelSizeY = math.Abs(scale.numbers[1])
	if r.PixelSizeX <= 0 || r.PixelSizeY <= 0 {
		return errors.New("invalid ModelPixelScale")
	}
	// tie point (i, j) -> (X, Y)
	r.OriginX = tie.numbers[3] - tie.numbers[0]*r.PixelSizeX
	r.OriginY = tie.numbers[4] + tie.numbers[1]*r.PixelSizeY

	if keys, ok := tags[tagGeoKeyDirectory]; ok {
		r.Srid = sridFromGeoKeys(keys.numbers)
	}
	if nd, ok := tags[tagGDALNodata]; ok && nd.text != "" {
		if v, err := strconv.ParseFloat(strings.TrimSpace(nd.text), 64); err == nil {
			r.Nodata = v
			r.HasNodata = true
		}
	}
	return nil
}

// sridFromGeoKeys reads inline GeoKey values; 0 means unknown
func sridFromGeoKeys(dir []float64) int {
	if len(dir) < 4 {
		return 0
	}
	numKeys := int(dir[3])
	keys := make(map[int]int)
	for i := 0; i < numKeys; i++ {
		k := 4 + i*4
		if k+3 >= len(dir) {
			break
		}
		// only values stored in the directory itself
		if dir[k+1] != 0 {
			continue
		}
		keys[int(dir[k])] = int(dir[k+3])
	}
	if v, ok := keys[keyProjectedType]; ok && v > 0 && v != 32767 {
		return v
	}
	if v, ok := keys[keyGeographicType]; ok && v > 0 && v != 32767 {
		return v
	}
	if keys[keyModelType] == modelTypeGeographic {
		return SridWGS84
	}
	return 0
}

func (r *Raster) readPixels(img image.Image) error {
	bounds := img.Bounds()
	r.Width = bounds.Dx()
	r.Height = bounds.Dy()
	r.Values = make([]float64, r.Width*r.Height)

	switch m := img.(type) {
	case *image.Gray:
		for row := 0; row < r.Height; row++ {
			for col := 0; col < r.Width; col++ {
				r.Values[row*r.Width+col] = float64(m.Pix[row*m.Stride+col])
			}
		}
	case *image.Gray16:
		for row := 0; row < r.Height; row++ {
			for col := 0; col < r.Width; col++ {
				i := row*m.Stride + col*2
				r.Values[row*r.Width+col] = float64(uint16(m.Pix[i])<<8 | uint16(m.Pix[i+1]))
			}
		}
	case *image.Paletted:
		for row := 0; row < r.Height; row++ {
			for col := 0; col < r.Width; col++ {
				r.Values[row*r.Width+col] = float64(m.Pix[row*m.Stride+col])
			}
		}
	default:
		return fmt.Errorf("pixel layout %T: %w", img, ErrUnsupported)
	}
	return nil
}

// sampleReader returns the conversion of one raw sample to float64
func sampleReader(order binary.ByteOrder, format, bits int) (func([]byte) float64, error) {
	switch {
	case format == sampleUint && bits == 8:
		return func(p []byte) float64 { return float64(p[0]) }, nil
	case format == sampleUint && bits == 16:
		return func(p []byte) float64 { return float64(order.Uint16(p)) }, nil
	case format == sampleUint && bits == 32:
		return func(p []byte) float64 { return float64(order.Uint32(p)) }, nil
	case format == sampleInt && bits == 8:
		return func(p []byte) float64 { return float64(int8(p[0])) }, nil
	case format == sampleInt && bits == 16:
		return func(p []byte) float64 { return float64(int16(order.Uint16(p))) }, nil
	case format == sampleInt && bits == 32:
		return func(p []byte) float64 { return float64(int32(order.Uint32(p))) }, nil
	case format == sampleFloat && bits == 32:
		return func(p []byte) float64 { return float64(math.Float32frombits(order.Uint32(p))) }, nil
	case format == sampleFloat && bits == 64:
		return func(p []byte) float64 { return math.Float64frombits(order.Uint64(p)) }, nil
	}
	return nil, fmt.Errorf("sample format %d with %d bits: %w", format, bits, ErrUnsupported)
}

// readSamples reads uncompressed or deflated strips or tiles
func (r *Raster) readSamples(b []byte, order binary.ByteOrder, tags map[uint16]ifdValue, format, bits int) error {
	convert, err := sampleReader(order, format, bits)
	if err != nil {
		return err
	}
	compression := first(tags, tagCompression, compressionNone)
	switch compression {
	case compressionNone, compressionDeflate, compressionDeflateAdobe:
	default:
		return fmt.Errorf("compression %d: %w", compression, ErrUnsupported)
	}
	predictor := first(tags, tagPredictor, predictorNone)
	if predictor != predictorNone && (predictor != predictorHorizontal || format == sampleFloat) {
		return fmt.Errorf("predictor %d: %w", predictor, ErrUnsupported)
	}

	width := first(tags, tagImageWidth, 0)
	height := first(tags, tagImageLength, 0)
	if width <= 0 || height <= 0 {
		return errors.New("missing image dimensions")
	}
	blockW, blockH := width, first(tags, tagRowsPerStrip, height)
	offsets, counts := tags[tagStripOffsets].numbers, tags[tagStripByteCounts].numbers
	if _, tiled := tags[tagTileOffsets]; tiled {
		blockW, blockH = first(tags, tagTileWidth, 0), first(tags, tagTileLength, 0)
		offsets, counts = tags[tagTileOffsets].numbers, tags[tagTileByteCounts].numbers
	}
	if blockW <= 0 || blockH <= 0 {
		return errors.New("invalid strip or tile size")
	}
	if blockW == width && blockH > height {
		blockH = height
	}
	if len(offsets) == 0 || len(offsets) != len(counts) {
		return errors.New("missing strip or tile offsets")
	}

	size := bits / 8
	across := (width + blockW - 1) / blockW
	r.Width, r.Height = width, height
	r.Values = make([]float64, width*height)
	for i := range offsets {
		raw, err := blockData(b, uint64(offsets[i]), uint64(counts[i]), compression)
		if err != nil {
			return fmt.Errorf("block %d: %w", i, err)
		}
		if predictor == predictorHorizontal {
			undoHorizontal(raw, order, blockW, size)
		}
		bx, by := (i%across)*blockW, (i/across)*blockH
		for row := 0; row < blockH && by+row < height; row++ {
			for col := 0; col < blockW && bx+col < width; col++ {
				k := (row*blockW + col) * size
				if k+size > len(raw) {
					return fmt.Errorf("block %d: truncated pixel data", i)
				}
				r.Values[(by+row)*width+bx+col] = convert(raw[k : k+size])
			}
		}
	}
	return nil
}

func blockData(b []byte, offset, count uint64, compression int) ([]byte, error) {
	if offset+count > uint64(len(b)) {
		return nil, errors.New("data out of bounds")
	}
	data := b[offset : offset+count]
	if compression == compressionNone {
		return data, nil
	}
	z, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("deflate: %w", err)
	}
	defer z.Close()
	out, err := io.ReadAll(z)
	if err != nil {
		return nil, fmt.Errorf("deflate: %w", err)
	}
	return out, nil
}

// undoHorizontal reverses horizontal differencing of integer samples in place
func undoHorizontal(raw []byte, order binary.ByteOrder, blockW, size int) {
	rowLen := blockW * size
	for start := 0; start+rowLen <= len(raw); start += rowLen {
		row := raw[start : start+rowLen]
		for k := size; k < rowLen; k += size {
			switch size {
			case 1:
				row[k] += row[k-size]
			case 2:
				order.PutUint16(row[k:], order.Uint16(row[k:])+order.Uint16(row[k-size:]))
			case 4:
				order.PutUint32(row[k:], order.Uint32(row[k:])+order.Uint32(row[k-size:]))
			}
		}
	}
}
