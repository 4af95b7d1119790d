// Package rastertest writes small GeoTIFF files for tests.
package rastertest

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
	"math"
	"os"
	"path/filepath"
	"sort"
	"testing"
)

// Options describes the raster to write
type Options struct {
	Width  int
	Height int
	// upper-left corner and square pixel size in CRS units
	OriginX   float64
	OriginY   float64
	PixelSize float64
	// Srid is written as GeoKey; 0 omits the GeoKey directory
	Srid int
	// Nodata is written as GDAL_NODATA when not empty
	Nodata string
	// Sixteen writes 16 bit samples instead of 8 bit
	Sixteen bool
	// BigEndian writes a Motorola byte order file
	BigEndian bool
	// SampleFormat defaults to 1 (unsigned integer)
	SampleFormat uint16
	// Values are row-major samples; missing values are 0
	Values []uint16
	// Samples replace Values for SampleFormat 2 (int8, or int16 with
	// Sixteen) and 3 (float32)
	Samples []float64
	// Deflate compresses the strip with zlib
	Deflate bool
}

type entry struct {
	tag   uint16
	ftype uint16
	count uint32
	data  []byte
}

// GeoTIFF encodes a single-strip grayscale GeoTIFF
func GeoTIFF(o Options) []byte {
	var order binary.ByteOrder = binary.LittleEndian
	magic := []byte("II")
	if o.BigEndian {
		order = binary.BigEndian
		magic = []byte("MM")
	}

	bits := uint16(8)
	if o.Sixteen {
		bits = 16
	}
	sampleFormat := o.SampleFormat
	if sampleFormat == 0 {
		sampleFormat = 1
	}
	if sampleFormat == 3 {
		bits = 32
	}
	pixels := new(bytes.Buffer)
	for i := 0; i < o.Width*o.Height; i++ {
		if sampleFormat == 3 || (sampleFormat == 2 && o.Samples != nil) {
			var f float64
			if i < len(o.Samples) {
				f = o.Samples[i]
			}
			switch {
			case sampleFormat == 3:
				binary.Write(pixels, order, float32(f))
			case o.Sixteen:
				binary.Write(pixels, order, int16(f))
			default:
				binary.Write(pixels, order, int8(f))
			}
			continue
		}
		var v uint16
		if i < len(o.Values) {
			v = o.Values[i]
		}
		if o.Sixteen {
			binary.Write(pixels, order, v)
		} else {
			pixels.WriteByte(byte(v))
		}
	}
	compression := uint16(1)
	if o.Deflate {
		compression = 8
		z := new(bytes.Buffer)
		w := zlib.NewWriter(z)
		w.Write(pixels.Bytes())
		w.Close()
		pixels = z
	}

	shorts := func(vs ...uint16) []byte {
		b := make([]byte, 2*len(vs))
		for i, v := range vs {
			order.PutUint16(b[i*2:], v)
		}
		return b
	}
	longs := func(vs ...uint32) []byte {
		b := make([]byte, 4*len(vs))
		for i, v := range vs {
			order.PutUint32(b[i*4:], v)
		}
		return b
	}
	doubles := func(vs ...float64) []byte {
		b := make([]byte, 8*len(vs))
		for i, v := range vs {
			order.PutUint64(b[i*8:], math.Float64bits(v))
		}
		return b
	}

	entries := []*entry{
		{256, 4, 1, longs(uint32(o.Width))},
		{257, 4, 1, longs(uint32(o.Height))},
		{258, 3, 1, shorts(bits)},
		{259, 3, 1, shorts(compression)},
		{262, 3, 1, shorts(1)},
		{273, 4, 1, nil}, // strip offset, set below
		{277, 3, 1, shorts(1)},
		{278, 4, 1, longs(uint32(o.Height))},
		{279, 4, 1, longs(uint32(pixels.Len()))},
		{284, 3, 1, shorts(1)},
		{339, 3, 1, shorts(sampleFormat)},
		{33550, 12, 3, doubles(o.PixelSize, o.PixelSize, 0)},
		{33922, 12, 6, doubles(0, 0, 0, o.OriginX, o.OriginY, 0)},
	}
	if o.Srid != 0 {
		keys := []uint16{1, 1, 0, 3}
		if o.Srid == 4326 {
			keys = append(keys, 1024, 0, 1, 2, 1025, 0, 1, 1, 2048, 0, 1, uint16(o.Srid))
		} else {
			keys = append(keys, 1024, 0, 1, 1, 1025, 0, 1, 1, 3072, 0, 1, uint16(o.Srid))
		}
		entries = append(entries, &entry{34735, 3, uint32(len(keys)), shorts(keys...)})
	}
	if o.Nodata != "" {
		text := append([]byte(o.Nodata), 0)
		entries = append(entries, &entry{42113, 2, uint32(len(text)), text})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].tag < entries[j].tag })

	ifdSize := 2 + 12*len(entries) + 4
	extraStart := 8 + ifdSize
	extra := new(bytes.Buffer)
	offsets := make(map[uint16]uint32)
	for _, e := range entries {
		if e.data != nil && len(e.data) > 4 {
			if extra.Len()%2 == 1 {
				extra.WriteByte(0)
			}
			offsets[e.tag] = uint32(extraStart + extra.Len())
			extra.Write(e.data)
		}
	}
	if extra.Len()%2 == 1 {
		extra.WriteByte(0)
	}
	stripOffset := uint32(extraStart + extra.Len())
	for _, e := range entries {
		if e.tag == 273 {
			e.data = longs(stripOffset)
		}
	}

	out := new(bytes.Buffer)
	out.Write(magic)
	out.Write(shorts(42))
	out.Write(longs(8))
	out.Write(shorts(uint16(len(entries))))
	for _, e := range entries {
		out.Write(shorts(e.tag, e.ftype))
		out.Write(longs(e.count))
		if off, ok := offsets[e.tag]; ok {
			out.Write(longs(off))
		} else {
			value := make([]byte, 4)
			copy(value, e.data)
			out.Write(value)
		}
	}
	out.Write(longs(0))
	out.Write(extra.Bytes())
	out.Write(pixels.Bytes())
	return out.Bytes()
}

// Fill returns n copies of v
func Fill(n int, v uint16) []uint16 {
	vs := make([]uint16, n)
	for i := range vs {
		vs[i] = v
	}
	return vs
}

// WriteFile writes the GeoTIFF below dir and returns its path
func WriteFile(tb testing.TB, dir, name string, o Options) string {
	tb.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		tb.Fatal(err)
	}
	if err := os.WriteFile(path, GeoTIFF(o), 0644); err != nil {
		tb.Fatal(err)
	}
	return path
}
