// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

// Stream filter pipeline: FlateDecode (with PNG/TIFF predictors),
// LZWDecode, RunLengthDecode, ASCIIHexDecode and ASCII85Decode.

package zpdf

import (
	"bytes"
	"compress/zlib"
	"encoding/ascii85"
	"fmt"
	"io"

	"golang.org/x/image/tiff/lzw"

	"github.com/sassoftware/viya-zpdf/logger"
)

// applyFilter wraps rd with the decoder for the named filter.
// Unknown filters and malformed parameters panic; Value.Reader
// converts the panic into an erroring reader so that a bad filter
// fails the stream, not the document.
func applyFilter(rd io.Reader, name string, param Value) io.Reader {
	logger.Debug(fmt.Sprintf("filter: applying %s", name))
	switch name {
	default:
		logger.Error("unknown filter " + name)
		panic("unsupported filter " + name)

	case "FlateDecode":
		zr, err := zlib.NewReader(rd)
		if err != nil {
			logger.Error(err.Error())
			panic(err)
		}
		logger.Debug("filter: FlateDecode (decoder initialized)", true)
		return applyPredictor(zr, param)

	case "LZWDecode":
		early := 1
		if e := param.Key("EarlyChange"); e.Kind() == Integer {
			early = int(e.Int64())
		}
		if early != 0 && early != 1 {
			logger.Error(fmt.Sprintf("invalid EarlyChange %d", early))
			panic("invalid EarlyChange")
		}
		// The tiff/lzw reader implements the early-change variant used
		// by PDF; plain compress/lzw does not.
		if early == 0 {
			logger.Debug("filter: LZWDecode without early change; decoding best-effort", true)
		}
		return applyPredictor(lzw.NewReader(rd, lzw.MSB, 8), param)

	case "RunLengthDecode":
		return &runLengthReader{r: rd}

	case "ASCIIHexDecode":
		return &asciiHexReader{r: rd}

	case "ASCII85Decode":
		cleaned := newAlphaReader(rd)
		decoder := ascii85.NewDecoder(cleaned)

		switch param.Keys() {
		default:
			logger.Error("not expected DecodeParms for ascii85")
			panic("not expected DecodeParms for ascii85")
		case nil:
			return decoder
		}
	}
}

// applyPredictor applies the /Predictor declared in param, if any.
// Predictor 1 is the identity; 2 is the TIFF horizontal differencing
// predictor; 10-15 are the per-row PNG filters.
func applyPredictor(rd io.Reader, param Value) io.Reader {
	pred := param.Key("Predictor")
	if pred.Kind() == Null || pred.Int64() <= 1 {
		return rd
	}
	columns := int(param.Key("Columns").Int64())
	if columns == 0 {
		columns = 1
	}
	colors := int(param.Key("Colors").Int64())
	if colors == 0 {
		colors = 1
	}
	bpc := int(param.Key("BitsPerComponent").Int64())
	if bpc == 0 {
		bpc = 8
	}
	rowBytes := (columns*colors*bpc + 7) / 8
	sample := (colors*bpc + 7) / 8

	switch p := pred.Int64(); {
	case p == 2:
		return &tiffPredictReader{r: rd, row: make([]byte, rowBytes), sample: sample}
	case p >= 10 && p <= 15:
		return &pngPredictReader{r: rd, hist: make([]byte, rowBytes), tmp: make([]byte, 1+rowBytes), sample: sample}
	default:
		logger.Error(fmt.Sprintf("unknown predictor %d", p))
		panic(fmt.Errorf("unsupported predictor %d", p))
	}
}

// pngPredictReader undoes the per-row PNG filters (None, Sub, Up,
// Average, Paeth). hist holds the previous reconstructed row.
type pngPredictReader struct {
	r      io.Reader
	hist   []byte
	tmp    []byte
	pend   []byte
	sample int
}

func (r *pngPredictReader) Read(b []byte) (int, error) {
	n := 0
	for len(b) > 0 {
		if len(r.pend) > 0 {
			m := copy(b, r.pend)
			n += m
			b = b[m:]
			r.pend = r.pend[m:]
			continue
		}
		_, err := io.ReadFull(r.r, r.tmp)
		if err != nil {
			return n, err
		}
		ft := r.tmp[0]
		row := r.tmp[1:]
		bpp := r.sample
		switch ft {
		case 0: // None
		case 1: // Sub
			for i := bpp; i < len(row); i++ {
				row[i] += row[i-bpp]
			}
		case 2: // Up
			for i := range row {
				row[i] += r.hist[i]
			}
		case 3: // Average
			for i := range row {
				prior := 0
				if i >= bpp {
					prior = int(row[i-bpp])
				}
				row[i] += byte((prior + int(r.hist[i])) / 2)
			}
		case 4: // Paeth
			for i := range row {
				var a, c int
				if i >= bpp {
					a = int(row[i-bpp])
					c = int(r.hist[i-bpp])
				}
				row[i] += byte(paeth(a, int(r.hist[i]), c))
			}
		default:
			logger.Error(fmt.Sprintf("malformed PNG predictor row: filter %d", ft))
			return n, fmt.Errorf("malformed PNG predictor data: filter type %d", ft)
		}
		copy(r.hist, row)
		r.pend = r.hist
	}
	return n, nil
}

func paeth(a, b, c int) int {
	p := a + b - c
	pa, pb, pc := abs(p-a), abs(p-b), abs(p-c)
	if pa <= pb && pa <= pc {
		return a
	}
	if pb <= pc {
		return b
	}
	return c
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// tiffPredictReader undoes TIFF predictor 2 (horizontal differencing)
// for 8-bit samples.
type tiffPredictReader struct {
	r      io.Reader
	row    []byte
	pend   []byte
	sample int
}

func (r *tiffPredictReader) Read(b []byte) (int, error) {
	n := 0
	for len(b) > 0 {
		if len(r.pend) > 0 {
			m := copy(b, r.pend)
			n += m
			b = b[m:]
			r.pend = r.pend[m:]
			continue
		}
		_, err := io.ReadFull(r.r, r.row)
		if err != nil {
			return n, err
		}
		for i := r.sample; i < len(r.row); i++ {
			r.row[i] += r.row[i-r.sample]
		}
		r.pend = r.row
	}
	return n, nil
}

// runLengthReader decodes RunLengthDecode data: a length byte L
// followed by either L+1 literal bytes (L < 128) or one byte repeated
// 257-L times (L > 128). L == 128 marks end of data.
type runLengthReader struct {
	r    io.Reader
	pend []byte
	done bool
	buf  [1]byte
}

func (r *runLengthReader) Read(b []byte) (int, error) {
	n := 0
	for len(b) > 0 {
		if len(r.pend) > 0 {
			m := copy(b, r.pend)
			n += m
			b = b[m:]
			r.pend = r.pend[m:]
			continue
		}
		if r.done {
			if n > 0 {
				return n, nil
			}
			return 0, io.EOF
		}
		if _, err := io.ReadFull(r.r, r.buf[:]); err != nil {
			if err == io.EOF {
				r.done = true
				continue
			}
			return n, err
		}
		length := int(r.buf[0])
		switch {
		case length == 128:
			r.done = true
		case length < 128:
			lit := make([]byte, length+1)
			if _, err := io.ReadFull(r.r, lit); err != nil {
				return n, fmt.Errorf("malformed RunLength data: %w", err)
			}
			r.pend = lit
		default:
			if _, err := io.ReadFull(r.r, r.buf[:]); err != nil {
				return n, fmt.Errorf("malformed RunLength data: %w", err)
			}
			r.pend = bytes.Repeat(r.buf[:1], 257-length)
		}
	}
	return n, nil
}

// asciiHexReader decodes pairs of hex digits, ignoring whitespace,
// until the '>' end-of-data marker. An odd trailing digit is padded
// with zero.
type asciiHexReader struct {
	r    io.Reader
	done bool
	buf  [1]byte
}

func (r *asciiHexReader) Read(b []byte) (int, error) {
	n := 0
	for n < len(b) {
		if r.done {
			if n > 0 {
				return n, nil
			}
			return 0, io.EOF
		}
		hi, err := r.readNibble()
		if err != nil {
			if err == io.EOF && n > 0 {
				return n, nil
			}
			return n, err
		}
		if hi == 255 { // '>' marker
			r.done = true
			continue
		}
		lo, err := r.readNibble()
		if err == io.EOF || lo == 255 {
			// Odd digit count: pad low nibble with zero.
			b[n] = hi << 4
			n++
			r.done = true
			continue
		}
		if err != nil {
			return n, err
		}
		b[n] = hi<<4 | lo
		n++
	}
	return n, nil
}

// readNibble returns the next hex digit value, 255 for the '>'
// marker, or an error for a non-hex byte.
func (r *asciiHexReader) readNibble() (byte, error) {
	for {
		if _, err := io.ReadFull(r.r, r.buf[:]); err != nil {
			return 0, err
		}
		c := r.buf[0]
		if isSpace(c) {
			continue
		}
		if c == '>' {
			return 255, nil
		}
		x := unhex(c)
		if x == 255 {
			return 0, fmt.Errorf("malformed ASCIIHex data: invalid character %q", c)
		}
		return x, nil
	}
}

// alphaReader passes through the ASCII85 alphabet and blanks
// everything else with spaces (which the stdlib decoder ignores),
// stopping at the '~' of the '~>' terminator.
type alphaReader struct {
	r    io.Reader
	done bool
}

func newAlphaReader(r io.Reader) *alphaReader {
	return &alphaReader{r: r}
}

func (a *alphaReader) Read(b []byte) (int, error) {
	n, err := a.r.Read(b)
	for i := 0; i < n; i++ {
		if a.done {
			b[i] = ' '
			continue
		}
		c := b[i]
		switch {
		case c == '~':
			a.done = true
			b[i] = ' '
		case c >= '!' && c <= 'u', c == 'z':
			// valid ASCII85 byte, keep
		default:
			b[i] = ' '
		}
	}
	return n, err
}
