// Package compress holds the single stream compressors (gz, bz2, xz, zst,
// lz4) and the provider for archives made of exactly one compressed file.
package compress

import (
	"io"
	"sort"
	"strings"

	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"
	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"
)

type Codec struct {
	Format    string
	NewReader func(r io.Reader) (io.ReadCloser, error)
	// NewWriter compresses into w; level is 0-9 and mapped onto the
	// codec's own scale.
	NewWriter func(w io.Writer, level int) (io.WriteCloser, error)
}

var codecs = map[string]Codec{
	"gz": {
		Format: "gz",
		NewReader: func(r io.Reader) (io.ReadCloser, error) {
			return pgzip.NewReader(r)
		},
		NewWriter: func(w io.Writer, level int) (io.WriteCloser, error) {
			return pgzip.NewWriterLevel(w, level)
		},
	},
	"bz2": {
		Format: "bz2",
		NewReader: func(r io.Reader) (io.ReadCloser, error) {
			return bzip2.NewReader(r, &bzip2.ReaderConfig{})
		},
		NewWriter: func(w io.Writer, level int) (io.WriteCloser, error) {
			if level < bzip2.BestSpeed {
				level = bzip2.BestSpeed
			}
			return bzip2.NewWriter(w, &bzip2.WriterConfig{Level: level})
		},
	},
	"xz": {
		Format: "xz",
		NewReader: func(r io.Reader) (io.ReadCloser, error) {
			xr, err := xz.NewReader(r)
			if err != nil {
				return nil, err
			}
			return io.NopCloser(xr), nil
		},
		NewWriter: func(w io.Writer, _ int) (io.WriteCloser, error) {
			return xz.NewWriter(w)
		},
	},
	"zst": {
		Format: "zst",
		NewReader: func(r io.Reader) (io.ReadCloser, error) {
			d, err := zstd.NewReader(r)
			if err != nil {
				return nil, err
			}
			return zstdReader{d}, nil
		},
		NewWriter: func(w io.Writer, level int) (io.WriteCloser, error) {
			return zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
		},
	},
	"lz4": {
		Format: "lz4",
		NewReader: func(r io.Reader) (io.ReadCloser, error) {
			return io.NopCloser(lz4.NewReader(r)), nil
		},
		NewWriter: func(w io.Writer, level int) (io.WriteCloser, error) {
			zw := lz4.NewWriter(w)
			if err := zw.Apply(lz4.CompressionLevelOption(lz4Level(level))); err != nil {
				return nil, err
			}
			return zw, nil
		},
	},
}

var lz4Levels = []lz4.CompressionLevel{
	lz4.Fast, lz4.Level1, lz4.Level2, lz4.Level3, lz4.Level4,
	lz4.Level5, lz4.Level6, lz4.Level7, lz4.Level8, lz4.Level9,
}

func lz4Level(level int) lz4.CompressionLevel {
	if level < 0 || level >= len(lz4Levels) {
		return lz4.Fast
	}
	return lz4Levels[level]
}

type zstdReader struct {
	*zstd.Decoder
}

func (r zstdReader) Close() error {
	r.Decoder.Close()
	return nil
}

// Lookup returns the codec for a compressor format tag such as "gz".
func Lookup(format string) (Codec, bool) {
	c, ok := codecs[strings.ToLower(strings.TrimPrefix(format, "."))]
	return c, ok
}

// Formats lists the compressor format tags.
func Formats() []string {
	ret := make([]string, 0, len(codecs))
	for f := range codecs {
		ret = append(ret, f)
	}
	sort.Strings(ret)
	return ret
}

// Split separates "tar.gz" into ("tar", codec for gz). A format without a
// known compressor suffix returns ok=false.
func Split(format string) (string, Codec, bool) {
	i := strings.LastIndex(format, ".")
	if i < 0 {
		return format, Codec{}, false
	}
	c, ok := Lookup(format[i+1:])
	if !ok {
		return format, Codec{}, false
	}
	return format[:i], c, true
}
