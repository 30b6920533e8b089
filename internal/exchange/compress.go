package exchange

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"errors"
	"io"
)

var errNotCompressed = errors.New("frame matches no known compression format")

// decompress inflates a binary frame. BingX sends gzip- or zlib-wrapped
// payloads depending on endpoint, and some frames arrive as raw deflate;
// the variants are tried in that order like the window-bits fallback of the
// upstream feeds.
func decompress(data []byte) ([]byte, error) {
	if gr, err := gzip.NewReader(bytes.NewReader(data)); err == nil {
		out, err := io.ReadAll(gr)
		gr.Close()
		if err == nil {
			return out, nil
		}
	}

	if zr, err := zlib.NewReader(bytes.NewReader(data)); err == nil {
		out, err := io.ReadAll(zr)
		zr.Close()
		if err == nil {
			return out, nil
		}
	}

	fr := flate.NewReader(bytes.NewReader(data))
	out, err := io.ReadAll(fr)
	fr.Close()
	if err == nil && len(out) > 0 {
		return out, nil
	}

	return nil, errNotCompressed
}

// looksLikeText reports whether a frame can be fed to the JSON decoder
// without decompression. Deliberately narrow: zlib frames start with 0x78
// ('x'), so anything but a JSON opener is treated as binary.
func looksLikeText(data []byte) bool {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	return len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[' || trimmed[0] == '"')
}
