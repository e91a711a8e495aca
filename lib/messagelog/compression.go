// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messagelog

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression is the stream compression applied to a log file.
type Compression uint8

const (
	CompressionNone Compression = iota
	CompressionZstd
	CompressionLZ4
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionZstd:
		return "zstd"
	case CompressionLZ4:
		return "lz4"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// CompressionFor picks the compression from path's extension.
func CompressionFor(path string) Compression {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".zst", ".zstd":
		return CompressionZstd
	case ".lz4":
		return CompressionLZ4
	default:
		return CompressionNone
	}
}

// nopWriteCloser adapts an uncompressed destination.
type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// compressor wraps destination. Closing the result flushes the
// compressed stream but does not close destination.
func (c Compression) compressor(destination io.Writer) (io.WriteCloser, error) {
	switch c {
	case CompressionNone:
		return nopWriteCloser{destination}, nil
	case CompressionZstd:
		encoder, err := zstd.NewWriter(destination, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, fmt.Errorf("zstd writer: %w", err)
		}
		return encoder, nil
	case CompressionLZ4:
		return lz4.NewWriter(destination), nil
	default:
		return nil, fmt.Errorf("unsupported compression %s", c)
	}
}

// decompressor wraps source. The returned release function frees
// decoder resources.
func (c Compression) decompressor(source io.Reader) (io.Reader, func(), error) {
	switch c {
	case CompressionNone:
		return source, func() {}, nil
	case CompressionZstd:
		decoder, err := zstd.NewReader(source)
		if err != nil {
			return nil, nil, fmt.Errorf("zstd reader: %w", err)
		}
		return decoder, decoder.Close, nil
	case CompressionLZ4:
		return lz4.NewReader(source), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported compression %s", c)
	}
}
