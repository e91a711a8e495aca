// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
)

// MaxFileSize bounds how much ReadFromPath will read.
const MaxFileSize = 64 << 10

// ReadFromPath loads a secret from path, or the first line of stdin when
// path is "-". Surrounding whitespace is trimmed. The caller owns the
// returned Buffer.
func ReadFromPath(path string) (*Buffer, error) {
	if path == "-" {
		return readLine(os.Stdin)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("secret: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, MaxFileSize+1))
	if err != nil {
		Zero(data)
		return nil, fmt.Errorf("secret: reading %s: %w", path, err)
	}
	if len(data) > MaxFileSize {
		Zero(data)
		return nil, fmt.Errorf("secret: %s exceeds %d bytes", path, MaxFileSize)
	}
	return fromUntrimmed(data, path)
}

func readLine(reader io.Reader) (*Buffer, error) {
	scanner := bufio.NewScanner(reader)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("secret: reading stdin: %w", err)
		}
		return nil, fmt.Errorf("secret: stdin: %w", ErrEmpty)
	}
	// The scanner's buffer is reused; zero it once copied.
	line := scanner.Bytes()
	return fromUntrimmed(line, "stdin")
}

// fromUntrimmed trims data into a Buffer and zeroes all of data.
func fromUntrimmed(data []byte, source string) (*Buffer, error) {
	defer Zero(data)
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("secret: %s: %w", source, ErrEmpty)
	}
	return NewFromBytes(trimmed)
}
