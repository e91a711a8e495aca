// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeSecretFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "secret")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing secret file: %v", err)
	}
	return path
}

func TestReadFromPathTrims(t *testing.T) {
	buffer, err := ReadFromPath(writeSecretFile(t, "  hunter2\n\n"))
	if err != nil {
		t.Fatalf("ReadFromPath: %v", err)
	}
	defer buffer.Close()
	if string(buffer.Bytes()) != "hunter2" {
		t.Errorf("secret = %q, want hunter2", buffer.Bytes())
	}
}

func TestReadFromPathWhitespaceOnly(t *testing.T) {
	_, err := ReadFromPath(writeSecretFile(t, " \n\t\n"))
	if !errors.Is(err, ErrEmpty) {
		t.Fatalf("error = %v, want ErrEmpty", err)
	}
}

func TestReadFromPathMissing(t *testing.T) {
	_, err := ReadFromPath(filepath.Join(t.TempDir(), "absent"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("error = %v, want os.ErrNotExist", err)
	}
}

func TestReadFromPathTooLarge(t *testing.T) {
	_, err := ReadFromPath(writeSecretFile(t, strings.Repeat("x", MaxFileSize+1)))
	if err == nil || !strings.Contains(err.Error(), "exceeds") {
		t.Fatalf("error = %v, want size error", err)
	}
}

func TestReadLine(t *testing.T) {
	buffer, err := readLine(strings.NewReader("first-line \nsecond-line\n"))
	if err != nil {
		t.Fatalf("readLine: %v", err)
	}
	defer buffer.Close()
	if string(buffer.Bytes()) != "first-line" {
		t.Errorf("secret = %q", buffer.Bytes())
	}

	if _, err := readLine(strings.NewReader("")); !errors.Is(err, ErrEmpty) {
		t.Errorf("empty stdin error = %v, want ErrEmpty", err)
	}
}
