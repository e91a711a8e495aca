// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/ipcdemo/cmd/ipcdemo/cli"
	"github.com/bureau-foundation/ipcdemo/lib/sealed"
	"github.com/bureau-foundation/ipcdemo/lib/securecode"
)

func keygen(t *testing.T, path string) string {
	t.Helper()
	output := captureOutput(t)
	if err := execute(t, "secret", "keygen", "--output", path); err != nil {
		t.Fatalf("keygen: %v", err)
	}
	recipient, found := strings.CutPrefix(strings.TrimSpace(output.String()), "public key: ")
	if !found || !strings.HasPrefix(recipient, "age1") {
		t.Fatalf("keygen output = %q, want a public key line", output.String())
	}
	return recipient
}

func TestSecretKeygen(t *testing.T) {
	dir, _ := isolate(t)
	identityPath := filepath.Join(dir, "identity")
	recipient := keygen(t, identityPath)

	info, err := os.Stat(identityPath)
	if err != nil {
		t.Fatal(err)
	}
	if mode := info.Mode().Perm(); mode != 0o600 {
		t.Errorf("identity file mode = %o, want 600", mode)
	}
	contents, err := os.ReadFile(identityPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(contents), "# public key: "+recipient) {
		t.Errorf("identity file does not name its public key:\n%s", contents)
	}
	if !strings.Contains(string(contents), "AGE-SECRET-KEY-1") {
		t.Error("identity file has no private key")
	}
}

func TestSecretKeygenRefusesOverwrite(t *testing.T) {
	dir, _ := isolate(t)
	identityPath := filepath.Join(dir, "identity")
	keygen(t, identityPath)
	original, _ := os.ReadFile(identityPath)

	err := execute(t, "secret", "keygen", "--output", identityPath)
	if cli.CategoryOf(err) != cli.CategoryValidation {
		t.Fatalf("error = %v, want a validation error", err)
	}
	current, _ := os.ReadFile(identityPath)
	if string(current) != string(original) {
		t.Error("existing identity was modified")
	}

	captureOutput(t)
	if err := execute(t, "secret", "keygen", "--output", identityPath, "--force"); err != nil {
		t.Fatalf("keygen --force: %v", err)
	}
	replaced, _ := os.ReadFile(identityPath)
	if string(replaced) == string(original) {
		t.Error("--force did not replace the identity")
	}
}

func TestSealedSecretProducesSameCode(t *testing.T) {
	dir, secretPath := isolate(t)
	identityPath := filepath.Join(dir, "identity")
	recipient := keygen(t, identityPath)

	sealedPath := filepath.Join(dir, "secret.age")
	output := captureOutput(t)
	if err := execute(t, "secret", "seal", "-r", recipient, "-o", sealedPath, secretPath); err != nil {
		t.Fatalf("seal: %v", err)
	}
	ciphertext, err := os.ReadFile(sealedPath)
	if err != nil {
		t.Fatal(err)
	}
	if !sealed.IsArmored(ciphertext) {
		t.Fatal("sealed file is not armored")
	}
	if strings.Contains(string(ciphertext), "test-secret") {
		t.Fatal("sealed file contains the plaintext")
	}

	scheme := securecode.SixDigit(securecode.DefaultWindow)
	code, err := scheme.Generate([]byte("test-secret"), time.Now())
	if err != nil {
		t.Fatal(err)
	}
	output.Reset()
	err = execute(t, "code",
		"--secret-file", sealedPath,
		"--secret-identity", identityPath,
		"--log-level", "error",
		"--verify", code,
	)
	if err != nil {
		t.Fatalf("verifying against the sealed secret: %v (output %q)", err, output.String())
	}
}

func TestSealedSecretWithoutIdentityFails(t *testing.T) {
	dir, secretPath := isolate(t)
	recipient := keygen(t, filepath.Join(dir, "identity"))
	sealedPath := filepath.Join(dir, "secret.age")
	if err := execute(t, "secret", "seal", "-r", recipient, "-o", sealedPath, secretPath); err != nil {
		t.Fatalf("seal: %v", err)
	}

	captureOutput(t)
	err := execute(t, "code", "--secret-file", sealedPath, "--log-level", "error")
	if cli.CategoryOf(err) != cli.CategoryValidation {
		t.Fatalf("error = %v, want a validation error", err)
	}
	if !strings.Contains(cli.HintOf(err), "--secret-identity") {
		t.Errorf("hint = %q, want it to mention --secret-identity", cli.HintOf(err))
	}
}

func TestSealRequiresRecipient(t *testing.T) {
	_, secretPath := isolate(t)
	err := execute(t, "secret", "seal", "-o", "out", secretPath)
	if cli.CategoryOf(err) != cli.CategoryValidation {
		t.Fatalf("error = %v, want a validation error", err)
	}
}

func TestSealToStdout(t *testing.T) {
	dir, secretPath := isolate(t)
	recipient := keygen(t, filepath.Join(dir, "identity"))
	output := captureOutput(t)
	if err := execute(t, "secret", "seal", "-r", recipient, "-o", "-", secretPath); err != nil {
		t.Fatalf("seal: %v", err)
	}
	if !sealed.IsArmored(output.Bytes()) {
		t.Errorf("stdout is not an armored age file:\n%s", output.String())
	}
}
