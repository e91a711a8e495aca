// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sealed

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"filippo.io/age"
	"filippo.io/age/armor"

	"github.com/bureau-foundation/ipcdemo/lib/secret"
)

// maxSealedSize bounds a sealed secret file. age adds a few hundred
// bytes of header per recipient on top of the plaintext limit.
const maxSealedSize = secret.MaxFileSize + 16<<10

// Identity is an age x25519 identity. Close it when done.
type Identity struct {
	// Private is the AGE-SECRET-KEY-1... string in locked memory.
	Private *secret.Buffer

	// Recipient is the public age1... string.
	Recipient string
}

// Close releases the private key.
func (i *Identity) Close() error {
	if i.Private == nil {
		return nil
	}
	return i.Private.Close()
}

// GenerateIdentity creates a fresh x25519 identity.
func GenerateIdentity() (*Identity, error) {
	generated, err := age.GenerateX25519Identity()
	if err != nil {
		return nil, fmt.Errorf("sealed: generating identity: %w", err)
	}
	// The age library hands back a heap string; the locked buffer is
	// the copy that lives on.
	private, err := secret.NewFromBytes([]byte(generated.String()))
	if err != nil {
		return nil, fmt.Errorf("sealed: protecting identity: %w", err)
	}
	return &Identity{Private: private, Recipient: generated.Recipient().String()}, nil
}

// WriteIdentityFile writes the identity in the format age-keygen uses:
// comment lines with the creation time and public key, then the key.
func (i *Identity) WriteIdentityFile(writer io.Writer, created time.Time) error {
	_, err := fmt.Fprintf(writer, "# created: %s\n# public key: %s\n%s\n",
		created.UTC().Format(time.RFC3339), i.Recipient, i.Private.Bytes())
	return err
}

// Seal encrypts plaintext to every recipient and returns armored
// ciphertext.
func Seal(plaintext []byte, recipients []string) ([]byte, error) {
	if len(recipients) == 0 {
		return nil, errors.New("sealed: at least one recipient is required")
	}
	parsed := make([]age.Recipient, 0, len(recipients))
	for _, recipient := range recipients {
		value, err := age.ParseX25519Recipient(strings.TrimSpace(recipient))
		if err != nil {
			return nil, fmt.Errorf("sealed: recipient %q: %w", recipient, err)
		}
		parsed = append(parsed, value)
	}

	var output bytes.Buffer
	armored := armor.NewWriter(&output)
	encrypting, err := age.Encrypt(armored, parsed...)
	if err != nil {
		return nil, fmt.Errorf("sealed: starting encryption: %w", err)
	}
	if _, err := encrypting.Write(plaintext); err != nil {
		return nil, fmt.Errorf("sealed: encrypting: %w", err)
	}
	if err := encrypting.Close(); err != nil {
		return nil, fmt.Errorf("sealed: finishing encryption: %w", err)
	}
	if err := armored.Close(); err != nil {
		return nil, fmt.Errorf("sealed: finishing armor: %w", err)
	}
	return output.Bytes(), nil
}

// IsArmored reports whether data starts with the age armor header,
// ignoring leading whitespace.
func IsArmored(data []byte) bool {
	return bytes.HasPrefix(bytes.TrimLeft(data, " \t\r\n"), []byte(armor.Header))
}

// Open decrypts ciphertext (armored or binary) with the identities in
// identityFile, which uses the age identity file format. The plaintext
// is returned in locked memory.
func Open(ciphertext []byte, identityFile *secret.Buffer) (*secret.Buffer, error) {
	identities, err := age.ParseIdentities(bytes.NewReader(identityFile.Bytes()))
	if err != nil {
		return nil, fmt.Errorf("sealed: parsing identity: %w", err)
	}

	var source io.Reader = bytes.NewReader(ciphertext)
	if IsArmored(ciphertext) {
		source = armor.NewReader(bytes.NewReader(bytes.TrimLeft(ciphertext, " \t\r\n")))
	}
	decrypting, err := age.Decrypt(source, identities...)
	if err != nil {
		return nil, fmt.Errorf("sealed: decrypting: %w", err)
	}
	plaintext, err := io.ReadAll(decrypting)
	if err != nil {
		secret.Zero(plaintext)
		return nil, fmt.Errorf("sealed: reading plaintext: %w", err)
	}
	defer secret.Zero(plaintext)

	trimmed := bytes.TrimSpace(plaintext)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("sealed: %w", secret.ErrEmpty)
	}
	return secret.NewFromBytes(trimmed)
}

// LoadSecret returns a loader for the shared secret file. With an empty
// identityPath the file is read as plaintext.
func LoadSecret(identityPath string) func(path string) (*secret.Buffer, error) {
	if identityPath == "" {
		return secret.ReadFromPath
	}
	return func(path string) (*secret.Buffer, error) {
		identity, err := secret.ReadFromPath(identityPath)
		if err != nil {
			return nil, fmt.Errorf("sealed: identity: %w", err)
		}
		defer identity.Close()

		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("sealed: %w", err)
		}
		defer file.Close()
		ciphertext, err := io.ReadAll(io.LimitReader(file, maxSealedSize+1))
		if err != nil {
			return nil, fmt.Errorf("sealed: reading %s: %w", path, err)
		}
		if len(ciphertext) > maxSealedSize {
			return nil, fmt.Errorf("sealed: %s exceeds %d bytes", path, maxSealedSize)
		}
		return Open(ciphertext, identity)
	}
}
