// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sealed stores the broker's shared secret at rest encrypted
// with age.
//
// [GenerateIdentity] creates an x25519 identity whose private half
// lives in a [secret.Buffer]. [Seal] encrypts to one or more recipients
// and produces ASCII-armored output; [Open] decrypts armored or binary
// age files. [LoadSecret] is the loader the CLI hands to the broker and
// to secret.Watcher: with no identity it reads the secret file as
// plaintext, with one it decrypts first.
package sealed
