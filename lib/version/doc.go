// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports build version information for --version.
//
// [GitCommit], [GitDirty], [BuildTime] and [Version] can be injected
// with -ldflags -X:
//
//	go build -ldflags "-X github.com/bureau-foundation/ipcdemo/lib/version.GitCommit=$(git rev-parse --short HEAD)"
//
// When they are not, the commit, dirty flag, and build time fall back
// to the VCS stamps the Go toolchain records in the binary's build
// info, and the version falls back to the main module version.
package version
