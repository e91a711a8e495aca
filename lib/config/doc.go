// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads ipcdemo configuration.
//
// Configuration comes from a single file named by the --config flag or
// the IPCDEMO_CONFIG environment variable. There is no discovery and no
// per-field environment override: the file plus command-line flags is
// the whole picture. Without a file, [Default] applies.
//
// The file format follows the extension: .yaml and .yml are YAML, .json
// and .jsonc are JSON with comments and trailing commas allowed.
// Unknown keys are errors. Durations are strings such as "30s" or
// "1h". Path fields expand ${HOME} and other ${VAR} or ${VAR:-default}
// references.
package config
