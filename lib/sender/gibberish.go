// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sender

import (
	"math/rand/v2"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Payload length bounds used by the stress client.
const (
	GibberishMinWords = 5
	GibberishMaxWords = 15
)

var gibberishWords = []string{
	"adapter", "allocator", "backplane", "bandwidth", "bitmask",
	"bootloader", "buffer", "bytecode", "cache", "checksum",
	"cipher", "cluster", "codec", "compiler", "container",
	"daemon", "datagram", "deadlock", "debugger", "descriptor",
	"dispatcher", "driver", "endpoint", "entropy", "failover",
	"firmware", "framebuffer", "garbage", "gateway", "handshake",
	"hashmap", "heap", "hypervisor", "interrupt", "iterator",
	"journal", "kernel", "keystore", "latency", "linker",
	"loopback", "mainframe", "middleware", "mutex", "namespace",
	"nonce", "opcode", "packet", "parser", "payload",
	"pipeline", "pointer", "protocol", "proxy", "quorum",
	"register", "replica", "resolver", "router", "runtime",
	"sandbox", "scheduler", "semaphore", "shard", "socket",
	"stack", "subnet", "syscall", "thread", "throughput",
	"timestamp", "token", "topology", "transistor", "tunnel",
	"uplink", "vector", "virtualized", "watchdog", "websocket",
}

// Gibberish returns a sentence of distinct technical words, between
// minWords and maxWords long inclusive, capitalized and ending in a
// period. Bounds are clamped to the vocabulary size; a nil rng uses the
// global source.
func Gibberish(rng *rand.Rand, minWords, maxWords int) string {
	intN := rand.IntN
	perm := rand.Perm
	if rng != nil {
		intN = rng.IntN
		perm = rng.Perm
	}

	minWords = max(1, min(minWords, len(gibberishWords)))
	maxWords = max(minWords, min(maxWords, len(gibberishWords)))
	count := minWords + intN(maxWords-minWords+1)

	words := make([]string, count)
	for i, index := range perm(len(gibberishWords))[:count] {
		words[i] = gibberishWords[index]
	}
	sentence := strings.Join(words, " ")
	first, size := utf8.DecodeRuneInString(sentence)
	return string(unicode.ToUpper(first)) + sentence[size:] + "."
}
