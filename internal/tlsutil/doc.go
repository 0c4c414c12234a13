// Copyright (c) Parley Authors.
// Licensed under the MIT License.

// Package tlsutil centralizes TLS settings for outbound backend calls:
// TLS 1.2 minimum, AEAD cipher suites only, and a shared transport shape
// so every adapter's HTTP client is hardened the same way.
package tlsutil
