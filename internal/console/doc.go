// Copyright (c) Parley Authors.
// Licensed under the MIT License.

// Package console renders conversation turns for interactive runs. Each
// actor slot gets a stable color stepped around the hue wheel by the golden
// angle, so any number of actors stay visually distinct without a fixed
// palette. Turn content is echoed verbatim; only the banners are styled.
package console
