// Aniscope - Anime Discovery and Preference Ranking
// Copyright 2026 Aniscope Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aniscope/aniscope

package cache

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
)

// Codec transforms serialized entries before storage and after retrieval.
// The historical web client had a compression hook that was a silent no-op;
// here the hook is real: deflate by default, passthrough when disabled.
type Codec interface {
	// Name identifies the codec ("deflate" or "none").
	Name() string

	// Encode transforms a serialized entry for storage.
	Encode(data []byte) ([]byte, error)

	// Decode reverses Encode.
	Decode(data []byte) ([]byte, error)
}

// newCodec returns the codec for a configured compression name. Unknown
// names fall back to passthrough.
func newCodec(name string) Codec {
	if name == "deflate" {
		return deflateCodec{}
	}
	return passthroughCodec{}
}

// deflateCodec compresses entries with DEFLATE at the default level.
type deflateCodec struct{}

func (deflateCodec) Name() string { return "deflate" }

func (deflateCodec) Encode(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		return nil, fmt.Errorf("create deflate writer: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("compress entry: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("finalize compression: %w", err)
	}
	return buf.Bytes(), nil
}

func (deflateCodec) Decode(data []byte) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(data))
	defer func() { _ = r.Close() }() //nolint:errcheck // close after full read is not actionable
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("decompress entry: %w", err)
	}
	return out, nil
}

// passthroughCodec stores entries verbatim.
type passthroughCodec struct{}

func (passthroughCodec) Name() string { return "none" }

func (passthroughCodec) Encode(data []byte) ([]byte, error) { return data, nil }

func (passthroughCodec) Decode(data []byte) ([]byte, error) { return data, nil }
