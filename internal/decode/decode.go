// SPDX-License-Identifier: MIT
//
// Package decode turns audio files into interleaved float32 PCM. Formats are
// looked up by file extension in a Registry.
package decode

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

var (
	// ErrUnknownFormat is returned when no decoder is registered for a file.
	ErrUnknownFormat = errors.New("decode: unknown audio format")

	// ErrInvalidFile is returned when the content does not match its format.
	ErrInvalidFile = errors.New("decode: invalid audio file")
)

// Source is a stream of decoded PCM.
type Source interface {
	SampleRate() int
	Channels() int

	// ReadSamples fills dst with interleaved samples in [-1, 1] and returns
	// the number of values written. It returns io.EOF once the stream is
	// exhausted, possibly together with a final partial read.
	ReadSamples(dst []float32) (int, error)

	Close() error
}

// Decoder builds a Source from an open file.
type Decoder interface {
	Decode(r io.ReadSeeker) (Source, error)
}

// DecoderFunc adapts a function to Decoder.
type DecoderFunc func(r io.ReadSeeker) (Source, error)

// Decode calls f(r).
func (f DecoderFunc) Decode(r io.ReadSeeker) (Source, error) { return f(r) }

// Registry maps lower-case file extensions, without the dot, to decoders.
type Registry struct {
	mu     sync.RWMutex
	codecs map[string]Decoder
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{codecs: make(map[string]Decoder)}
}

// Register adds d under each extension.
func (r *Registry) Register(d Decoder, exts ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ext := range exts {
		r.codecs[normalizeExt(ext)] = d
	}
}

// Get returns the decoder for ext.
func (r *Registry) Get(ext string) (Decoder, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.codecs[normalizeExt(ext)]
	return d, ok
}

// Formats lists the registered extensions in sorted order.
func (r *Registry) Formats() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.codecs))
	for ext := range r.codecs {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// Open decodes the file at path with the decoder for its extension. The
// returned Source owns the file and closes it.
func (r *Registry) Open(path string) (Source, error) {
	d, ok := r.Get(filepath.Ext(path))
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, filepath.Base(path))
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	src, err := d.Decode(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return &fileSource{Source: src, file: f}, nil
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

type fileSource struct {
	Source
	file *os.File
}

func (s *fileSource) Close() error {
	return errors.Join(s.Source.Close(), s.file.Close())
}

// Default holds every built-in format.
var Default = func() *Registry {
	r := NewRegistry()
	r.Register(DecoderFunc(DecodeWAV), "wav", "wave")
	r.Register(DecoderFunc(DecodeAIFF), "aiff", "aif")
	r.Register(DecoderFunc(DecodeMP3), "mp3")
	r.Register(DecoderFunc(DecodeOgg), "ogg", "oga")
	return r
}()

// Open decodes path with the Default registry.
func Open(path string) (Source, error) { return Default.Open(path) }

// ReadAll drains src into a single interleaved slice.
func ReadAll(src Source) ([]float32, error) {
	var out []float32
	buf := make([]float32, 4096*max(src.Channels(), 1))
	for {
		n, err := src.ReadSamples(buf)
		out = append(out, buf[:n]...)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		if n == 0 {
			return out, nil
		}
	}
}
