package camelshdf5

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Artifacts maps entry names to the file paths produced for them.
type Artifacts = map[string][]string

// DocumentReader decodes a JSONL document stream: one (name, document)
// envelope per line, in document order.
type DocumentReader struct {
	scanner *bufio.Scanner
	line    int
}

// NewDocumentReader wraps r. Lines up to 16 MiB are accepted, which
// covers large event pages.
func NewDocumentReader(r io.Reader) *DocumentReader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	return &DocumentReader{scanner: sc}
}

// Next returns the next envelope, or io.EOF at the end of the stream.
func (r *DocumentReader) Next() (Document, error) {
	for r.scanner.Scan() {
		r.line++
		raw := r.scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var doc Document
		if err := json.Unmarshal(raw, &doc); err != nil {
			return Document{}, wrapErr("decode stream line", err)
		}
		return doc, nil
	}
	if err := r.scanner.Err(); err != nil {
		return Document{}, wrapErr("read stream", err)
	}
	return Document{}, io.EOF
}

// Export drives a full document stream through a Serializer and returns
// the produced artifacts.
//
// Parameters:
//   - r: the document stream, in document order
//   - directory: output directory ("" for the current working directory)
//   - opts: serializer options (file prefix, NeXus view, compression, ...)
//
// The serializer and any open file handles are closed on all exit paths;
// a malformed or inconsistent stream fails the export of that run rather
// than silently truncating data.
//
// Example:
//
//	f, _ := os.Open("run.jsonl")
//	defer f.Close()
//	artifacts, err := camelshdf5.Export(
//	    camelshdf5.NewDocumentReader(f), "out",
//	    camelshdf5.WithFilePrefix("{session_name}-"))
func Export(r *DocumentReader, directory string, opts ...Option) (Artifacts, error) {
	s := NewSerializer(directory, opts...)
	defer func() { _ = s.Close() }()

	for {
		doc, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return s.Artifacts(), err
		}
		if err := s.Receive(doc); err != nil {
			return s.Artifacts(), err
		}
	}
	if s.fw != nil {
		uid := ""
		if s.start != nil {
			uid = s.start.UID
		}
		_ = s.Close()
		return s.Artifacts(), fmt.Errorf("%w: run %q", ErrTruncatedStream, uid)
	}
	if err := s.Close(); err != nil {
		return s.Artifacts(), err
	}
	return s.Artifacts(), nil
}
