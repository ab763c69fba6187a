package report

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dvloznov/ceap-risk/internal/risk"
	"github.com/dvloznov/ceap-risk/internal/storage"
	"github.com/rs/zerolog"
)

// Bundle is the full set of output documents of one run.
type Bundle struct {
	Aggregations *Aggregations
	Deputies     []*risk.LegislatorProfile
	FraudFlags   []FraudFlag
	Mismatches   []Mismatch
	Manifest     *Manifest
}

// Writer serializes a Bundle to a local directory and, when a bucket is
// configured, uploads every file under the prefix.
type Writer struct {
	dir    string
	store  storage.Service
	bucket string
	prefix string
	log    zerolog.Logger
}

// NewWriter creates a Writer. store may be nil when bucket is empty.
func NewWriter(dir string, store storage.Service, bucket, prefix string, log zerolog.Logger) *Writer {
	return &Writer{dir: dir, store: store, bucket: bucket, prefix: prefix, log: log}
}

// Write writes all documents, manifest last, and returns the written
// locations in write order.
func (w *Writer) Write(ctx context.Context, b *Bundle) ([]string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return nil, fmt.Errorf("Write: create output dir: %w", err)
	}

	deputies := b.Deputies
	if deputies == nil {
		deputies = []*risk.LegislatorProfile{}
	}
	fraud := b.FraudFlags
	if fraud == nil {
		fraud = []FraudFlag{}
	}
	mismatches := b.Mismatches
	if mismatches == nil {
		mismatches = []Mismatch{}
	}

	docs := []struct {
		name string
		v    any
	}{
		{FileAggregations, b.Aggregations},
		{FileDeputies, deputies},
		{FileFraudFlags, fraud},
		{FileMismatches, mismatches},
		{FileManifest, b.Manifest},
	}

	var written []string
	for _, d := range docs {
		path, err := w.writeLocal(d.name, d.v)
		if err != nil {
			return written, fmt.Errorf("Write: %w", err)
		}
		written = append(written, path)
	}

	if w.bucket == "" {
		return written, nil
	}
	for _, d := range docs {
		uri, err := w.upload(ctx, d.name)
		if err != nil {
			return written, fmt.Errorf("Write: %w", err)
		}
		written = append(written, uri)
	}
	return written, nil
}

// WriteDocument writes one additional document next to the bundle, uploading
// it when a bucket is configured.
func (w *Writer) WriteDocument(ctx context.Context, name string, v any) ([]string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return nil, fmt.Errorf("WriteDocument: create output dir: %w", err)
	}
	path, err := w.writeLocal(name, v)
	if err != nil {
		return nil, fmt.Errorf("WriteDocument: %w", err)
	}
	written := []string{path}
	if w.bucket == "" {
		return written, nil
	}
	uri, err := w.upload(ctx, name)
	if err != nil {
		return written, fmt.Errorf("WriteDocument: %w", err)
	}
	return append(written, uri), nil
}

func (w *Writer) writeLocal(name string, v any) (string, error) {
	path := filepath.Join(w.dir, name)
	if err := writeJSONFile(path, v); err != nil {
		return "", fmt.Errorf("%s: %w", name, err)
	}
	w.log.Info().Str("file", path).Msg("Saved output file")
	return path, nil
}

func (w *Writer) upload(ctx context.Context, name string) (string, error) {
	if w.store == nil {
		return "", fmt.Errorf("bucket %q configured without a storage service", w.bucket)
	}
	object := storage.ObjectName(w.prefix, name)
	if err := w.store.UploadFile(ctx, w.bucket, object, filepath.Join(w.dir, name)); err != nil {
		return "", fmt.Errorf("upload %s: %w", name, err)
	}
	uri := storage.GCSURI(w.bucket, object)
	w.log.Info().Str("uri", uri).Msg("Uploaded output file")
	return uri, nil
}

func writeJSONFile(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %q: %w", path, err)
	}
	if err := EncodeJSON(f, v); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// EncodeJSON writes v as indented JSON without HTML escaping so accented
// names stay readable.
func EncodeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

// ReadProfiles decodes a deputies.json document.
func ReadProfiles(r io.Reader) ([]*risk.LegislatorProfile, error) {
	var out []*risk.LegislatorProfile
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return nil, fmt.Errorf("ReadProfiles: decode: %w", err)
	}
	return out, nil
}

// ReadAggregations decodes an aggregations.json document.
func ReadAggregations(r io.Reader) (*Aggregations, error) {
	var out Aggregations
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return nil, fmt.Errorf("ReadAggregations: decode: %w", err)
	}
	return &out, nil
}

// ReadManifest decodes a manifest.json document.
func ReadManifest(r io.Reader) (*Manifest, error) {
	var out Manifest
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return nil, fmt.Errorf("ReadManifest: decode: %w", err)
	}
	return &out, nil
}
