// Package output writes run results to the output directory and, when a
// bucket is configured, publishes them to object storage.
package output

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"go.uber.org/zap"

	"icpscout/internal/config"
	"icpscout/internal/csvexport"
	"icpscout/internal/pipeline"
	"icpscout/internal/port"
	"icpscout/internal/rawexport"
	"icpscout/internal/xlsxexport"
)

// presignExpiry is how long published download links stay valid.
const presignExpiry int64 = 24 * 60 * 60

const (
	contentTypeJSON = "application/json"
	contentTypeCSV  = "text/csv; charset=utf-8"
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Emitter implements pipeline.Emitter.
type Emitter struct {
	cfg     config.OutputConfig
	storage port.ObjectStorage
	bucket  string
	prefix  string

	raw []byte
}

var _ pipeline.Emitter = (*Emitter)(nil)

// New creates an Emitter. storage may be nil, in which case nothing is published.
func New(cfg config.OutputConfig, storage port.ObjectStorage, s3cfg config.S3Config) *Emitter {
	return &Emitter{cfg: cfg, storage: storage, bucket: s3cfg.Bucket, prefix: s3cfg.Prefix}
}

// EmitRaw writes raw_companies.json.
func (e *Emitter) EmitRaw(_ context.Context, ex *pipeline.Extraction) error {
	var buf bytes.Buffer
	if err := rawexport.Write(&buf, ex.Records, ex.Stats); err != nil {
		return err
	}
	e.raw = buf.Bytes()
	return e.writeFile(e.cfg.RawFile, e.raw)
}

// EmitRows writes the CSV and XLSX tables and publishes every output of the run.
func (e *Emitter) EmitRows(ctx context.Context, res *pipeline.Result) error {
	var buf bytes.Buffer
	if err := csvexport.WriteBOM(&buf); err != nil {
		return err
	}
	w := csvexport.NewWriter(&buf)
	if err := w.WriteHeader(); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}
	if err := w.WriteRecords(res.Rows); err != nil {
		return fmt.Errorf("writing csv rows: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flushing csv: %w", err)
	}

	files := []outputFile{{e.cfg.RawFile, e.raw, contentTypeJSON}, {e.cfg.CSVFile, buf.Bytes(), contentTypeCSV}}
	if err := e.writeFile(e.cfg.CSVFile, buf.Bytes()); err != nil {
		return err
	}

	if e.cfg.WriteXLSX {
		data, err := xlsxexport.Build(res.Rows)
		if err != nil {
			return err
		}
		if err := e.writeFile(e.cfg.XLSXFile, data); err != nil {
			return err
		}
		files = append(files, outputFile{e.cfg.XLSXFile, data, contentTypeXLSX})
	}

	return e.publish(ctx, res.RunID, files)
}

type outputFile struct {
	name        string
	data        []byte
	contentType string
}

// writeFile replaces name in the output directory atomically.
func (e *Emitter) writeFile(name string, data []byte) error {
	if err := os.MkdirAll(e.cfg.Dir, 0o755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}
	dst := filepath.Join(e.cfg.Dir, name)
	tmp, err := os.CreateTemp(e.cfg.Dir, "."+name+".*")
	if err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	zap.L().Info("output: wrote file", zap.String("path", dst), zap.Int("bytes", len(data)))
	return nil
}

func (e *Emitter) publish(ctx context.Context, runID string, files []outputFile) error {
	if e.storage == nil || e.bucket == "" {
		return nil
	}
	for _, f := range files {
		if len(f.data) == 0 {
			continue
		}
		key := path.Join(e.prefix, runID, f.name)
		if _, err := e.storage.Upload(ctx, port.UploadInput{
			Bucket:      e.bucket,
			Key:         key,
			Body:        bytes.NewReader(f.data),
			ContentType: f.contentType,
			Size:        int64(len(f.data)),
		}); err != nil {
			return fmt.Errorf("publishing %s: %w", f.name, err)
		}

		log := zap.L().With(zap.String("bucket", e.bucket), zap.String("key", key))
		url, err := e.storage.GetPresignedURL(ctx, e.bucket, key, presignExpiry)
		if err != nil {
			log.Warn("output: presign failed", zap.Error(err))
			continue
		}
		log.Info("output: published", zap.String("url", url))
	}
	return nil
}
