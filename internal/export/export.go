// Package export encodes report results as CSV or Parquet and optionally
// archives the encoded file to object storage under
// exports/{table}/{timestamp}.{format}.
package export

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/colplan/colplan/internal/observability"
	"github.com/colplan/colplan/internal/report"
	"github.com/colplan/colplan/internal/storage"
)

type Format string

const (
	FormatCSV     Format = "csv"
	FormatParquet Format = "parquet"
)

func ParseFormat(raw string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(raw))) {
	case FormatCSV, "":
		return FormatCSV, nil
	case FormatParquet:
		return FormatParquet, nil
	default:
		return "", fmt.Errorf("unsupported export format: %q", raw)
	}
}

func (f Format) ContentType() string {
	if f == FormatParquet {
		return "application/vnd.apache.parquet"
	}
	return "text/csv"
}

// Export is one encoded report. ArchiveKey is empty when archiving is
// disabled or was not requested.
type Export struct {
	Format      Format `json:"format"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"-"`
	SizeBytes   int64  `json:"size_bytes"`
	ArchiveKey  string `json:"archive_key,omitempty"`
}

// Service encodes and archives exports. A nil store disables archiving.
type Service struct {
	store  storage.ObjectStore
	logger *slog.Logger
	now    func() time.Time
}

func NewService(store storage.ObjectStore, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger, now: time.Now}
}

func (s *Service) Export(ctx context.Context, result report.Result, format Format, archive bool) (Export, error) {
	var (
		data []byte
		err  error
	)
	switch format {
	case FormatCSV:
		data, err = encodeCSV(result)
	case FormatParquet:
		data, err = encodeParquet(result)
	default:
		return Export{}, fmt.Errorf("unsupported export format: %q", format)
	}
	if err != nil {
		return Export{}, err
	}

	exported := Export{
		Format:      format,
		ContentType: format.ContentType(),
		Data:        data,
		SizeBytes:   int64(len(data)),
	}
	if !archive {
		return exported, nil
	}
	if s.store == nil {
		return Export{}, fmt.Errorf("export archiving is not configured")
	}

	key, err := storage.BuildExportPath(result.TableName, string(format), s.now())
	if err != nil {
		return Export{}, err
	}
	info, err := s.store.Put(ctx, key, bytes.NewReader(data), exported.SizeBytes, storage.PutOptions{ContentType: exported.ContentType})
	if err != nil {
		return Export{}, fmt.Errorf("archive export: %w", err)
	}

	observability.ObserveExportArchive()
	s.logger.Info("report export archived",
		slog.String("key", info.Key),
		slog.String("format", string(format)),
		slog.Int64("size_bytes", exported.SizeBytes))

	exported.ArchiveKey = info.Key
	return exported, nil
}

// Archived opens a previously archived export by the key handed out at
// export time. The caller closes the returned body.
func (s *Service) Archived(ctx context.Context, key string) (io.ReadCloser, storage.ObjectInfo, error) {
	if s.store == nil {
		return nil, storage.ObjectInfo{}, fmt.Errorf("export archiving is not configured")
	}
	info, err := s.store.Stat(ctx, key)
	if err != nil {
		return nil, storage.ObjectInfo{}, fmt.Errorf("stat archived export: %w", err)
	}
	body, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, storage.ObjectInfo{}, fmt.Errorf("get archived export: %w", err)
	}
	return body, info, nil
}
