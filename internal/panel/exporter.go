package panel

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/tigerroll/mibel/internal/config"
	"github.com/tigerroll/mibel/internal/domain/model"
	storageAdapter "github.com/tigerroll/mibel/pkg/adapter/storage"
	"github.com/tigerroll/mibel/pkg/support/exception"
	"github.com/tigerroll/mibel/pkg/support/logger"
)

// Exporter writes assembled panels as SNAPPY-compressed parquet artifacts,
// locally and optionally to a configured storage connection.
type Exporter struct {
	cfg      config.ExportConfig
	resolver *storageAdapter.ConnectionResolver
}

// NewExporter creates an Exporter. The resolver may be nil when upload is disabled.
func NewExporter(cfg config.ExportConfig, resolver *storageAdapter.ConnectionResolver) *Exporter {
	return &Exporter{cfg: cfg, resolver: resolver}
}

// ArtifactName derives the artifact filename from the inclusive date range.
func ArtifactName(startDate, endDate time.Time) string {
	return fmt.Sprintf("panel_%s_%s.parquet", startDate.Format("20060102"), endDate.Format("20060102"))
}

// Export serializes the panel and writes the artifact. It returns the local
// path written; failures during the optional upload are aggregated with any
// local write error.
func (e *Exporter) Export(ctx context.Context, p *Panel, startDate, endDate time.Time) (string, error) {
	buf := new(bytes.Buffer)
	pw, err := writer.NewParquetWriterFromWriter(buf, new(model.AnalysisRow), 1)
	if err != nil {
		return "", exception.NewPipelineError(moduleName, "failed to create parquet writer", err, false, false)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for i := range p.Rows {
		if err := pw.Write(p.Rows[i]); err != nil {
			return "", exception.NewPipelineError(moduleName, "failed to write panel row to parquet", err, false, false)
		}
	}

	// WriteStop can panic inside the parquet library; convert panics to errors.
	var writeStopErr error
	func() {
		defer func() {
			if r := recover(); r != nil {
				if err, ok := r.(error); ok {
					writeStopErr = err
				} else {
					writeStopErr = fmt.Errorf("panic value: %v", r)
				}
				logger.Errorf("Caught panic during parquet WriteStop: %v", writeStopErr)
			}
		}()
		writeStopErr = pw.WriteStop()
	}()
	if writeStopErr != nil {
		return "", exception.NewPipelineError(moduleName, "failed to finalize parquet artifact", writeStopErr, false, false)
	}

	name := ArtifactName(startDate, endDate)
	logger.Infof("Serialized %d panel rows to parquet (%d bytes) as %s.", len(p.Rows), buf.Len(), name)

	var errs *multierror.Error

	localPath := filepath.Join(e.cfg.OutputDir, name)
	if err := os.MkdirAll(e.cfg.OutputDir, 0755); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("failed to create output directory '%s': %w", e.cfg.OutputDir, err))
	} else if err := os.WriteFile(localPath, buf.Bytes(), 0644); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("failed to write artifact '%s': %w", localPath, err))
	} else {
		logger.Infof("Wrote panel artifact to %s.", localPath)
	}

	if e.cfg.Upload && e.resolver != nil {
		conn, err := e.resolver.ResolveStorageConnection(ctx, e.cfg.StorageRef)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("failed to resolve storage connection '%s': %w", e.cfg.StorageRef, err))
		} else if err := conn.Upload(ctx, "", name, bytes.NewReader(buf.Bytes()), "application/octet-stream"); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("failed to upload artifact '%s': %w", name, err))
		} else {
			logger.Infof("Uploaded panel artifact %s via storage connection '%s'.", name, e.cfg.StorageRef)
		}
	}

	return localPath, errs.ErrorOrNil()
}
