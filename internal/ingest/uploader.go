package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/invoice-desk/constants"
	"github.com/joseph-ayodele/invoice-desk/internal/async"
	"github.com/joseph-ayodele/invoice-desk/internal/common"
	"github.com/joseph-ayodele/invoice-desk/internal/entity"
	"github.com/joseph-ayodele/invoice-desk/internal/formengine"
	"github.com/joseph-ayodele/invoice-desk/internal/invoiceapi"
	"github.com/joseph-ayodele/invoice-desk/internal/repository"
)

// Extractor is the part of the extraction service the uploader needs.
type Extractor interface {
	Extract(ctx context.Context, files []invoiceapi.File) ([]invoiceapi.ExtractResult, error)
}

// Outcome describes what happened to one file.
type Outcome struct {
	Path    string
	Hash    string
	Skipped bool // same content was extracted before
	Result  invoiceapi.ExtractResult
	OutFile string
}

// Uploader sends single files for extraction, remembers the outcome by content hash
// and optionally writes each extracted record to <out dir>/<name>.json.
type Uploader struct {
	client   Extractor
	uploads  repository.UploadRepository
	outDir   string
	logger   *slog.Logger
	onResult func(Outcome, error)
}

type UploaderOption func(*Uploader)

// WithHistory skips files whose content was already extracted successfully.
func WithHistory(repo repository.UploadRepository) UploaderOption {
	return func(u *Uploader) { u.uploads = repo }
}

// WithOutDir writes every extracted record as JSON into dir.
func WithOutDir(dir string) UploaderOption {
	return func(u *Uploader) { u.outDir = dir }
}

// WithResultHook is called after every processed file, from the worker goroutine.
func WithResultHook(fn func(Outcome, error)) UploaderOption {
	return func(u *Uploader) { u.onResult = fn }
}

func NewUploader(client Extractor, logger *slog.Logger, opts ...UploaderOption) *Uploader {
	u := &Uploader{client: client, logger: logger}
	for _, o := range opts {
		o(u)
	}
	return u
}

// Process implements async.Processor.
func (u *Uploader) Process(ctx context.Context, job async.Job) error {
	out, err := u.Upload(ctx, job.Path, job.Force)
	if u.onResult != nil {
		u.onResult(out, err)
	}
	return err
}

// Upload extracts one file. A per-file extraction error from the service is returned
// as an error and still recorded in the history.
func (u *Uploader) Upload(ctx context.Context, path string, force bool) (Outcome, error) {
	out := Outcome{Path: path}

	file, err := invoiceapi.FileFromPath(path)
	if err != nil {
		return out, err
	}
	out.Hash = HashHex(file.Data)

	if u.uploads != nil && !force {
		prev, err := u.uploads.GetByHash(ctx, out.Hash)
		switch {
		case err == nil && prev.Status == constants.UploadStatusExtracted:
			u.logger.Info("ingest.skip.duplicate", "path", path, "content_hash", out.Hash, "previous", prev.SourcePath)
			out.Skipped = true
			out.Result = invoiceapi.ExtractResult{Filename: prev.Filename}
			return out, nil
		case err != nil && !errors.Is(err, common.ErrNotFound):
			return out, err
		}
	}

	results, err := u.client.Extract(ctx, []invoiceapi.File{file})
	if err != nil {
		u.record(ctx, out, file, err.Error())
		return out, err
	}
	if len(results) == 0 {
		err := common.InternalErrorf("no extraction result for %s", file.Name)
		u.record(ctx, out, file, err.Error())
		return out, err
	}
	out.Result = results[0]
	if !out.Result.OK() {
		u.record(ctx, out, file, out.Result.Error)
		return out, fmt.Errorf("%s: %w", file.Name, errors.Join(common.ErrUpstream, errors.New(out.Result.Error)))
	}

	if u.outDir != "" {
		out.OutFile, err = writeRecord(u.outDir, file.Name, out.Result.Record)
		if err != nil {
			u.record(ctx, out, file, err.Error())
			return out, err
		}
	}
	u.record(ctx, out, file, "")
	u.logger.Info("ingest.extract.ok", "path", path, "filename", out.Result.Filename, "out_file", out.OutFile)
	return out, nil
}

func (u *Uploader) record(ctx context.Context, out Outcome, file invoiceapi.File, failure string) {
	if u.uploads == nil {
		return
	}
	status := constants.UploadStatusExtracted
	if failure != "" {
		status = constants.UploadStatusFailed
	}
	rec := &entity.Upload{
		ContentHash: out.Hash,
		Filename:    file.Name,
		SourcePath:  out.Path,
		SizeBytes:   int64(len(file.Data)),
		Status:      status,
		Error:       failure,
	}
	if err := u.uploads.Record(ctx, rec); err != nil {
		u.logger.Warn("failed to record upload", "path", out.Path, "error", err)
	}
}

// writeRecord stores record as dir/<name without extension>.json in the copy format.
func writeRecord(dir, filename string, record *formengine.Mapping) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create out dir: %w", err)
	}
	data, err := formengine.Indent(record, formengine.CopyIndent)
	if err != nil {
		return "", err
	}
	name := strings.TrimSuffix(filename, filepath.Ext(filename)) + ".json"
	target := filepath.Join(dir, name)
	if err := os.WriteFile(target, append(data, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", target, err)
	}
	return target, nil
}
