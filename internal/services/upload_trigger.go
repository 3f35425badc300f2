package services

import (
	"context"
	"log/slog"

	"github.com/Lllllllleong/tenderflow/internal/models"
	"github.com/Lllllllleong/tenderflow/internal/objectstore"
)

type GCSEvent struct {
	Bucket string `json:"bucket"`
	Name   string `json:"name"`
}

// UploadTriggerFunction runs form extraction for the tender a newly uploaded document belongs to.
type UploadTriggerFunction struct {
	runner TenderRunner
	bucket string
	close  func() error
}

func NewUploadTrigger(ctx context.Context) (*UploadTriggerFunction, error) {
	extractor, err := NewFormExtractor(ctx)
	if err != nil {
		return nil, err
	}
	return &UploadTriggerFunction{
		runner: extractor.runner,
		bucket: extractor.stack.Settings.DocumentsBucket,
		close:  extractor.Close,
	}, nil
}

func NewUploadTriggerWith(runner TenderRunner, bucket string) *UploadTriggerFunction {
	return &UploadTriggerFunction{runner: runner, bucket: bucket}
}

func (f *UploadTriggerFunction) Close() error {
	if f.close != nil {
		return f.close()
	}
	return nil
}

// Process ignores objects outside the documents bucket, outside tender-documents/ and non-PDFs.
// Documents of the tender that are already complete are skipped by the run itself.
func (f *UploadTriggerFunction) Process(ctx context.Context, e GCSEvent) error {
	logCtx := slog.With("gcsBucket", e.Bucket, "gcsObject", e.Name)
	if f.bucket != "" && e.Bucket != f.bucket {
		logCtx.Info("Object is not in the documents bucket. Ignoring.")
		return nil
	}
	tenderID, ok := objectstore.TenderIDFromKey(e.Name)
	if !ok || !objectstore.IsPDF(e.Name) {
		logCtx.Info("Object is not a tender document. Ignoring.")
		return nil
	}

	_, err := runTender(ctx, f.runner, &models.TenderRequest{TenderID: tenderID}, "form extraction")
	return err
}
