package pipeline

// BatchPlanner picks how many pages of a document are transcribed and embedded at a time.
// Light documents get large batches; image-heavy ones get small batches to bound memory and payload size.
type BatchPlanner struct {
	ThresholdBytesPerPage int
	LargeBatch            int
	SmallBatch            int
}

func DefaultBatchPlanner() BatchPlanner {
	return BatchPlanner{
		ThresholdBytesPerPage: 250 * 1024,
		LargeBatch:            20,
		SmallBatch:            5,
	}
}

func (p BatchPlanner) BatchSize(pageCount, totalBytes int) int {
	perPage := totalBytes / max(pageCount, 1)
	if perPage < p.ThresholdBytesPerPage {
		return max(p.LargeBatch, 1)
	}
	return max(p.SmallBatch, 1)
}
