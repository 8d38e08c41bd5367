package port

import "context"

// CaptionRequest carries the file content and context for the provider
type CaptionRequest struct {
	FileName string
	Category string
	MimeType string
	Content  []byte
}

// CaptionProvider is the external classification/captioning capability.
// Implementations classify failures retryable vs fatal via
// domain.RetryableError.
type CaptionProvider interface {
	Caption(ctx context.Context, req *CaptionRequest) (string, error)
}

// Enrichment is the classification result for one file
type Enrichment struct {
	Category string
	Caption  string
}

// Enricher derives category and caption for a file
type Enricher interface {
	Classify(ctx context.Context, desc FileDescriptor, content []byte) (*Enrichment, error)
}
