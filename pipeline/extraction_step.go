package pipeline

import (
	"context"
	"fmt"

	"github.com/serisow/studypack/extractor"
)

// ExtractionStepImpl routes every upload to exactly one accumulator: text for
// documents, pending images for rasterized PDF pages and direct uploads.
type ExtractionStepImpl struct {
    Extractor *extractor.Extractor
    Files     []extractor.UploadedFile
}

func (s *ExtractionStepImpl) Execute(ctx context.Context, runContext *Context) error {
    if s.Extractor == nil {
        return fmt.Errorf("extractor is not initialized")
    }

    result, err := s.Extractor.Extract(ctx, s.Files)
    if err != nil {
        return err
    }

    runContext.ExtractedContent = result.Text
    runContext.PendingImages = result.Images
    return nil
}

func (s *ExtractionStepImpl) GetType() string {
    return "extraction_step"
}
