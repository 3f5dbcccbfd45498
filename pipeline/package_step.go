package pipeline

import (
	"context"
	"fmt"
)

// PackageStepImpl converts the notes to a PDF buffer and the diagram source
// to a PNG buffer. Both conversions must succeed before the study pack is
// assembled; partial completion publishes nothing.
type PackageStepImpl struct {
    RenderNotesPDF   func(string) ([]byte, error)
    RenderMindMapPNG func(context.Context, string) ([]byte, error)
}

func (s *PackageStepImpl) Execute(ctx context.Context, runContext *Context) error {
    if runContext.GeneratedNotes == "" {
        return fmt.Errorf("no generated notes to package")
    }
    if runContext.DiagramSource == "" {
        return fmt.Errorf("no diagram source to package")
    }

    notesPDF, err := s.RenderNotesPDF(runContext.GeneratedNotes)
    if err != nil {
        return fmt.Errorf("error packaging notes PDF: %w", err)
    }

    mindMapPNG, err := s.RenderMindMapPNG(ctx, runContext.DiagramSource)
    if err != nil {
        return fmt.Errorf("error packaging mind map PNG: %w", err)
    }

    runContext.Output = &StudyPack{
        NotesPDF:    notesPDF,
        MindMapPNG:  mindMapPNG,
        Ready:       true,
        GeneratedAt: timeProvider.Now(),
    }
    return nil
}

func (s *PackageStepImpl) GetType() string {
    return "package_step"
}
