package pipeline

import (
    "github.com/serisow/studypack/extractor"
)

// Context carries one generation run's intermediate state between steps.
// ExtractedContent is immutable once the vision step has run; GeneratedNotes
// and DiagramSource are immutable once produced.
type Context struct {
    SystemInstruction string
    ExtractedContent  string
    PendingImages     []extractor.PendingImage
    GeneratedNotes    string
    DiagramSource     string
    Output            *StudyPack
}

func NewContext() *Context {
    return &Context{}
}
