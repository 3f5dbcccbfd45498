package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/serisow/studypack/pipeline/llm_service"
)

const notesPromptTemplate = "Please take the following extracted class notes and expand them into a detailed, comprehensive document. For each key point, provide detailed explanations, include concrete examples, and organize the information logically.\n\n---\n%s\n---"

// NotesStepImpl asks the text model to expand the extracted content into the
// study document. The call gets an extended timeout since both input and
// output can be large.
type NotesStepImpl struct {
    LLMServiceInstance llm_service.LLMService
    LLMConfig          map[string]interface{}
    Timeout            time.Duration
}

func (s *NotesStepImpl) Execute(ctx context.Context, runContext *Context) error {
    if s.LLMServiceInstance == nil {
        return fmt.Errorf("LLMService is not initialized for notes step")
    }

    timeout := s.Timeout
    if timeout <= 0 {
        timeout = 600 * time.Second
    }
    callCtx, cancel := context.WithTimeout(ctx, timeout)
    defer cancel()

    prompt := fmt.Sprintf(notesPromptTemplate, runContext.ExtractedContent)

    result, err := s.LLMServiceInstance.CallLLM(callCtx, s.LLMConfig, prompt)
    if err != nil {
        return fmt.Errorf("error generating notes: %w", err)
    }
    if result == "" {
        return fmt.Errorf("notes generation returned empty document")
    }

    runContext.GeneratedNotes = result
    return nil
}

func (s *NotesStepImpl) GetType() string {
    return "notes_step"
}
