package pipeline

import (
	"context"
	"fmt"

	"github.com/serisow/studypack/packager"
	"github.com/serisow/studypack/pipeline/llm_service"
)

const mindMapPromptTemplate = "Analyze the following text and generate a structural mind map in Graphviz DOT language. The central node should be the main topic. Create clear, hierarchical relationships. Keep node labels concise (1-3 words). Do not include any explanation, only the DOT code itself.\nText:\n---\n%s"

// MindMapStepImpl reuses the same configured model session as the notes step,
// so the system instruction persists across both calls. The response is
// stripped of code fences but not otherwise validated; malformed DOT fails at
// the render step.
type MindMapStepImpl struct {
    LLMServiceInstance llm_service.LLMService
    LLMConfig          map[string]interface{}
}

func (s *MindMapStepImpl) Execute(ctx context.Context, runContext *Context) error {
    if s.LLMServiceInstance == nil {
        return fmt.Errorf("LLMService is not initialized for mind map step")
    }
    if runContext.GeneratedNotes == "" {
        return fmt.Errorf("no generated notes available for mind map")
    }

    prompt := fmt.Sprintf(mindMapPromptTemplate, runContext.GeneratedNotes)

    result, err := s.LLMServiceInstance.CallLLM(ctx, s.LLMConfig, prompt)
    if err != nil {
        return fmt.Errorf("error generating mind map: %w", err)
    }

    dotSource := packager.StripFences(result)
    if dotSource == "" {
        return fmt.Errorf("mind map generation returned empty diagram source")
    }

    runContext.DiagramSource = dotSource
    return nil
}

func (s *MindMapStepImpl) GetType() string {
    return "mindmap_step"
}
