package llm_service

import (
    "context"
)

type MockLLMService struct {
    CallLLMFunc           func(ctx context.Context, config map[string]interface{}, prompt string) (string, error)
    CallLLMWithImagesFunc func(ctx context.Context, config map[string]interface{}, prompt string, images []ImagePart) (string, error)
}

func (m *MockLLMService) CallLLM(ctx context.Context, config map[string]interface{}, prompt string) (string, error) {
    if m.CallLLMFunc != nil {
        return m.CallLLMFunc(ctx, config, prompt)
    }
    return "mock response", nil
}

func (m *MockLLMService) CallLLMWithImages(ctx context.Context, config map[string]interface{}, prompt string, images []ImagePart) (string, error) {
    if m.CallLLMWithImagesFunc != nil {
        return m.CallLLMWithImagesFunc(ctx, config, prompt, images)
    }
    return "mock transcription", nil
}
