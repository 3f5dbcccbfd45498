package pipeline

import (
    "github.com/serisow/studypack/pipeline/llm_service"
)

type PluginRegistry struct {
    llmServices map[string]llm_service.LLMService
}

func NewPluginRegistry() *PluginRegistry {
    return &PluginRegistry{
        llmServices: make(map[string]llm_service.LLMService),
    }
}

// RegisterLLMService registers a new LLM service
func (pr *PluginRegistry) RegisterLLMService(name string, service llm_service.LLMService) {
    pr.llmServices[name] = service
}

// GetLLMService returns an LLM service by name
func (pr *PluginRegistry) GetLLMService(name string) (llm_service.LLMService, bool) {
    service, ok := pr.llmServices[name]
    return service, ok
}
