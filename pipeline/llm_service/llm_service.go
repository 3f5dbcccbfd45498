package llm_service

import (
	"context"
	"strconv"
)

// ImagePart is one inline image attached to a multimodal request.
type ImagePart struct {
    MIMEType string
    Data     []byte
}

type LLMService interface {
    CallLLM(ctx context.Context, config map[string]interface{}, prompt string) (string, error)
    CallLLMWithImages(ctx context.Context, config map[string]interface{}, prompt string, images []ImagePart) (string, error)
}

// Helper function to safely parse float values shared by the service clients.
func safeParseFloat(value interface{}, defaultValue float64) float64 {
    switch v := value.(type) {
    case float64:
        return v
    case string:
        if parsed, err := strconv.ParseFloat(v, 64); err == nil {
            return parsed
        }
    case int:
        return float64(v)
    case int64:
        return float64(v)
    }
    return defaultValue
}
