package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/serisow/studypack/pipeline/llm_service"
)

const visionPrompt = "Transcribe all handwritten text in these images accurately."

// Vision transcription policy: append keeps text extracted from documents and
// adds the transcription after it; replace discards it in favor of the
// model's transcription.
const (
    VisionModeAppend  = "append"
    VisionModeReplace = "replace"
)

// VisionStepImpl sends all pending images in one batched multimodal request.
// With no pending images it is a no-op passthrough.
type VisionStepImpl struct {
    LLMServiceInstance llm_service.LLMService
    LLMConfig          map[string]interface{}
    Mode               string
    Logger             *slog.Logger
}

func (s *VisionStepImpl) Execute(ctx context.Context, runContext *Context) error {
    if len(runContext.PendingImages) == 0 {
        return nil
    }

    if s.LLMServiceInstance == nil {
        return fmt.Errorf("LLMService is not initialized for vision step")
    }

    prompt := visionPrompt
    if runContext.ExtractedContent != "" {
        prompt = fmt.Sprintf("%s\n\nContext extracted from the other uploaded materials:\n---\n%s\n---", visionPrompt, runContext.ExtractedContent)
    }

    images := make([]llm_service.ImagePart, 0, len(runContext.PendingImages))
    for _, img := range runContext.PendingImages {
        images = append(images, llm_service.ImagePart{
            MIMEType: img.MIMEType,
            Data:     img.Data,
        })
    }

    s.Logger.Info("Transcribing images",
        slog.Int("image_count", len(images)),
        slog.String("mode", s.Mode))

    result, err := s.LLMServiceInstance.CallLLMWithImages(ctx, s.LLMConfig, prompt, images)
    if err != nil {
        return fmt.Errorf("error transcribing images: %w", err)
    }

    switch s.Mode {
    case VisionModeReplace:
        runContext.ExtractedContent = result
    default:
        if runContext.ExtractedContent == "" {
            runContext.ExtractedContent = result
        } else {
            runContext.ExtractedContent = runContext.ExtractedContent + "\n" + result
        }
    }

    // Images are consumed by the single batched call.
    runContext.PendingImages = nil
    return nil
}

func (s *VisionStepImpl) GetType() string {
    return "vision_step"
}
