package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/serisow/studypack/config"
	"github.com/serisow/studypack/extractor"
	"github.com/serisow/studypack/packager"
)

// Stage tags every external-call failure so callers get one uniform error
// boundary around the whole sequential run instead of per-step special cases.
type Stage string

const (
    StageExtraction    Stage = "extraction_failed"
    StageTranscription Stage = "transcription_failed"
    StageGeneration    Stage = "generation_failed"
    StageRender        Stage = "render_failed"
)

type StageError struct {
    Stage Stage
    Err   error
}

func (e *StageError) Error() string {
    return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
    return e.Err
}

// RunInput is everything a single generation run needs. The API key override,
// when set, takes precedence over the configured credential.
type RunInput struct {
    SessionID         string
    Files             []extractor.UploadedFile
    SystemInstruction string
    APIKey            string
}

// Runner executes the fixed study pack sequence:
// extraction -> vision transcription -> notes -> mind map -> packaging.
// Steps run strictly in order; the first failure aborts the run and nothing
// is published.
type Runner struct {
    cfg       config.Config
    registry  *PluginRegistry
    extractor *extractor.Extractor
    logger    *slog.Logger

    // Render seams so tests can run without the wkhtmltopdf binary.
    renderNotesPDF   func(string) ([]byte, error)
    renderMindMapPNG func(context.Context, string) ([]byte, error)
}

func NewRunner(cfg config.Config, registry *PluginRegistry, ext *extractor.Extractor, logger *slog.Logger) *Runner {
    return &Runner{
        cfg:              cfg,
        registry:         registry,
        extractor:        ext,
        logger:           logger,
        renderNotesPDF:   packager.RenderNotesPDF,
        renderMindMapPNG: packager.RenderMindMapPNG,
    }
}

func (r *Runner) llmConfig(in RunInput) (map[string]interface{}, error) {
    apiKey := in.APIKey
    apiURL := r.cfg.GeminiAPIURL
    if apiKey == "" {
        apiKey = r.cfg.GeminiAPIKey
    }
    if r.cfg.LLMService == "openai" {
        apiURL = r.cfg.OpenAIAPIURL
        if in.APIKey == "" {
            apiKey = r.cfg.OpenAIAPIKey
        }
    }
    if apiKey == "" {
        return nil, fmt.Errorf("missing API credential for service %s", r.cfg.LLMService)
    }

    systemInstruction := in.SystemInstruction
    if systemInstruction == "" {
        systemInstruction = r.cfg.SystemInstruction
    }

    return map[string]interface{}{
        "api_url":            apiURL,
        "api_key":            apiKey,
        "model_name":         r.cfg.ModelName,
        "system_instruction": systemInstruction,
    }, nil
}

// Run executes one generation run and returns the finished study pack. The
// returned pack is a fresh value; callers publish it to the session store
// wholesale, never field by field.
func (r *Runner) Run(ctx context.Context, in RunInput) (*StudyPack, error) {
    llmCfg, err := r.llmConfig(in)
    if err != nil {
        return nil, err
    }

    serviceInstance, ok := r.registry.GetLLMService(r.cfg.LLMService)
    if !ok {
        return nil, fmt.Errorf("unknown LLM service: %s", r.cfg.LLMService)
    }

    runContext := NewContext()
    runContext.SystemInstruction = llmCfg["system_instruction"].(string)

    steps := []struct {
        stage Stage
        step  Step
    }{
        {StageExtraction, &ExtractionStepImpl{Extractor: r.extractor, Files: in.Files}},
        {StageTranscription, &VisionStepImpl{LLMServiceInstance: serviceInstance, LLMConfig: llmCfg, Mode: r.cfg.VisionMode, Logger: r.logger}},
        {StageGeneration, &NotesStepImpl{LLMServiceInstance: serviceInstance, LLMConfig: llmCfg, Timeout: r.cfg.NotesTimeout}},
        {StageGeneration, &MindMapStepImpl{LLMServiceInstance: serviceInstance, LLMConfig: llmCfg}},
        {StageRender, &PackageStepImpl{RenderNotesPDF: r.renderNotesPDF, RenderMindMapPNG: r.renderMindMapPNG}},
    }

    for _, s := range steps {
        r.logger.Info("Executing pipeline step",
            slog.String("session_id", in.SessionID),
            slog.String("step", s.step.GetType()))

        if err := s.step.Execute(ctx, runContext); err != nil {
            r.logger.Error("Pipeline step failed",
                slog.String("session_id", in.SessionID),
                slog.String("step", s.step.GetType()),
                slog.String("stage", string(s.stage)),
                slog.String("error", err.Error()))
            return nil, &StageError{Stage: s.stage, Err: err}
        }
    }

    r.logger.Info("Study pack generated",
        slog.String("session_id", in.SessionID),
        slog.Int("notes_pdf_bytes", len(runContext.Output.NotesPDF)),
        slog.Int("mindmap_png_bytes", len(runContext.Output.MindMapPNG)))

    return runContext.Output, nil
}
