package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/serisow/studypack/config"
	"github.com/serisow/studypack/extractor"
	"github.com/serisow/studypack/pipeline"
)

const (
    notesFilename   = "Generated_Notes.pdf"
    mindMapFilename = "Concept_Mind_Map.png"
)

// GenerationRunner is what the handler needs from the pipeline.
type GenerationRunner interface {
    Run(ctx context.Context, in pipeline.RunInput) (*pipeline.StudyPack, error)
}

type StudyPackHandler struct {
    cfg    config.Config
    runner GenerationRunner
    store  *pipeline.SessionStore
    logger *slog.Logger
}

func NewStudyPackHandler(cfg config.Config, runner GenerationRunner, store *pipeline.SessionStore, logger *slog.Logger) *StudyPackHandler {
    return &StudyPackHandler{
        cfg:    cfg,
        runner: runner,
        store:  store,
        logger: logger,
    }
}

// Generate runs the whole pipeline synchronously for one batch of uploads and
// publishes the study pack to the session on success.
func (h *StudyPackHandler) Generate(w http.ResponseWriter, r *http.Request) {
    maxBytes := h.cfg.MaxUploadMB << 20
    r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

    if err := r.ParseMultipartForm(maxBytes); err != nil {
        writeJSONError(w, "Failed to parse multipart form", http.StatusBadRequest)
        return
    }

    fileHeaders := r.MultipartForm.File["files"]
    if len(fileHeaders) == 0 {
        writeJSONError(w, "Please upload your notes to get started.", http.StatusBadRequest)
        return
    }

    apiKey := r.FormValue("api_key")
    if apiKey == "" && !h.hasConfiguredCredential() {
        writeJSONError(w, "Missing API credential: configure it in the environment or provide an api_key field.", http.StatusUnauthorized)
        return
    }

    sessionID := r.FormValue("session_id")
    if sessionID == "" {
        sessionID = uuid.New().String()
    }

    if !h.store.TryBeginRun(sessionID) {
        writeJSONError(w, "A generation run is already in progress for this session.", http.StatusConflict)
        return
    }
    defer h.store.EndRun(sessionID)

    files := make([]extractor.UploadedFile, 0, len(fileHeaders))
    for _, fh := range fileHeaders {
        f, err := fh.Open()
        if err != nil {
            writeJSONError(w, "Failed to read uploaded file", http.StatusBadRequest)
            return
        }
        data, err := io.ReadAll(f)
        f.Close()
        if err != nil {
            writeJSONError(w, "Failed to read uploaded file", http.StatusBadRequest)
            return
        }
        files = append(files, extractor.UploadedFile{
            Name:        fh.Filename,
            ContentType: fh.Header.Get("Content-Type"),
            Data:        data,
        })
    }

    h.logger.Info("Starting study pack generation",
        slog.String("session_id", sessionID),
        slog.Int("file_count", len(files)))

    pack, err := h.runner.Run(r.Context(), pipeline.RunInput{
        SessionID:         sessionID,
        Files:             files,
        SystemInstruction: r.FormValue("system_instruction"),
        APIKey:            apiKey,
    })
    if err != nil {
        var stageErr *pipeline.StageError
        if errors.As(err, &stageErr) {
            status := http.StatusBadGateway
            if stageErr.Stage == pipeline.StageExtraction {
                status = http.StatusUnprocessableEntity
            }
            w.Header().Set("Content-Type", "application/json")
            w.WriteHeader(status)
            json.NewEncoder(w).Encode(map[string]string{
                "stage": string(stageErr.Stage),
                "error": stageErr.Err.Error(),
            })
            return
        }
        writeJSONError(w, err.Error(), http.StatusInternalServerError)
        return
    }

    h.store.Put(sessionID, pack)

    w.Header().Set("Content-Type", "application/json")
    json.NewEncoder(w).Encode(map[string]interface{}{
        "session_id":   sessionID,
        "ready":        pack.Ready,
        "generated_at": pack.GeneratedAt.Format(time.RFC3339),
    })
}

func (h *StudyPackHandler) Status(w http.ResponseWriter, r *http.Request) {
    pack, ok := h.sessionPack(r)

    w.Header().Set("Content-Type", "application/json")
    if !ok {
        json.NewEncoder(w).Encode(map[string]interface{}{"ready": false})
        return
    }
    json.NewEncoder(w).Encode(map[string]interface{}{
        "ready":        pack.Ready,
        "generated_at": pack.GeneratedAt.Format(time.RFC3339),
    })
}

func (h *StudyPackHandler) NotesPDF(w http.ResponseWriter, r *http.Request) {
    pack, ok := h.sessionPack(r)
    if !ok || !pack.Ready {
        http.NotFound(w, r)
        return
    }

    w.Header().Set("Content-Type", "application/pdf")
    w.Header().Set("Content-Disposition", "attachment; filename="+notesFilename)
    w.Write(pack.NotesPDF)
}

func (h *StudyPackHandler) MindMapPNG(w http.ResponseWriter, r *http.Request) {
    pack, ok := h.sessionPack(r)
    if !ok || !pack.Ready {
        http.NotFound(w, r)
        return
    }

    w.Header().Set("Content-Type", "image/png")
    w.Header().Set("Content-Disposition", "attachment; filename="+mindMapFilename)
    w.Write(pack.MindMapPNG)
}

// MindMapPreview serves the PNG inline for embedding next to the download
// controls.
func (h *StudyPackHandler) MindMapPreview(w http.ResponseWriter, r *http.Request) {
    pack, ok := h.sessionPack(r)
    if !ok || !pack.Ready {
        http.NotFound(w, r)
        return
    }

    w.Header().Set("Content-Type", "image/png")
    w.Header().Set("Content-Disposition", "inline; filename="+mindMapFilename)
    w.Write(pack.MindMapPNG)
}

func (h *StudyPackHandler) sessionPack(r *http.Request) (*pipeline.StudyPack, bool) {
    vars := mux.Vars(r)
    return h.store.Get(vars["id"])
}

func (h *StudyPackHandler) hasConfiguredCredential() bool {
    if h.cfg.LLMService == "openai" {
        return h.cfg.OpenAIAPIKey != ""
    }
    return h.cfg.GeminiAPIKey != ""
}

func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
    w.Header().Set("Content-Type", "application/json")
    w.WriteHeader(statusCode)
    json.NewEncoder(w).Encode(map[string]string{"error": message})
}
