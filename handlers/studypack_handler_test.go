package handlers

import (
    "bytes"
    "context"
    "encoding/json"
    "errors"
    "io"
    "log/slog"
    "mime/multipart"
    "net/http"
    "net/http/httptest"
    "strings"
    "testing"
    "time"

    "github.com/gorilla/mux"
    "github.com/serisow/studypack/config"
    "github.com/serisow/studypack/pipeline"
)

type fakeRunner struct {
    pack  *pipeline.StudyPack
    err   error
    calls int
    lastIn pipeline.RunInput
}

func (f *fakeRunner) Run(ctx context.Context, in pipeline.RunInput) (*pipeline.StudyPack, error) {
    f.calls++
    f.lastIn = in
    if f.err != nil {
        return nil, f.err
    }
    return f.pack, nil
}

func testConfig() config.Config {
    return config.Config{
        LLMService:   "gemini",
        GeminiAPIKey: "configured-key",
        MaxUploadMB:  32,
    }
}

func testLogger() *slog.Logger {
    return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRouter(h *StudyPackHandler) *mux.Router {
    r := mux.NewRouter()
    r.HandleFunc("/studypack/generate", h.Generate).Methods("POST")
    r.HandleFunc("/studypack/{id}/status", h.Status).Methods("GET")
    r.HandleFunc("/studypack/{id}/notes.pdf", h.NotesPDF).Methods("GET")
    r.HandleFunc("/studypack/{id}/mindmap.png", h.MindMapPNG).Methods("GET")
    r.HandleFunc("/studypack/{id}/mindmap/preview", h.MindMapPreview).Methods("GET")
    return r
}

func multipartBody(t *testing.T, files map[string][]byte, fields map[string]string) (*bytes.Buffer, string) {
    t.Helper()
    var buf bytes.Buffer
    w := multipart.NewWriter(&buf)
    for name, data := range files {
        part, err := w.CreateFormFile("files", name)
        if err != nil {
            t.Fatalf("failed to create form file: %v", err)
        }
        if _, err := part.Write(data); err != nil {
            t.Fatalf("failed to write form file: %v", err)
        }
    }
    for k, v := range fields {
        if err := w.WriteField(k, v); err != nil {
            t.Fatalf("failed to write form field: %v", err)
        }
    }
    if err := w.Close(); err != nil {
        t.Fatalf("failed to close multipart writer: %v", err)
    }
    return &buf, w.FormDataContentType()
}

func readyPack() *pipeline.StudyPack {
    return &pipeline.StudyPack{
        NotesPDF:    []byte("%PDF-1.4 fake"),
        MindMapPNG:  []byte("\x89PNG fake"),
        Ready:       true,
        GeneratedAt: time.Now(),
    }
}

func TestGenerate_EmptyUpload(t *testing.T) {
    runner := &fakeRunner{pack: readyPack()}
    h := NewStudyPackHandler(testConfig(), runner, pipeline.NewSessionStore(testLogger()), testLogger())
    router := newTestRouter(h)

    body, contentType := multipartBody(t, nil, nil)
    req := httptest.NewRequest(http.MethodPost, "/studypack/generate", body)
    req.Header.Set("Content-Type", contentType)
    rr := httptest.NewRecorder()
    router.ServeHTTP(rr, req)

    if rr.Code != http.StatusBadRequest {
        t.Errorf("expected status 400, got %d", rr.Code)
    }
    var resp map[string]string
    if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
        t.Fatalf("failed to decode response: %v", err)
    }
    if resp["error"] != "Please upload your notes to get started." {
        t.Errorf("unexpected error message: %q", resp["error"])
    }
    if runner.calls != 0 {
        t.Errorf("expected the pipeline not to run, got %d calls", runner.calls)
    }
}

func TestGenerate_MissingCredential(t *testing.T) {
    cfg := testConfig()
    cfg.GeminiAPIKey = ""
    runner := &fakeRunner{pack: readyPack()}
    h := NewStudyPackHandler(cfg, runner, pipeline.NewSessionStore(testLogger()), testLogger())
    router := newTestRouter(h)

    body, contentType := multipartBody(t, map[string][]byte{"notes.png": {1, 2, 3}}, nil)
    req := httptest.NewRequest(http.MethodPost, "/studypack/generate", body)
    req.Header.Set("Content-Type", contentType)
    rr := httptest.NewRecorder()
    router.ServeHTTP(rr, req)

    if rr.Code != http.StatusUnauthorized {
        t.Errorf("expected status 401, got %d", rr.Code)
    }
    if runner.calls != 0 {
        t.Errorf("expected the pipeline not to run, got %d calls", runner.calls)
    }
}

func TestGenerate_CallerProvidedKeyBypassesConfig(t *testing.T) {
    cfg := testConfig()
    cfg.GeminiAPIKey = ""
    runner := &fakeRunner{pack: readyPack()}
    h := NewStudyPackHandler(cfg, runner, pipeline.NewSessionStore(testLogger()), testLogger())
    router := newTestRouter(h)

    body, contentType := multipartBody(t,
        map[string][]byte{"notes.png": {1, 2, 3}},
        map[string]string{"api_key": "caller-key"})
    req := httptest.NewRequest(http.MethodPost, "/studypack/generate", body)
    req.Header.Set("Content-Type", contentType)
    rr := httptest.NewRecorder()
    router.ServeHTTP(rr, req)

    if rr.Code != http.StatusOK {
        t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
    }
    if runner.lastIn.APIKey != "caller-key" {
        t.Errorf("expected the caller key to reach the pipeline, got %q", runner.lastIn.APIKey)
    }
}

func TestGenerate_SuccessAndDownloads(t *testing.T) {
    runner := &fakeRunner{pack: readyPack()}
    store := pipeline.NewSessionStore(testLogger())
    h := NewStudyPackHandler(testConfig(), runner, store, testLogger())
    router := newTestRouter(h)

    body, contentType := multipartBody(t,
        map[string][]byte{"notes.png": {1, 2, 3}},
        map[string]string{"session_id": "session-1", "system_instruction": "Focus on biology."})
    req := httptest.NewRequest(http.MethodPost, "/studypack/generate", body)
    req.Header.Set("Content-Type", contentType)
    rr := httptest.NewRecorder()
    router.ServeHTTP(rr, req)

    if rr.Code != http.StatusOK {
        t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
    }

    var resp map[string]interface{}
    if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
        t.Fatalf("failed to decode response: %v", err)
    }
    if resp["session_id"] != "session-1" {
        t.Errorf("expected the provided session id to be echoed, got %v", resp["session_id"])
    }
    if resp["ready"] != true {
        t.Errorf("expected ready=true, got %v", resp["ready"])
    }
    if runner.lastIn.SystemInstruction != "Focus on biology." {
        t.Errorf("expected the system instruction to reach the pipeline, got %q", runner.lastIn.SystemInstruction)
    }
    if len(runner.lastIn.Files) != 1 || runner.lastIn.Files[0].Name != "notes.png" {
        t.Errorf("unexpected files forwarded to the pipeline: %+v", runner.lastIn.Files)
    }

    downloads := []struct {
        path        string
        contentType string
        disposition string
        body        string
    }{
        {"/studypack/session-1/notes.pdf", "application/pdf", "attachment; filename=Generated_Notes.pdf", "%PDF-1.4 fake"},
        {"/studypack/session-1/mindmap.png", "image/png", "attachment; filename=Concept_Mind_Map.png", "\x89PNG fake"},
        {"/studypack/session-1/mindmap/preview", "image/png", "inline; filename=Concept_Mind_Map.png", "\x89PNG fake"},
    }
    for _, d := range downloads {
        req := httptest.NewRequest(http.MethodGet, d.path, nil)
        rr := httptest.NewRecorder()
        router.ServeHTTP(rr, req)

        if rr.Code != http.StatusOK {
            t.Errorf("%s: expected status 200, got %d", d.path, rr.Code)
            continue
        }
        if got := rr.Header().Get("Content-Type"); got != d.contentType {
            t.Errorf("%s: expected content type %q, got %q", d.path, d.contentType, got)
        }
        if got := rr.Header().Get("Content-Disposition"); got != d.disposition {
            t.Errorf("%s: expected disposition %q, got %q", d.path, d.disposition, got)
        }
        if rr.Body.String() != d.body {
            t.Errorf("%s: unexpected body %q", d.path, rr.Body.String())
        }
    }
}

func TestGenerate_InFlightConflict(t *testing.T) {
    runner := &fakeRunner{pack: readyPack()}
    store := pipeline.NewSessionStore(testLogger())
    h := NewStudyPackHandler(testConfig(), runner, store, testLogger())
    router := newTestRouter(h)

    if !store.TryBeginRun("session-1") {
        t.Fatal("failed to hold the run slot for the test")
    }
    defer store.EndRun("session-1")

    body, contentType := multipartBody(t,
        map[string][]byte{"notes.png": {1, 2, 3}},
        map[string]string{"session_id": "session-1"})
    req := httptest.NewRequest(http.MethodPost, "/studypack/generate", body)
    req.Header.Set("Content-Type", contentType)
    rr := httptest.NewRecorder()
    router.ServeHTTP(rr, req)

    if rr.Code != http.StatusConflict {
        t.Errorf("expected status 409, got %d", rr.Code)
    }
    if runner.calls != 0 {
        t.Errorf("expected the pipeline not to run, got %d calls", runner.calls)
    }
}

func TestGenerate_StageErrorMapping(t *testing.T) {
    tests := []struct {
        name           string
        err            error
        expectedStatus int
        expectedStage  string
    }{
        {
            name:           "Extraction failure is a client error",
            err:            &pipeline.StageError{Stage: pipeline.StageExtraction, Err: errors.New("unsupported file format")},
            expectedStatus: http.StatusUnprocessableEntity,
            expectedStage:  "extraction_failed",
        },
        {
            name:           "Generation failure is an upstream error",
            err:            &pipeline.StageError{Stage: pipeline.StageGeneration, Err: errors.New("Gemini quota exceeded")},
            expectedStatus: http.StatusBadGateway,
            expectedStage:  "generation_failed",
        },
        {
            name:           "Render failure is an upstream error",
            err:            &pipeline.StageError{Stage: pipeline.StageRender, Err: errors.New("bad DOT syntax")},
            expectedStatus: http.StatusBadGateway,
            expectedStage:  "render_failed",
        },
    }

    for _, tt := range tests {
        t.Run(tt.name, func(t *testing.T) {
            runner := &fakeRunner{err: tt.err}
            store := pipeline.NewSessionStore(testLogger())
            h := NewStudyPackHandler(testConfig(), runner, store, testLogger())
            router := newTestRouter(h)

            body, contentType := multipartBody(t,
                map[string][]byte{"notes.png": {1, 2, 3}},
                map[string]string{"session_id": "session-1"})
            req := httptest.NewRequest(http.MethodPost, "/studypack/generate", body)
            req.Header.Set("Content-Type", contentType)
            rr := httptest.NewRecorder()
            router.ServeHTTP(rr, req)

            if rr.Code != tt.expectedStatus {
                t.Errorf("expected status %d, got %d", tt.expectedStatus, rr.Code)
            }

            var resp map[string]string
            if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
                t.Fatalf("failed to decode response: %v", err)
            }
            if resp["stage"] != tt.expectedStage {
                t.Errorf("expected stage %q, got %q", tt.expectedStage, resp["stage"])
            }
            if resp["error"] == "" {
                t.Error("expected an error message in the response")
            }

            if _, exists := store.Get("session-1"); exists {
                t.Error("expected no pack to be stored on failure")
            }
            if !store.TryBeginRun("session-1") {
                t.Error("expected the run slot to be released after failure")
            }
            store.EndRun("session-1")
        })
    }
}

func TestStatus(t *testing.T) {
    store := pipeline.NewSessionStore(testLogger())
    store.Put("ready-session", readyPack())
    h := NewStudyPackHandler(testConfig(), &fakeRunner{}, store, testLogger())
    router := newTestRouter(h)

    tests := []struct {
        name          string
        path          string
        expectedReady bool
    }{
        {"Known session", "/studypack/ready-session/status", true},
        {"Unknown session", "/studypack/nope/status", false},
    }

    for _, tt := range tests {
        t.Run(tt.name, func(t *testing.T) {
            req := httptest.NewRequest(http.MethodGet, tt.path, nil)
            rr := httptest.NewRecorder()
            router.ServeHTTP(rr, req)

            if rr.Code != http.StatusOK {
                t.Fatalf("expected status 200, got %d", rr.Code)
            }
            var resp map[string]interface{}
            if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
                t.Fatalf("failed to decode response: %v", err)
            }
            if resp["ready"] != tt.expectedReady {
                t.Errorf("expected ready=%v, got %v", tt.expectedReady, resp["ready"])
            }
        })
    }
}

func TestDownloads_UnknownSession(t *testing.T) {
    h := NewStudyPackHandler(testConfig(), &fakeRunner{}, pipeline.NewSessionStore(testLogger()), testLogger())
    router := newTestRouter(h)

    for _, path := range []string{
        "/studypack/nope/notes.pdf",
        "/studypack/nope/mindmap.png",
        "/studypack/nope/mindmap/preview",
    } {
        req := httptest.NewRequest(http.MethodGet, path, nil)
        rr := httptest.NewRecorder()
        router.ServeHTTP(rr, req)

        if rr.Code != http.StatusNotFound {
            t.Errorf("%s: expected status 404, got %d", path, rr.Code)
        }
    }
}

func TestGenerate_GeneratedSessionID(t *testing.T) {
    runner := &fakeRunner{pack: readyPack()}
    h := NewStudyPackHandler(testConfig(), runner, pipeline.NewSessionStore(testLogger()), testLogger())
    router := newTestRouter(h)

    body, contentType := multipartBody(t, map[string][]byte{"notes.png": {1, 2, 3}}, nil)
    req := httptest.NewRequest(http.MethodPost, "/studypack/generate", body)
    req.Header.Set("Content-Type", contentType)
    rr := httptest.NewRecorder()
    router.ServeHTTP(rr, req)

    if rr.Code != http.StatusOK {
        t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
    }
    var resp map[string]interface{}
    if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
        t.Fatalf("failed to decode response: %v", err)
    }
    id, _ := resp["session_id"].(string)
    if id == "" {
        t.Fatal("expected a generated session id")
    }
    if strings.Count(id, "-") != 4 {
        t.Errorf("expected a UUID-shaped session id, got %q", id)
    }
}
