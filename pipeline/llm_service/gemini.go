package llm_service

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

type GeminiService struct {
    httpClient *http.Client
    logger     *slog.Logger
}

func NewGeminiService(logger *slog.Logger) *GeminiService {
    // No client-level timeout: the notes call runs under its own long
    // deadline, and every request carries a context that bounds it.
    return &GeminiService{
        httpClient: &http.Client{},
        logger:     logger,
    }
}

func (s *GeminiService) CallLLM(ctx context.Context, config map[string]interface{}, prompt string) (string, error) {
    return s.callWithRetry(ctx, config, prompt, nil)
}

func (s *GeminiService) CallLLMWithImages(ctx context.Context, config map[string]interface{}, prompt string, images []ImagePart) (string, error) {
    return s.callWithRetry(ctx, config, prompt, images)
}

// callWithRetry backs off on rate-limit responses instead of sleeping a fixed
// delay between calls. A 429 waits the Retry-After hint when the API sends one,
// otherwise an attempt-scaled delay.
func (s *GeminiService) callWithRetry(ctx context.Context, config map[string]interface{}, prompt string, images []ImagePart) (string, error) {
    maxRetries := 3
    baseDelay := 5 * time.Second

    for attempt := 1; attempt <= maxRetries; attempt++ {
        response, err := s.callGemini(ctx, config, prompt, images)
        if err == nil {
            return response, nil
        }

        if attempt == maxRetries {
            s.logger.Error("Error calling Gemini API after multiple attempts",
                slog.Int("attempts", maxRetries),
                slog.String("error", err.Error()))
            return "", fmt.Errorf("failed to call Gemini API after %d attempts: %w", maxRetries, err)
        }

        retryDelay := baseDelay * time.Duration(attempt)
        var httpErr *GeminiHttpError
        if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusTooManyRequests {
            if httpErr.RetryAfter > 0 {
                retryDelay = httpErr.RetryAfter
            }
            s.logger.Warn("Gemini API rate limited, backing off",
                slog.Int("attempt", attempt),
                slog.Duration("retryDelay", retryDelay))
        } else {
            s.logger.Warn("Attempt failed, retrying",
                slog.Int("attempt", attempt),
                slog.Duration("retryDelay", retryDelay),
                slog.String("error", err.Error()))
        }

        select {
        case <-ctx.Done():
            return "", ctx.Err()
        case <-time.After(retryDelay):
        }
    }

    return "", fmt.Errorf("failed to call Gemini API after exhausting all retry attempts")
}

func (s *GeminiService) callGemini(ctx context.Context, config map[string]interface{}, prompt string, images []ImagePart) (string, error) {
    apiURL, ok := config["api_url"].(string)
    if !ok {
        return "", fmt.Errorf("api_url not found in config")
    }

    apiKey, ok := config["api_key"].(string)
    if !ok {
        return "", fmt.Errorf("api_key not found in config")
    }

    url := fmt.Sprintf("%s?key=%s", apiURL, apiKey)

    params, ok := config["parameters"].(map[string]interface{})
    if !ok {
        params = make(map[string]interface{})
    }

    parts := []map[string]interface{}{
        {"text": prompt},
    }
    for _, img := range images {
        parts = append(parts, map[string]interface{}{
            "inline_data": map[string]interface{}{
                "mime_type": img.MIMEType,
                "data":      base64.StdEncoding.EncodeToString(img.Data),
            },
        })
    }

    payload := map[string]interface{}{
        "contents": []map[string]interface{}{
            {
                "role":  "user",
                "parts": parts,
            },
        },
        "generationConfig": map[string]interface{}{
            "temperature":      safeParseFloat(params["temperature"], 1.0),
            "topK":             safeParseFloat(params["top_k"], 40),
            "topP":             safeParseFloat(params["top_p"], 0.95),
            "maxOutputTokens":  safeParseFloat(params["max_tokens"], 8192.0),
            "responseMimeType": "text/plain",
        },
    }

    // The notes and mind map calls share one configured session, so the
    // system instruction rides along on every request.
    if si, ok := config["system_instruction"].(string); ok && si != "" {
        payload["systemInstruction"] = map[string]interface{}{
            "parts": []map[string]string{
                {"text": si},
            },
        }
    }

    requestBody, err := json.Marshal(payload)
    if err != nil {
        return "", fmt.Errorf("error marshaling request body: %w", err)
    }

    req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(requestBody))
    if err != nil {
        return "", fmt.Errorf("error creating request: %w", err)
    }

    req.Header.Set("Content-Type", "application/json")

    resp, err := s.httpClient.Do(req)
    if err != nil {
        return "", fmt.Errorf("error making request: %w", err)
    }
    defer resp.Body.Close()

    if resp.StatusCode != http.StatusOK {
        return "", newGeminiHttpError(resp)
    }

    body, err := io.ReadAll(resp.Body)
    if err != nil {
        return "", fmt.Errorf("error reading response body: %w", err)
    }

    var result map[string]interface{}
    if err := json.Unmarshal(body, &result); err != nil {
        return "", fmt.Errorf("error unmarshaling response: %w", err)
    }

    candidates, ok := result["candidates"].([]interface{})
    if !ok || len(candidates) == 0 {
        return "", fmt.Errorf("unexpected response format from Gemini API")
    }

    content, ok := candidates[0].(map[string]interface{})["content"].(map[string]interface{})
    if !ok {
        return "", fmt.Errorf("content not found in Gemini API response")
    }

    parts2, ok := content["parts"].([]interface{})
    if !ok || len(parts2) == 0 {
        return "", fmt.Errorf("parts not found in Gemini API response")
    }

    text, ok := parts2[0].(map[string]interface{})["text"].(string)
    if !ok {
        return "", fmt.Errorf("text not found in Gemini API response")
    }

    return text, nil
}
