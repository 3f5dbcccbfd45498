package llm_service

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// OpenAIError represents the error structure returned by OpenAI API
type OpenAIError struct {
    Error struct {
        Message string `json:"message"`
        Type    string `json:"type"`
        Code    string `json:"code"`
    } `json:"error"`
}

type OpenAIHttpError struct {
    StatusCode int
    Message    string
    ErrorType  string
    RawBody    string
}

func (e *OpenAIHttpError) Error() string {
    return fmt.Sprintf("OpenAI API error (HTTP %d): %s (Type: %s)", e.StatusCode, e.Message, e.ErrorType)
}

// extractOpenAIErrorDetails extracts error information from OpenAI API responses
func extractOpenAIErrorDetails(resp *http.Response) (string, *OpenAIError) {
    body, err := io.ReadAll(resp.Body)
    if err != nil {
        return "", nil
    }

    // Try to parse as OpenAI error format
    var openAIErr OpenAIError
    if err := json.Unmarshal(body, &openAIErr); err == nil && openAIErr.Error.Message != "" {
        return string(body), &openAIErr
    }

    return string(body), nil
}

// GeminiHttpError carries the status code and, for 429 responses, the
// Retry-After hint so the retry loop can back off accordingly.
type GeminiHttpError struct {
    StatusCode int
    Message    string
    RetryAfter time.Duration
    RawBody    string
}

func (e *GeminiHttpError) Error() string {
    return fmt.Sprintf("Gemini API error (HTTP %d): %s", e.StatusCode, e.Message)
}

func newGeminiHttpError(resp *http.Response) *GeminiHttpError {
    body, _ := io.ReadAll(resp.Body)

    httpErr := &GeminiHttpError{
        StatusCode: resp.StatusCode,
        Message:    "Unknown error",
        RawBody:    string(body),
    }

    var parsed struct {
        Error struct {
            Message string `json:"message"`
            Status  string `json:"status"`
        } `json:"error"`
    }
    if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
        httpErr.Message = parsed.Error.Message
    }

    if ra := resp.Header.Get("Retry-After"); ra != "" {
        if seconds, err := strconv.Atoi(ra); err == nil {
            httpErr.RetryAfter = time.Duration(seconds) * time.Second
        }
    }

    return httpErr
}
