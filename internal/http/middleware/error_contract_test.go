package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func init() {
	// Suppress logs during tests
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))
}

// TestErrorContractStatusCodes verifies error types map to correct HTTP status codes
func TestErrorContractStatusCodes(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "BadRequest maps to 400",
			err:        &ErrBadRequest{Err: errors.New("invalid input")},
			wantStatus: 400,
			wantCode:   "BAD_REQUEST",
		},
		{
			name:       "Unauthorized maps to 401",
			err:        &ErrUnauthorized{Err: errors.New("auth failed")},
			wantStatus: 401,
			wantCode:   "UNAUTHORIZED",
		},
		{
			name:       "Forbidden maps to 403",
			err:        &ErrForbidden{Err: errors.New("quota exceeded")},
			wantStatus: 403,
			wantCode:   "FORBIDDEN",
		},
		{
			name:       "NotFound maps to 404",
			err:        &ErrNotFound{Err: errors.New("resource not found")},
			wantStatus: 404,
			wantCode:   "NOT_FOUND",
		},
		{
			name:       "RequestTooLarge maps to 413",
			err:        &ErrRequestTooLarge{Err: errors.New("file too large")},
			wantStatus: 413,
			wantCode:   "REQUEST_TOO_LARGE",
		},
		{
			name:       "RateLimit maps to 429",
			err:        &ErrRateLimit{Err: errors.New("rate limit"), RetryAfter: 60},
			wantStatus: 429,
			wantCode:   "RATE_LIMIT_EXCEEDED",
		},
		{
			name:       "ServiceUnavailable maps to 503",
			err:        &ErrServiceUnavailable{Err: errors.New("service down")},
			wantStatus: 503,
			wantCode:   "SERVICE_UNAVAILABLE",
		},
		{
			name:       "UnknownError maps to 500",
			err:        errors.New("something went wrong"),
			wantStatus: 500,
			wantCode:   "INTERNAL_ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status := statusForError(tt.err)
			if status != tt.wantStatus {
				t.Errorf("statusForError() = %d, want %d", status, tt.wantStatus)
			}

			code := codeForStatus(status)
			if code != tt.wantCode {
				t.Errorf("codeForStatus() = %s, want %s", code, tt.wantCode)
			}
		})
	}
}

// TestErrorPayloadStructure verifies error responses include required fields
func TestErrorPayloadStructure(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestID())
	router.Use(ErrorHandler())
	router.GET("/test", func(c *gin.Context) {
		c.Error(&ErrBadRequest{Err: errors.New("validation failed")})
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/test", nil)
	router.ServeHTTP(w, req)

	if w.Code != 400 {
		t.Errorf("Expected status 400, got %d", w.Code)
	}

	var payload ErrorPayload
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}

	// Verify required fields
	if payload.Error == "" {
		t.Error("Missing error message")
	}
	if payload.Code != "BAD_REQUEST" {
		t.Errorf("Expected code BAD_REQUEST, got %s", payload.Code)
	}
	if payload.RequestID == "" {
		t.Error("Missing request ID")
	}
}

// TestErrorPayloadWithDetails verifies details field is included
func TestErrorPayloadWithDetails(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestID())
	router.Use(ErrorHandler())

	router.GET("/test", func(c *gin.Context) {
		payload := NewErrorPayload(400, "validation failed", "req-123").
			WithDetails(map[string]any{
				"field": "invalid",
			}).
			WithValidationReason("required field missing")
		c.JSON(400, payload)
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/test", nil)
	router.ServeHTTP(w, req)

	var payload ErrorPayload
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}

	if payload.ValidationReason != "required field missing" {
		t.Errorf("Expected validation_reason, got %s", payload.ValidationReason)
	}
	if payload.Details["field"] != "invalid" {
		t.Errorf("Expected details.field=invalid, got %v", payload.Details["field"])
	}
}

// TestRateLimitRetryAfterHeader verifies Retry-After header is set
func TestRateLimitRetryAfterHeader(t *testing.T) {
	// Rate limiter stores state in closure, must test with persistent middleware
	gin.SetMode(gin.TestMode)

	// One request per minute: the second request from the same client is limited
	rateLimitMW := RateLimit(1, time.Minute)

	router := gin.New()
	router.Use(RequestID())
	router.Use(rateLimitMW)
	router.Use(ErrorHandler())
	
	router.GET("/test", func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/test", nil)
	router.ServeHTTP(w, req)

	// Verify successful request
	if w.Code != 200 {
		t.Errorf("Expected 200, got %d", w.Code)
	}

	// Verify the limited request carries Retry-After for the rest of the window
	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/test", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusTooManyRequests {
		t.Errorf("Expected 429, got %d", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "60" {
		t.Errorf("Expected Retry-After 60, got %q", got)
	}
}

// TestErrorHandlerSkipsWrittenResponses verifies it doesn't double-write
func TestErrorHandlerSkipsWrittenResponses(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestID())
	router.Use(ErrorHandler())
	router.GET("/test", func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
		c.Error(errors.New("this error should be ignored"))
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/test", nil)
	router.ServeHTTP(w, req)

	// Response should be 200, not an error
	if w.Code != 200 {
		t.Errorf("Expected 200, got %d", w.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to unmarshal: %v", err)
	}
	if resp["ok"] != true {
		t.Error("Response should be the original 200 OK, not error")
	}
}

// TestRequestBodyValidator rejects oversized bodies
func TestRequestBodyValidator(t *testing.T) {
	gin.SetMode(gin.TestMode)
	maxBytes := int64(100)
	router := gin.New()
	router.Use(RequestID())
	router.Use(RequestBodyValidator(maxBytes))
	router.Use(ErrorHandler())
	router.POST("/test", func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})

	// Create oversized request
	largeBody := bytes.Repeat([]byte("x"), 200)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/test", bytes.NewReader(largeBody))
	req.ContentLength = 200
	router.ServeHTTP(w, req)

	if w.Code != 413 {
		t.Errorf("Expected 413 REQUEST_TOO_LARGE, got %d", w.Code)
	}

	var payload ErrorPayload
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err == nil {
		if payload.Code != "REQUEST_TOO_LARGE" {
			t.Errorf("Expected REQUEST_TOO_LARGE code, got %s", payload.Code)
		}
	}
}

// TestFileValidator validates file properties
func TestFileValidator(t *testing.T) {
	validator := &FileValidator{
		MaxBytes:     1000,
		AllowedTypes: AllowedExcelMimeTypes,
	}

	tests := []struct {
		name        string
		filename    string
		contentType string
		size        int64
		wantErr     bool
	}{
		{
			name:        "Valid xlsx",
			filename:    "test.xlsx",
			contentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
			size:        500,
			wantErr:     false,
		},
		{
			name:        "File too large",
			filename:    "test.xlsx",
			contentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
			size:        2000,
			wantErr:     true,
		},
		{
			name:        "Invalid content type",
			filename:    "test.pdf",
			contentType: "application/pdf",
			size:        500,
			wantErr:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.ValidateFile(tt.filename, tt.contentType, tt.size)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateFile() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// BenchmarkErrorHandler measures error handling performance
func BenchmarkErrorHandler(b *testing.B) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestID())
	router.Use(ErrorHandler())
	router.GET("/test", func(c *gin.Context) {
		c.Error(&ErrBadRequest{Err: errors.New("test error")})
	})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/test", nil)
		router.ServeHTTP(w, req)
	}
}

// BenchmarkRateLimit measures rate limit performance
func BenchmarkRateLimit(b *testing.B) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RateLimit(1000, 60))
	router.GET("/test", func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/test", nil)
		req.RemoteAddr = "127.0.0.1:8000"
		router.ServeHTTP(w, req)
	}
}
