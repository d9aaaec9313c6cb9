package ocr

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestPaddleEngine_Recognize(t *testing.T) {
	var got paddleOCRRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/ocr" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"logId": "abc", "errorCode": 0, "errorMsg": "Success",
			"result": {"ocrResults": [{"prunedResult": {
				"rec_texts": ["Bahasa Indonesia", "90", "Matematika 75"],
				"rec_scores": [0.98, 0.41, 0.95]
			}}]}
		}`))
	}))
	defer srv.Close()

	e := NewPaddleEngine(PaddleConfig{URL: srv.URL + "/", AngleClassification: true})
	rec, err := e.Recognize(context.Background(), testImage(t))
	if err != nil {
		t.Fatalf("Recognize() error = %v", err)
	}

	if got.FileType != paddleFileTypeImage || got.File == "" || !got.UseTextlineOrientation {
		t.Errorf("request = %+v", got)
	}
	if rec.Text() != "Bahasa Indonesia 90 Matematika 75" {
		t.Errorf("Text() = %q", rec.Text())
	}
	if len(rec.Segments) != 3 || rec.Segments[1].Confidence != 0.41 {
		t.Errorf("Segments = %+v", rec.Segments)
	}
}

func TestPaddleEngine_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"http error", http.StatusInternalServerError, "boom"},
		{"error code", http.StatusOK, `{"errorCode": 500, "errorMsg": "model failed"}`},
		{"bad json", http.StatusOK, `not json`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			e := NewPaddleEngine(PaddleConfig{URL: srv.URL})
			if _, err := e.Recognize(context.Background(), testImage(t)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestPaddleEngine_Init(t *testing.T) {
	t.Run("becomes ready", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) < 2 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.Write([]byte(`{"errorCode":0,"errorMsg":"Healthy"}`))
		}))
		defer srv.Close()

		e := NewPaddleEngine(PaddleConfig{URL: srv.URL, ReadyTimeout: 5 * time.Second})
		if err := e.Init(context.Background()); err != nil {
			t.Fatalf("Init() error = %v", err)
		}
		if n := calls.Load(); n != 2 {
			t.Errorf("health calls = %d, want 2", n)
		}
	})

	t.Run("never ready", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		e := NewPaddleEngine(PaddleConfig{URL: srv.URL, ReadyTimeout: time.Second})
		if err := e.Init(context.Background()); err == nil {
			t.Error("expected error")
		}
	})
}

func TestMistralEngine_Recognize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer key" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":{"message":"bad key"}}`))
			return
		}
		var req mistralOCRRequest
		json.NewDecoder(r.Body).Decode(&req)
		if !strings.HasPrefix(req.Document.ImageURL.URL, "data:image/png;base64,") {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Write([]byte(`{"model":"mistral-ocr-latest","pages":[{"index":0,"markdown":"# RAPOR\n\n| Matematika | 85 |\n"}]}`))
	}))
	defer srv.Close()

	e := NewMistralEngine(MistralConfig{APIKey: "key", BaseURL: srv.URL})
	rec, err := e.Recognize(context.Background(), testImage(t))
	if err != nil {
		t.Fatalf("Recognize() error = %v", err)
	}
	if rec.Text() != "# RAPOR | Matematika | 85 |" {
		t.Errorf("Text() = %q", rec.Text())
	}

	e = NewMistralEngine(MistralConfig{APIKey: "wrong", BaseURL: srv.URL})
	if _, err := e.Recognize(context.Background(), testImage(t)); err == nil || !strings.Contains(err.Error(), "bad key") {
		t.Errorf("error = %v, want bad key", err)
	}
}

func TestMistralEngine_Retries(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantCalls int32
		wantErr   bool
	}{
		{"rate limited then ok", http.StatusTooManyRequests, 2, false},
		{"server error then ok", http.StatusBadGateway, 2, false},
		{"bad request is final", http.StatusBadRequest, 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if calls.Add(1) == 1 {
					w.WriteHeader(tt.status)
					w.Write([]byte(`{"error":{"message":"try later"}}`))
					return
				}
				w.Write([]byte(`{"pages":[{"index":0,"markdown":"Matematika 80"}]}`))
			}))
			defer srv.Close()

			e := NewMistralEngine(MistralConfig{APIKey: "key", BaseURL: srv.URL, RetryDelay: time.Millisecond})
			rec, err := e.Recognize(context.Background(), testImage(t))
			if (err != nil) != tt.wantErr {
				t.Fatalf("Recognize() error = %v, wantErr %v", err, tt.wantErr)
			}
			if calls.Load() != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls.Load(), tt.wantCalls)
			}
			if err == nil && rec.Text() != "Matematika 80" {
				t.Errorf("Text() = %q", rec.Text())
			}
			var apiErr *APIError
			if tt.wantErr && (!errors.As(err, &apiErr) || apiErr.Status != tt.status) {
				t.Errorf("error = %v, want APIError with status %d", err, tt.status)
			}
		})
	}
}

func TestDeepInfraEngine_Recognize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			http.Error(w, r.URL.Path, http.StatusNotFound)
			return
		}
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		if body["model"] != DeepInfraDefaultModel {
			http.Error(w, "wrong model", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "cmpl-1", "object": "chat.completion", "created": 1, "model": "m",
			"choices": [{"index": 0, "finish_reason": "stop",
				"message": {"role": "assistant", "content": "Bahasa Inggris 70\nMatematika 85"}}]
		}`))
	}))
	defer srv.Close()

	e := NewDeepInfraEngine(DeepInfraConfig{APIKey: "key", BaseURL: srv.URL, MaxRetries: 1})
	rec, err := e.Recognize(context.Background(), testImage(t))
	if err != nil {
		t.Fatalf("Recognize() error = %v", err)
	}
	if len(rec.Segments) != 2 || rec.Text() != "Bahasa Inggris 70 Matematika 85" {
		t.Errorf("Recognize() = %+v", rec)
	}

	e = NewDeepInfraEngine(DeepInfraConfig{APIKey: "key", BaseURL: srv.URL, Model: "other", MaxRetries: 1})
	_, err = e.Recognize(context.Background(), testImage(t))
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadRequest {
		t.Errorf("error = %v, want APIError with status 400", err)
	}
}

func TestInitClose(t *testing.T) {
	m := NewMockEngine("m")
	if err := Init(context.Background(), m); err != nil || m.InitCount() != 1 {
		t.Errorf("Init() = %v, count %d", err, m.InitCount())
	}
	if err := Close(m); err != nil || !m.Closed() {
		t.Errorf("Close() = %v, closed %v", err, m.Closed())
	}

	// engines without lifecycle hooks are no-ops
	e := NewMistralEngine(MistralConfig{})
	if err := Init(context.Background(), e); err != nil {
		t.Errorf("Init() = %v", err)
	}
	if err := Close(e); err != nil {
		t.Errorf("Close() = %v", err)
	}
}
