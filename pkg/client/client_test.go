package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()

	cfg := DefaultConfig()
	cfg.BaseURL = baseURL
	cfg.Timeout = 5 * time.Second

	client, err := New(cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	return client
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name        string
		config      Config
		expectError bool
	}{
		{
			name:        "valid config",
			config:      DefaultConfig(),
			expectError: false,
		},
		{
			name: "empty base url",
			config: Config{
				UserAgent: "TestApp/1.0.0",
			},
			expectError: true,
		},
		{
			name: "relative base url",
			config: Config{
				BaseURL:   "swapi.dev/api",
				UserAgent: "TestApp/1.0.0",
			},
			expectError: true,
		},
		{
			name: "empty user agent",
			config: Config{
				BaseURL: "https://swapi.dev/api",
			},
			expectError: true,
		},
		{
			name: "negative timeout",
			config: Config{
				BaseURL:   "https://swapi.dev/api",
				UserAgent: "TestApp/1.0.0",
				Timeout:   -time.Second,
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := New(tt.config)

			if tt.expectError {
				if err == nil {
					t.Errorf("Expected error but got nil")
					return
				}
				if !errors.Is(err, ErrInvalidConfig) {
					t.Errorf("Error %v should wrap ErrInvalidConfig", err)
				}
			} else {
				if err != nil {
					t.Errorf("Unexpected error: %v", err)
					return
				}
				if client == nil {
					t.Error("Client is nil")
				}
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.BaseURL != "https://swapi.dev/api" {
		t.Errorf("BaseURL = %q, want https://swapi.dev/api", cfg.BaseURL)
	}
	if cfg.UserAgent == "" {
		t.Error("UserAgent should not be empty")
	}
	if cfg.Timeout != 0 {
		t.Errorf("Timeout = %s, want 0 (no timeout)", cfg.Timeout)
	}
}

func TestURL(t *testing.T) {
	tests := []struct {
		base     string
		endpoint string
		expected string
	}{
		{"https://swapi.dev/api", "/people/1", "https://swapi.dev/api/people/1"},
		{"https://swapi.dev/api/", "people/", "https://swapi.dev/api/people/"},
		{"http://127.0.0.1:8080", "/planets/1/", "http://127.0.0.1:8080/planets/1/"},
	}

	for _, tt := range tests {
		t.Run(tt.endpoint, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.BaseURL = tt.base
			client, err := New(cfg)
			if err != nil {
				t.Fatalf("New() failed: %v", err)
			}

			if got := client.URL(tt.endpoint); got != tt.expected {
				t.Errorf("URL(%q) = %q, want %q", tt.endpoint, got, tt.expected)
			}
		})
	}
}

func TestClassifyError(t *testing.T) {
	client := &Client{logger: zerolog.Nop()}

	tests := []struct {
		name       string
		statusCode int
		err        error
		expected   ErrorClass
	}{
		{name: "network error", err: io.EOF, expected: ErrorClassNetwork},
		{name: "client error 404", statusCode: 404, expected: ErrorClassClient},
		{name: "client error 429", statusCode: 429, expected: ErrorClassClient},
		{name: "server error 500", statusCode: 500, expected: ErrorClassServer},
		{name: "server error 503", statusCode: 503, expected: ErrorClassServer},
		{name: "success 200", statusCode: 200, expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resp *http.Response
			if tt.statusCode > 0 {
				resp = &http.Response{StatusCode: tt.statusCode}
			}

			if result := client.classifyError(resp, tt.err); result != tt.expected {
				t.Errorf("classifyError() = %q, want %q", result, tt.expected)
			}
		})
	}
}

func TestResourceOf(t *testing.T) {
	tests := map[string]string{
		"/api/people/1":    "people",
		"/api/planets/1/":  "planets",
		"/people/":         "people",
		"/films/2/":        "films",
		"/":                "root",
		"/api/":            "api",
	}

	for path, expected := range tests {
		if got := resourceOf(path); got != expected {
			t.Errorf("resourceOf(%q) = %q, want %q", path, got, expected)
		}
	}
}

func TestDo_HeadersSet(t *testing.T) {
	var userAgent, accept string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userAgent = r.Header.Get("User-Agent")
		accept = r.Header.Get("Accept")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"name": "Luke Skywalker"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	resp, err := client.Get(context.Background(), "/people/1")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	resp.Body.Close()

	if userAgent != client.config.UserAgent {
		t.Errorf("User-Agent = %q, want %q", userAgent, client.config.UserAgent)
	}
	if accept != "application/json" {
		t.Errorf("Accept = %q, want application/json", accept)
	}
}

func TestGetJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/people/1":
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"name": "Luke Skywalker"}`))
		case "/people/17":
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"detail": "Not found"}`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	ctx := context.Background()

	t.Run("ok", func(t *testing.T) {
		body, status, err := client.GetJSON(ctx, client.URL("/people/1"))
		if err != nil {
			t.Fatalf("GetJSON() failed: %v", err)
		}
		if status != http.StatusOK {
			t.Errorf("status = %d, want 200", status)
		}
		if string(body) != `{"name": "Luke Skywalker"}` {
			t.Errorf("body = %s", body)
		}
	})

	t.Run("not_found_body_returned", func(t *testing.T) {
		body, status, err := client.GetJSON(ctx, client.URL("/people/17"))
		if err != nil {
			t.Fatalf("GetJSON() should not fail on 404: %v", err)
		}
		if status != http.StatusNotFound {
			t.Errorf("status = %d, want 404", status)
		}
		if string(body) != `{"detail": "Not found"}` {
			t.Errorf("body = %s", body)
		}
	})

	t.Run("server_error", func(t *testing.T) {
		_, _, err := client.GetJSON(ctx, client.URL("/boom"))
		if err == nil {
			t.Fatal("Expected error for 500 response")
		}
		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("Expected *APIError, got %T", err)
		}
		if apiErr.ErrorClass != ErrorClassServer {
			t.Errorf("ErrorClass = %q, want %q", apiErr.ErrorClass, ErrorClassServer)
		}
		if apiErr.StatusCode != http.StatusInternalServerError {
			t.Errorf("StatusCode = %d, want 500", apiErr.StatusCode)
		}
	})
}

func TestGetJSON_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := newTestClient(t, url)

	_, _, err := client.GetJSON(context.Background(), client.URL("/people/1"))
	if err == nil {
		t.Fatal("Expected network error")
	}
	if ClassOf(err) != ErrorClassNetwork {
		t.Errorf("ClassOf() = %q, want %q", ClassOf(err), ErrorClassNetwork)
	}
}

func TestGetJSON_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, _, err := client.GetJSON(ctx, client.URL("/people/1"))
	if err == nil {
		t.Fatal("Expected error for cancelled context")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected context.DeadlineExceeded in chain, got %v", err)
	}
}
