// Package testutil provides testing utilities for the SWAPI loader.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"
)

// MockResponse defines the behavior for a mock endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Delay      time.Duration
}

// MockSWAPI is a configurable mock SWAPI server for testing. Unknown paths
// answer like the real API: 404 with the not-found marker.
type MockSWAPI struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)
	requests map[string]int

	// Tracking
	RequestCount int
}

// NewMockSWAPI creates a new mock SWAPI server.
func NewMockSWAPI() *MockSWAPI {
	mock := &MockSWAPI{
		handlers: make(map[string]func(w http.ResponseWriter, r *http.Request)),
		requests: make(map[string]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.requests[r.URL.Path]++
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		if exists {
			handler(w, r)
			return
		}

		writeJSON(w, http.StatusNotFound, `{"detail": "Not found"}`)
	}))

	return mock
}

// URL returns the API root of the mock server, e.g. http://127.0.0.1:1234/api.
func (m *MockSWAPI) URL() string {
	return m.server.URL + "/api"
}

// Close shuts down the mock server.
func (m *MockSWAPI) Close() {
	m.server.Close()
}

// SetHandler sets a custom handler for a path relative to the API root.
func (m *MockSWAPI) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[apiPath(path)] = handler
}

// SetResponse configures a simple response for a path relative to the API root.
func (m *MockSWAPI) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}
		writeJSON(w, resp.StatusCode, resp.Body)
	})
}

// SetCount configures the people listing to report count entities.
func (m *MockSWAPI) SetCount(count int) {
	m.SetResponse("/people/", NewOKResponse(fmt.Sprintf(`{"count": %d, "next": null, "previous": null, "results": []}`, count)))
}

// SetPerson configures /people/{id} to return person, with reference paths
// such as "planets/1/" expanded to absolute mock URLs.
func (m *MockSWAPI) SetPerson(id int, person Person) {
	m.SetResponse(fmt.Sprintf("/people/%d", id), NewOKResponse(person.JSON(m.URL())))
}

// SetNotFound configures /people/{id} to return the not-found marker.
func (m *MockSWAPI) SetNotFound(id int) {
	m.SetResponse(fmt.Sprintf("/people/%d", id), NewNotFoundResponse())
}

// SetNamed configures a reference resource, e.g. SetNamed("planets/1/", "name", "Tatooine").
func (m *MockSWAPI) SetNamed(path, field, value string) {
	body, _ := json.Marshal(map[string]string{field: value})
	m.SetResponse(path, NewOKResponse(string(body)))
}

// SeedUniverse registers people 1..count, each living on Tatooine and
// appearing in A New Hope, with the ids in missing answering not-found.
// Person names are "Person <id>".
func (m *MockSWAPI) SeedUniverse(count int, missing ...int) {
	m.SetCount(count)
	m.SetNamed("planets/1/", "name", "Tatooine")
	m.SetNamed("films/1/", "title", "A New Hope")
	m.SetNamed("films/2/", "title", "The Empire Strikes Back")
	m.SetNamed("starships/12/", "name", "X-wing")

	skip := make(map[int]bool, len(missing))
	for _, id := range missing {
		skip[id] = true
	}

	for id := 1; id <= count; id++ {
		if skip[id] {
			m.SetNotFound(id)
			continue
		}
		m.SetPerson(id, Person{
			Name:      fmt.Sprintf("Person %d", id),
			Homeworld: "planets/1/",
			Films:     []string{"films/1/", "films/2/"},
			Starships: []string{"starships/12/"},
		})
	}
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockSWAPI) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetPathCount returns the number of requests made to a path relative to the API root.
func (m *MockSWAPI) GetPathCount(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requests[apiPath(path)]
}

// Person describes a mock person document. Reference fields are paths
// relative to the API root.
type Person struct {
	Name      string
	Homeworld string
	Films     []string
	Species   []string
	Starships []string
	Vehicles  []string
}

// JSON renders the person as the API would, resolving references against base.
func (p Person) JSON(base string) string {
	abs := func(paths []string) []string {
		out := make([]string, 0, len(paths))
		for _, path := range paths {
			out = append(out, base+"/"+strings.TrimLeft(path, "/"))
		}
		return out
	}

	doc := map[string]any{
		"name":       p.Name,
		"height":     "172",
		"mass":       "77",
		"hair_color": "blond",
		"skin_color": "fair",
		"eye_color":  "blue",
		"birth_year": "19BBY",
		"gender":     "male",
		"homeworld":  base + "/" + strings.TrimLeft(p.Homeworld, "/"),
		"films":      abs(p.Films),
		"species":    abs(p.Species),
		"starships":  abs(p.Starships),
		"vehicles":   abs(p.Vehicles),
		"created":    "2014-12-09T13:50:51.644000Z",
		"edited":     "2014-12-20T21:17:56.891000Z",
	}

	body, _ := json.Marshal(doc)
	return string(body)
}

// NewOKResponse creates a standard 200 OK JSON response.
func NewOKResponse(body string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       body,
	}
}

// NewNotFoundResponse creates the API's 404 not-found sentinel response.
func NewNotFoundResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusNotFound,
		Body:       `{"detail": "Not found"}`,
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error": "Internal server error"}`,
	}
}

func apiPath(path string) string {
	return "/api/" + strings.TrimLeft(path, "/")
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != "" {
		w.Write([]byte(body))
	}
}
