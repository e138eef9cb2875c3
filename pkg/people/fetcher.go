// Package people fetches character records from SWAPI and enriches their
// reference URLs (homeworld, films, species, starships, vehicles) into
// display names.
package people

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Sternrassler/swapi-loader/pkg/client"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"
)

var (
	recordsNotFoundTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "swapi_records_not_found_total",
		Help: "Total people lookups answered with the not-found marker",
	})

	referencesResolvedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swapi_references_resolved_total",
		Help: "Total reference URLs resolved to display names by kind",
	}, []string{"kind"})
)

// API is the subset of the SWAPI client the fetcher needs.
type API interface {
	URL(endpoint string) string
	GetJSON(ctx context.Context, rawURL string) ([]byte, int, error)
}

// ResolveMode selects how a record's references are resolved.
type ResolveMode string

const (
	// ResolveSequential resolves references one after another.
	ResolveSequential ResolveMode = "sequential"

	// ResolveConcurrent resolves all references of a record at once.
	ResolveConcurrent ResolveMode = "concurrent"
)

// Valid reports whether m is a known mode.
func (m ResolveMode) Valid() bool {
	return m == ResolveSequential || m == ResolveConcurrent
}

// Fetcher resolves one EntityId into a Record.
type Fetcher struct {
	api      API
	mode     ResolveMode
	validate *validator.Validate
	logger   zerolog.Logger
}

// NewFetcher creates a fetcher. An unknown mode falls back to sequential.
func NewFetcher(api API, mode ResolveMode) *Fetcher {
	if !mode.Valid() {
		mode = ResolveSequential
	}

	return &Fetcher{
		api:      api,
		mode:     mode,
		validate: validator.New(),
		logger:   log.With().Str("component", "fetcher").Logger(),
	}
}

// Fetch retrieves person id and enriches its references. A not-found
// sentinel is returned as a Record with NotFound set and no follow-up
// requests are made for it. Any failure is returned; nothing is retried.
func (f *Fetcher) Fetch(ctx context.Context, id int) (*Record, error) {
	start := time.Now()
	url := f.api.URL(fmt.Sprintf("/people/%d", id))

	body, status, err := f.api.GetJSON(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetch person %d: %w", id, err)
	}

	valid := gjson.ValidBytes(body)

	if marker := gjson.GetBytes(body, NotFoundField); valid && marker.Exists() {
		recordsNotFoundTotal.Inc()
		f.logger.Debug().
			Int("id", id).
			Str("detail", marker.String()).
			Msg("Person not found")
		return &Record{
			ID:       id,
			NotFound: true,
			Detail:   marker.String(),
			Raw:      body,
		}, nil
	}

	if status >= 400 {
		return nil, fmt.Errorf("fetch person %d: %w", id, &client.APIError{
			URL:        url,
			StatusCode: status,
			ErrorClass: client.ErrorClassClient,
			Message:    http.StatusText(status),
		})
	}

	if !valid {
		return nil, fmt.Errorf("fetch person %d: %w", id, decodeError(url, status, "malformed JSON", nil))
	}

	var person rawPerson
	if err := json.Unmarshal(body, &person); err != nil {
		return nil, fmt.Errorf("fetch person %d: %w", id, decodeError(url, status, "decode person", err))
	}
	if err := f.validate.Struct(&person); err != nil {
		return nil, fmt.Errorf("fetch person %d: %w", id, decodeError(url, status, "validate person", err))
	}

	record := &Record{
		ID:        id,
		Name:      person.Name,
		BirthYear: person.BirthYear,
		EyeColor:  person.EyeColor,
		Gender:    person.Gender,
		HairColor: person.HairColor,
		Height:    person.Height,
		Mass:      person.Mass,
		SkinColor: person.SkinColor,
		Raw:       body,
	}

	if err := f.enrich(ctx, record, &person); err != nil {
		return nil, fmt.Errorf("enrich person %d: %w", id, err)
	}

	f.logger.Debug().
		Int("id", id).
		Str("name", record.Name).
		Dur("duration", time.Since(start)).
		Msg("Person fetched")

	return record, nil
}

// Count queries the people listing for the total number of entities.
func (f *Fetcher) Count(ctx context.Context) (int, error) {
	url := f.api.URL("/people/")

	body, status, err := f.api.GetJSON(ctx, url)
	if err != nil {
		return 0, fmt.Errorf("count people: %w", err)
	}
	if status >= 400 {
		return 0, fmt.Errorf("count people: %w", &client.APIError{
			URL:        url,
			StatusCode: status,
			ErrorClass: client.ErrorClassClient,
			Message:    http.StatusText(status),
		})
	}

	count := gjson.GetBytes(body, "count")
	if count.Type != gjson.Number {
		return 0, fmt.Errorf("count people: %w", decodeError(url, status, "missing count field", nil))
	}

	return int(count.Int()), nil
}

// ResolveName fetches a reference URL and returns its field value
// ("name", or "title" for films).
func (f *Fetcher) ResolveName(ctx context.Context, url, field string) (string, error) {
	body, status, err := f.api.GetJSON(ctx, url)
	if err != nil {
		return "", err
	}
	if status >= 400 {
		f.logger.Warn().
			Str("url", url).
			Int("status", status).
			Msg("Reference lookup failed")
		return "", &client.APIError{
			URL:        url,
			StatusCode: status,
			ErrorClass: client.ErrorClassClient,
			Message:    http.StatusText(status),
		}
	}

	value := gjson.GetBytes(body, field)
	if !value.Exists() {
		return "", decodeError(url, status, "missing "+field+" field", nil)
	}

	return value.String(), nil
}

// reference is one group of URLs that collapses into a single field.
type reference struct {
	kind  string
	field string
	urls  []string
	dst   *string
}

// enrich replaces the record's reference fields with resolved names.
func (f *Fetcher) enrich(ctx context.Context, record *Record, person *rawPerson) error {
	refs := []reference{
		{kind: "homeworld", field: "name", urls: []string{person.Homeworld}, dst: &record.Homeworld},
		{kind: "films", field: "title", urls: person.Films, dst: &record.Films},
		{kind: "species", field: "name", urls: person.Species, dst: &record.Species},
		{kind: "starships", field: "name", urls: person.Starships, dst: &record.Starships},
		{kind: "vehicles", field: "name", urls: person.Vehicles, dst: &record.Vehicles},
	}

	names := make([][]string, len(refs))
	for i, ref := range refs {
		names[i] = make([]string, len(ref.urls))
	}

	switch f.mode {
	case ResolveConcurrent:
		g, gctx := errgroup.WithContext(ctx)
		for i, ref := range refs {
			for j, url := range ref.urls {
				g.Go(func() error {
					name, err := f.ResolveName(gctx, url, ref.field)
					if err != nil {
						return fmt.Errorf("resolve %s: %w", ref.kind, err)
					}
					names[i][j] = name
					referencesResolvedTotal.WithLabelValues(ref.kind).Inc()
					return nil
				})
			}
		}
		if err := g.Wait(); err != nil {
			return err
		}
	default:
		for i, ref := range refs {
			for j, url := range ref.urls {
				name, err := f.ResolveName(ctx, url, ref.field)
				if err != nil {
					return fmt.Errorf("resolve %s: %w", ref.kind, err)
				}
				names[i][j] = name
				referencesResolvedTotal.WithLabelValues(ref.kind).Inc()
			}
		}
	}

	for i, ref := range refs {
		*ref.dst = strings.Join(names[i], ",")
	}

	return nil
}

func decodeError(url string, status int, msg string, err error) error {
	return &client.APIError{
		URL:        url,
		StatusCode: status,
		ErrorClass: client.ErrorClassDecode,
		Message:    msg,
		Err:        err,
	}
}
