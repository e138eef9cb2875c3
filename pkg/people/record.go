package people

import (
	"encoding/json"
	"fmt"
)

// NotFoundField is the marker field the API returns in place of a record
// for ids that do not exist, e.g. {"detail": "Not found"}.
const NotFoundField = "detail"

// Record is one character after enrichment. For found records the list
// fields hold comma-joined display names and Homeworld holds the planet
// name. A not-found record carries only ID, Detail and Raw.
type Record struct {
	ID       int
	NotFound bool
	Detail   string

	Name      string
	BirthYear string
	EyeColor  string
	Gender    string
	HairColor string
	Height    string
	Mass      string
	SkinColor string

	Homeworld string
	Films     string
	Species   string
	Starships string
	Vehicles  string

	// Raw is the upstream document as received.
	Raw []byte
}

// rawPerson is the upstream person document, validated at the fetch boundary.
type rawPerson struct {
	Name      string   `json:"name" validate:"required"`
	BirthYear string   `json:"birth_year"`
	EyeColor  string   `json:"eye_color"`
	Gender    string   `json:"gender"`
	HairColor string   `json:"hair_color"`
	Height    string   `json:"height"`
	Mass      string   `json:"mass"`
	SkinColor string   `json:"skin_color"`
	Homeworld string   `json:"homeworld" validate:"required,url"`
	Films     []string `json:"films" validate:"dive,url"`
	Species   []string `json:"species" validate:"dive,url"`
	Starships []string `json:"starships" validate:"dive,url"`
	Vehicles  []string `json:"vehicles" validate:"dive,url"`
}

// Document returns the JSON payload stored for the record. Not-found records
// yield the sentinel document unchanged. Found records yield the upstream
// document with id, scalar and reference fields overwritten by the enriched
// values; upstream fields the record does not model (created, url, ...)
// are kept.
func (r *Record) Document() ([]byte, error) {
	if r.NotFound {
		if len(r.Raw) > 0 {
			return r.Raw, nil
		}
		return json.Marshal(map[string]string{NotFoundField: r.Detail})
	}

	doc := map[string]json.RawMessage{}
	if len(r.Raw) > 0 {
		if err := json.Unmarshal(r.Raw, &doc); err != nil {
			return nil, fmt.Errorf("decode raw document for id %d: %w", r.ID, err)
		}
	}

	fields := map[string]any{
		"id":         r.ID,
		"name":       r.Name,
		"birth_year": r.BirthYear,
		"eye_color":  r.EyeColor,
		"gender":     r.Gender,
		"hair_color": r.HairColor,
		"height":     r.Height,
		"mass":       r.Mass,
		"skin_color": r.SkinColor,
		"homeworld":  r.Homeworld,
		"films":      r.Films,
		"species":    r.Species,
		"starships":  r.Starships,
		"vehicles":   r.Vehicles,
	}
	for key, value := range fields {
		encoded, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("encode field %s for id %d: %w", key, r.ID, err)
		}
		doc[key] = encoded
	}

	return json.Marshal(doc)
}
