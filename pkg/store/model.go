package store

import (
	"fmt"

	"github.com/Sternrassler/swapi-loader/pkg/people"
	"gorm.io/datatypes"
)

// Mode selects the table layout rows are written to.
type Mode string

const (
	// ModeJSON stores every record, not-found sentinels included, as an
	// opaque JSON payload in the Heroes table.
	ModeJSON Mode = "json"

	// ModeColumns stores found records with one column per field in the
	// swapi_people table and skips not-found sentinels.
	ModeColumns Mode = "columns"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeJSON || m == ModeColumns
}

// Hero is one row of the Heroes table.
type Hero struct {
	ID   int            `gorm:"primaryKey;autoIncrement:false"`
	JSON datatypes.JSON `gorm:"column:json"`
}

// TableName overrides the table name used by Hero.
func (Hero) TableName() string {
	return "Heroes"
}

// Person is one row of the swapi_people table.
type Person struct {
	ID        int `gorm:"primaryKey;autoIncrement:false"`
	Name      string
	BirthYear string
	EyeColor  string
	Films     string
	Gender    string
	HairColor string
	Height    string
	Homeworld string
	Mass      string
	SkinColor string
	Species   string
	Starships string
	Vehicles  string
}

// TableName overrides the table name used by Person.
func (Person) TableName() string {
	return "swapi_people"
}

// modelFor returns the gorm model backing mode.
func modelFor(mode Mode) any {
	if mode == ModeColumns {
		return &Person{}
	}
	return &Hero{}
}

// heroRows maps every record to a Hero row.
func heroRows(records []*people.Record) ([]Hero, error) {
	rows := make([]Hero, 0, len(records))
	for _, r := range records {
		payload, err := r.Document()
		if err != nil {
			return nil, fmt.Errorf("build payload: %w", err)
		}
		rows = append(rows, Hero{ID: r.ID, JSON: datatypes.JSON(payload)})
	}
	return rows, nil
}

// personRows maps found records to Person rows and reports how many
// not-found records were skipped.
func personRows(records []*people.Record) ([]Person, int) {
	rows := make([]Person, 0, len(records))
	skipped := 0
	for _, r := range records {
		if r.NotFound {
			skipped++
			continue
		}
		rows = append(rows, Person{
			ID:        r.ID,
			Name:      r.Name,
			BirthYear: r.BirthYear,
			EyeColor:  r.EyeColor,
			Films:     r.Films,
			Gender:    r.Gender,
			HairColor: r.HairColor,
			Height:    r.Height,
			Homeworld: r.Homeworld,
			Mass:      r.Mass,
			SkinColor: r.SkinColor,
			Species:   r.Species,
			Starships: r.Starships,
			Vehicles:  r.Vehicles,
		})
	}
	return rows, skipped
}
