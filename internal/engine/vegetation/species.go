package vegetation

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/pelletier/go-toml/v2"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Species holds the blade parameters of one grass species.
type Species struct {
	ID          int
	Name        string
	Texture     uuid.UUID
	TextureName string
	BladeSizeX  float32
	BladeSizeY  float32
	// Incomplete is set when a required field was missing. The record is
	// still usable with zero values for the missing fields.
	Incomplete bool
}

// SpeciesTable maps species ids to their parameters. It is populated once
// by LoadSpecies or ParseSpecies and must not be mutated while a frame is
// in flight.
type SpeciesTable struct {
	species map[int]*Species
	ids     []int
	max     int
}

// NewSpeciesTable builds a table from already validated species. Later
// duplicates are ignored.
func NewSpeciesTable(list ...Species) *SpeciesTable {
	t := &SpeciesTable{species: make(map[int]*Species, len(list))}
	for i := range list {
		t.add(list[i])
	}
	return t
}

func (t *SpeciesTable) add(s Species) bool {
	if _, ok := t.species[s.ID]; ok {
		return false
	}
	t.species[s.ID] = &s
	i, _ := slices.BinarySearch(t.ids, s.ID)
	t.ids = slices.Insert(t.ids, i, s.ID)
	t.max = max(t.max, s.ID+1)
	return true
}

// Lookup returns the species with the given id.
func (t *SpeciesTable) Lookup(id int) (*Species, bool) {
	if t == nil {
		return nil, false
	}
	s, ok := t.species[id]
	return s, ok
}

// Lowest returns the smallest defined species id.
func (t *SpeciesTable) Lowest() (int, bool) {
	if t == nil || len(t.ids) == 0 {
		return 0, false
	}
	return t.ids[0], true
}

// IDs returns the defined species ids in ascending order.
func (t *SpeciesTable) IDs() []int {
	return slices.Clone(t.ids)
}

// Len returns the number of species.
func (t *SpeciesTable) Len() int {
	return len(t.ids)
}

// Max returns the declared species count, or the highest id plus one.
func (t *SpeciesTable) Max() int {
	return t.max
}

// ArtLookup resolves a texture name to its asset id.
type ArtLookup interface {
	TextureID(name string) (uuid.UUID, bool)
}

// ArtLookupFunc adapts a function to ArtLookup.
type ArtLookupFunc func(name string) (uuid.UUID, bool)

func (f ArtLookupFunc) TextureID(name string) (uuid.UUID, bool) {
	return f(name)
}

// NamedArt derives stable texture ids from names. It stands in when no
// asset catalog is available.
var NamedArt = ArtLookupFunc(func(name string) (uuid.UUID, bool) {
	if name == "" {
		return uuid.Nil, false
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("art:"+name)), true
})

// MissingSpeciesError lists species ids below the declared maximum that no
// record defined. The table is still usable.
type MissingSpeciesError struct {
	IDs []int
}

func (e *MissingSpeciesError) Error() string {
	ids := make([]string, len(e.IDs))
	for i, id := range e.IDs {
		ids[i] = strconv.Itoa(id)
	}
	return "undefined grass species: " + strings.Join(ids, ", ")
}

// speciesFile is the on-disk layout shared by the YAML and TOML forms.
type speciesFile struct {
	MaxSpecies *int            `yaml:"max_species" toml:"max_species"`
	Species    []speciesRecord `yaml:"species" toml:"species"`
}

type speciesRecord struct {
	SpeciesID   *int     `yaml:"species_id" toml:"species_id"`
	Name        string   `yaml:"name" toml:"name"`
	TextureID   string   `yaml:"texture_id" toml:"texture_id"`
	TextureName *string  `yaml:"texture_name" toml:"texture_name"`
	BladeSizeX  *float32 `yaml:"blade_size_x" toml:"blade_size_x"`
	BladeSizeY  *float32 `yaml:"blade_size_y" toml:"blade_size_y"`
}

// Format is a species definition encoding.
type Format int

const (
	FormatYAML Format = iota
	FormatTOML
)

// FormatFor picks the encoding from a file extension.
func FormatFor(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return FormatTOML
	}
	return FormatYAML
}

// LoadSpecies reads a species definition file. See ParseSpecies.
func LoadSpecies(path string, art ArtLookup, log *zap.Logger) (*SpeciesTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read species file: %w", err)
	}
	return ParseSpecies(data, FormatFor(path), art, log)
}

// ParseSpecies builds a species table from a definition resource.
//
// A decode failure returns a nil table. Records without a valid id, and
// duplicates, are dropped with one warning each; the first record for an
// id wins. If ids below the maximum are undefined, the table is returned
// together with a *MissingSpeciesError.
func ParseSpecies(data []byte, format Format, art ArtLookup, log *zap.Logger) (*SpeciesTable, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if art == nil {
		art = NamedArt
	}

	var file speciesFile
	var err error
	switch format {
	case FormatTOML:
		err = toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields().Decode(&file)
	default:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		err = dec.Decode(&file)
	}
	if err != nil {
		return nil, fmt.Errorf("parse species definitions: %w", err)
	}

	t := NewSpeciesTable()
	for i, rec := range file.Species {
		if rec.SpeciesID == nil {
			log.Warn("grass species record has no species_id", zap.Int("record", i))
			continue
		}
		id := *rec.SpeciesID
		if id < 0 {
			log.Warn("invalid grass species id", zap.Int("record", i), zap.Int("species", id))
			continue
		}

		s, complete := rec.resolve(id, art)
		if !t.add(s) {
			log.Warn("grass species already defined, duplicate discarded", zap.Int("species", id))
			continue
		}
		if !complete {
			log.Warn("incomplete grass species definition", zap.Int("species", id), zap.String("name", rec.Name))
		}
	}

	if file.MaxSpecies != nil {
		t.max = max(t.max, *file.MaxSpecies)
	}

	var missing []int
	for id := range t.max {
		if _, ok := t.species[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		log.Warn("undefined grass species", zap.Ints("ids", missing))
		return t, &MissingSpeciesError{IDs: missing}
	}
	return t, nil
}

func (r speciesRecord) resolve(id int, art ArtLookup) (Species, bool) {
	s := Species{ID: id, Name: r.Name}
	complete := true

	if r.TextureID != "" {
		tex, err := uuid.Parse(r.TextureID)
		if err != nil {
			complete = false
		}
		s.Texture = tex
	}
	if s.Texture == uuid.Nil {
		if r.TextureName == nil {
			complete = false
		} else {
			s.TextureName = *r.TextureName
			tex, ok := art.TextureID(s.TextureName)
			if !ok {
				complete = false
			}
			s.Texture = tex
		}
	}
	if r.BladeSizeX == nil {
		complete = false
	} else {
		s.BladeSizeX = *r.BladeSizeX
	}
	if r.BladeSizeY == nil {
		complete = false
	} else {
		s.BladeSizeY = *r.BladeSizeY
	}

	s.Incomplete = !complete
	return s, complete
}
