package gazetteer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"
)

// aliasFile is the on-disk layout of aliases.toml:
//
//	[[alias]]
//	code = "bom"
//	name = "Mumbai"
//	kind = "airport"
type aliasFile struct {
	Alias []Alias `toml:"alias"`
}

// Load reads the city list and alias table. Either file may be missing or
// broken; the gazetteer is then built from whatever could be read, down to an
// empty one. Load never fails the caller.
func Load(citiesPath, aliasesPath string) *Gazetteer {
	var places []Place
	var aliases []Alias

	if citiesPath != "" {
		p, err := LoadPlaces(citiesPath)
		if err != nil {
			log.Warnf("Gazetteer cities unavailable (%v). City suggestions will be empty.", err)
		}
		places = p
	}
	if aliasesPath != "" {
		a, err := LoadAliases(aliasesPath)
		if err != nil {
			log.Warnf("Gazetteer aliases unavailable (%v). Code lookups disabled.", err)
		}
		aliases = a
	}

	g := New(places, aliases)
	log.Debugf("Gazetteer loaded: %d places, %d aliases", g.Len(), len(g.aliases))
	return g
}

// LoadPlaces reads a name,population CSV. A header row is allowed. Rows that
// do not parse are skipped.
func LoadPlaces(path string) ([]Place, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadPlaces(f)
}

// ReadPlaces is LoadPlaces over any reader.
func ReadPlaces(r io.Reader) ([]Place, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var places []Place
	skipped := 0
	line := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				skipped++
				continue
			}
			return places, fmt.Errorf("reading cities: %w", err)
		}
		if len(record) < 2 {
			skipped++
			continue
		}
		name := strings.TrimSpace(record[0])
		pop, err := strconv.Atoi(strings.TrimSpace(record[1]))
		if err != nil {
			// header row
			if line == 1 {
				continue
			}
			skipped++
			continue
		}
		if name == "" || pop < 0 {
			skipped++
			continue
		}
		places = append(places, Place{Name: name, Population: pop})
	}
	if skipped > 0 {
		log.Debugf("Skipped %d malformed city rows", skipped)
	}
	return places, nil
}

// LoadAliases reads the TOML alias table.
func LoadAliases(path string) ([]Alias, error) {
	var file aliasFile
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return nil, fmt.Errorf("decoding aliases: %w", err)
	}
	valid := file.Alias[:0]
	for _, a := range file.Alias {
		switch a.Kind {
		case "", KindCity, KindAirport, KindStation:
			valid = append(valid, a)
		default:
			log.Debugf("Skipping alias %q with unknown kind %q", a.Code, a.Kind)
		}
	}
	return valid, nil
}
