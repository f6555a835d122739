package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/wondertwin-ai/ecoscan/internal/offers"
)

// ErrInvalidCatalog is returned when a catalog fails validation.
var ErrInvalidCatalog = errors.New("invalid catalog")

// File is the on-disk catalog format.
type File struct {
	Version string         `yaml:"version" json:"version"`
	Offers  []offers.Offer `yaml:"offers" json:"offers"`
}

// LoadFile reads and validates a catalog file. The format is picked from the
// extension: .json is JSON, anything else is YAML.
func LoadFile(path string) ([]offers.Offer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog %s: %w", path, err)
	}

	var f File
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, &f)
	} else {
		err = yaml.Unmarshal(data, &f)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing catalog %s: %w", path, err)
	}

	if err := Validate(f.Offers); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f.Offers, nil
}

// Validate checks every offer and reports all problems at once.
func Validate(catalog []offers.Offer) error {
	var errs []string
	seen := make(map[string]int, len(catalog))

	for i, o := range catalog {
		if strings.TrimSpace(o.ID) == "" {
			errs = append(errs, fmt.Sprintf("offers[%d].id is required", i))
		} else if j, dup := seen[o.ID]; dup {
			errs = append(errs, fmt.Sprintf("offers[%d].id %q duplicates offers[%d]", i, o.ID, j))
		} else {
			seen[o.ID] = i
		}
		if o.PointsRequired < 0 {
			errs = append(errs, fmt.Sprintf("offers[%d].points_required must be >= 0", i))
		}
		if !o.Type.Valid() {
			errs = append(errs, fmt.Sprintf("offers[%d].type %q is not a known offer type", i, o.Type))
		}
		if !o.Tier.Valid() {
			errs = append(errs, fmt.Sprintf("offers[%d].tier %q is not a known tier", i, o.Tier))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidCatalog, strings.Join(errs, "; "))
	}
	return nil
}
