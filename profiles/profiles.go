// Package profiles holds the predefined device sizes that can be picked by name
// instead of giving a block count.
package profiles

import (
	_ "embed"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/dargueta/blocksim"
	"github.com/jszwec/csvutil"
)

// DefaultSlug is the slug of the profile used when none is given.
const DefaultSlug = "default"

type Profile struct {
	Slug     string `csv:"slug"`
	Name     string `csv:"name"`
	Capacity uint   `csv:"capacity"`
	Notes    string `csv:"notes"`
}

//go:embed profiles.csv
var profilesRawCSV string
var profiles map[string]Profile

// GetPredefinedProfile returns the profile with the given slug. The lookup is
// case-sensitive.
func GetPredefinedProfile(slug string) (Profile, error) {
	profile, ok := profiles[slug]
	if ok {
		return profile, nil
	}
	return Profile{}, blocksim.ErrInvalidArgument.WithMessage(
		fmt.Sprintf("no predefined profile exists with slug %q", slug))
}

// All returns every predefined profile, smallest first.
func All() []Profile {
	all := make([]Profile, 0, len(profiles))
	for _, profile := range profiles {
		all = append(all, profile)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Capacity != all[j].Capacity {
			return all[i].Capacity < all[j].Capacity
		}
		return all[i].Slug < all[j].Slug
	})
	return all
}

func parseProfiles(raw string) (map[string]Profile, error) {
	csvReader := csv.NewReader(strings.NewReader(raw))
	csvReader.Comma = '|'

	decoder, err := csvutil.NewDecoder(csvReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create CSV decoder: %w", err)
	}

	parsed := make(map[string]Profile)
	for {
		var row Profile
		if err = decoder.Decode(&row); err == io.EOF {
			break
		} else if err != nil {
			return nil, fmt.Errorf("failed to decode row %d: %w", len(parsed)+1, err)
		}

		if _, exists := parsed[row.Slug]; exists {
			return nil, fmt.Errorf(
				"duplicate definition for profile %q found on row %d",
				row.Slug,
				len(parsed)+1)
		}
		if row.Capacity == 0 {
			return nil, fmt.Errorf("profile %q has no blocks", row.Slug)
		}
		parsed[row.Slug] = row
	}
	return parsed, nil
}

func init() {
	var err error
	profiles, err = parseProfiles(profilesRawCSV)
	if err != nil {
		panic(err)
	}
	if profiles[DefaultSlug].Capacity != blocksim.DefaultCapacity {
		panic(fmt.Errorf("%q profile must have %d blocks", DefaultSlug, blocksim.DefaultCapacity))
	}
}
