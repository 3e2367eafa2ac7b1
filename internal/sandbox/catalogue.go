package sandbox

import (
	"errors"
	"fmt"
	"os"

	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"
)

// ErrVersionNotCatalogued is returned when a requested runtime version has
// no catalogue entry.
var ErrVersionNotCatalogued = errors.New("runtime version not catalogued")

// catalogueSchema constrains the runtime-version catalogue. Every entry
// must carry a hex SHA-256 and either a download url or a local file path;
// the url/file choice is checked separately because it is clearer as a Go
// error message than as a disjunction failure.
const catalogueSchema = `
{
	[string]: {
		sha:   =~"^[0-9a-f]{64}$"
		url?:  string
		file?: string
	}
}
`

// VersionSpec is one runtime version's catalogue entry. Exactly one of URL
// (download and verify) and File (verify a local archive) is set.
type VersionSpec struct {
	URL  string `yaml:"url,omitempty"`
	SHA  string `yaml:"sha"`
	File string `yaml:"file,omitempty"`
}

// Catalogue maps runtime version strings to their archive sources.
type Catalogue map[string]VersionSpec

// LoadCatalogue reads and validates a Versions.yaml runtime catalogue.
func LoadCatalogue(path string) (Catalogue, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read runtime catalogue: %w", err)
	}

	var generic map[string]map[string]string
	if err := yaml.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("parse runtime catalogue: %w", err)
	}

	cuectx := cuecontext.New()
	schema := cuectx.CompileString(catalogueSchema)
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile catalogue schema: %w", err)
	}
	if err := schema.Unify(cuectx.Encode(generic)).Validate(); err != nil {
		return nil, fmt.Errorf("invalid runtime catalogue %s: %w", path, err)
	}

	var cat Catalogue
	if err := yaml.Unmarshal(raw, &cat); err != nil {
		return nil, fmt.Errorf("parse runtime catalogue: %w", err)
	}
	for version, spec := range cat {
		if (spec.URL == "") == (spec.File == "") {
			return nil, fmt.Errorf("invalid runtime catalogue %s: version %q must set exactly one of url and file", path, version)
		}
	}
	return cat, nil
}
