package queryengine

import (
	"path/filepath"
	"slices"
	"sort"
	"strings"
)

const (
	ProviderPostgreSQL = "postgresql"
	ProviderPostgres   = "postgres"
	ProviderSQLite     = "sqlite"

	fileURLPrefix = "file:"
	memoryPath    = ":memory:"
)

// EnvLookup resolves an environment variable by name.
type EnvLookup func(key string) (string, bool)

// EnvLookupFromMap returns an EnvLookup over a fixed map.
func EnvLookupFromMap(env map[string]string) EnvLookup {
	return func(key string) (string, bool) {
		value, ok := env[key]
		return value, ok
	}
}

// URLSource yields a datasource URL, possibly by evaluating an expression against the environment.
// Resolution failures are reported as Diagnostics.
type URLSource interface {
	Resolve(lookup EnvLookup) (string, error)
}

// StaticURL is a URLSource that is already resolved.
type StaticURL string

func (u StaticURL) Resolve(_ EnvLookup) (string, error) {
	return string(u), nil
}

// Override replaces the URL of the datasource named Key with Value.
type Override struct {
	Key   string
	Value string
}

// SortedOverrides turns an override map into a slice ordered by datasource name.
func SortedOverrides(overrides map[string]string) []Override {
	sorted := make([]Override, 0, len(overrides))
	for key, value := range overrides {
		sorted = append(sorted, Override{Key: key, Value: value})
	}

	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Key < sorted[j].Key })

	return sorted
}

// Capability is a feature flag of a datasource provider.
type Capability string

const (
	CapabilityReturning          Capability = "Returning"
	CapabilityJSON               Capability = "Json"
	CapabilityInsensitiveFilters Capability = "InsensitiveFilters"
	CapabilityAutoIncrement      Capability = "AutoIncrement"
	CapabilityLastInsertID       Capability = "LastInsertId"
)

// Capabilities is the capability set of one provider.
type Capabilities []Capability

func (c Capabilities) Contains(capability Capability) bool {
	return slices.Contains(c, capability)
}

// Datasource is one datasource block of a schema.
type Datasource struct {
	Name     string
	Provider string
	Adapter  string
	URL      URLSource
}

// Capabilities reports what the datasource's provider supports.
func (d Datasource) Capabilities() Capabilities {
	switch d.Provider {
	case ProviderPostgreSQL, ProviderPostgres:
		return Capabilities{CapabilityReturning, CapabilityJSON, CapabilityInsensitiveFilters, CapabilityAutoIncrement}
	case ProviderSQLite:
		return Capabilities{CapabilityAutoIncrement, CapabilityLastInsertID}
	default:
		return Capabilities{}
	}
}

// LoadURLWithConfigDir resolves the datasource URL and anchors relative file: URLs at configDir.
func (d Datasource) LoadURLWithConfigDir(configDir string, lookup EnvLookup) (string, error) {
	if d.URL == nil {
		return "", NewConfigurationError("datasource " + d.Name + " has no url")
	}

	url, err := d.URL.Resolve(lookup)
	if err != nil {
		return "", err
	}

	return anchorFileURL(url, configDir), nil
}

func anchorFileURL(url, configDir string) string {
	if !strings.HasPrefix(url, fileURLPrefix) {
		return url
	}

	path, query, hasQuery := strings.Cut(strings.TrimPrefix(url, fileURLPrefix), "?")
	if path == memoryPath || path == "" || filepath.IsAbs(path) {
		return url
	}

	anchored := fileURLPrefix + filepath.Join(configDir, path)
	if hasQuery {
		anchored += "?" + query
	}

	return anchored
}

// Generator is one generator block of a schema. Only its preview features matter to the engine.
type Generator struct {
	Name            string
	Provider        string
	PreviewFeatures []string
}

// ValidatedConfiguration is the datasource and generator part of a schema.
type ValidatedConfiguration struct {
	Datasources []Datasource
	Generators  []Generator
}

// ResolveDatasourceURLs applies overrides by datasource name and evaluates every other URL against the environment.
func (c *ValidatedConfiguration) ResolveDatasourceURLs(overrides []Override, lookup EnvLookup) error {
	byName := make(map[string]string, len(overrides))
	for _, override := range overrides {
		byName[override.Key] = override.Value
	}

	for i := range c.Datasources {
		if url, ok := byName[c.Datasources[i].Name]; ok {
			c.Datasources[i].URL = StaticURL(url)
			continue
		}

		if c.Datasources[i].URL == nil {
			continue
		}

		url, err := c.Datasources[i].URL.Resolve(lookup)
		if err != nil {
			return err
		}

		c.Datasources[i].URL = StaticURL(url)
	}

	return nil
}

// ValidateOneDatasource fails with KindConfiguration unless exactly one datasource is defined.
func (c *ValidatedConfiguration) ValidateOneDatasource() error {
	switch len(c.Datasources) {
	case 0:
		return NewConfigurationErrorFrom(ErrNoDatasource)
	case 1:
		return nil
	default:
		return NewConfigurationErrorFrom(ErrMultipleDatasources)
	}
}

// PreviewFeatures is the sorted union of all generators' preview features.
func (c *ValidatedConfiguration) PreviewFeatures() []string {
	features := make([]string, 0)
	for _, generator := range c.Generators {
		features = append(features, generator.PreviewFeatures...)
	}

	slices.Sort(features)

	return slices.Compact(features)
}
