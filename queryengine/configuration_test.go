package queryengine_test

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/embedded-query-engine-go/queryengine"
)

type envURL string

func (u envURL) Resolve(lookup queryengine.EnvLookup) (string, error) {
	value, ok := lookup(string(u))
	if !ok {
		return "", errors.New("Environment variable not found: " + string(u) + ".")
	}

	return value, nil
}

func Test_ResolveDatasourceURLs_PrefersOverrideByName(t *testing.T) {
	// arrange
	config := queryengine.ValidatedConfiguration{Datasources: []queryengine.Datasource{
		{Name: "db", Provider: queryengine.ProviderPostgreSQL, URL: envURL("MISSING_URL")},
	}}
	overrides := queryengine.SortedOverrides(map[string]string{"db": "postgres://override"})

	// act
	err := config.ResolveDatasourceURLs(overrides, queryengine.EnvLookupFromMap(nil))

	// assert
	require.NoError(t, err)
	url, err := config.Datasources[0].URL.Resolve(nil)
	require.NoError(t, err)
	assert.Equal(t, "postgres://override", url)
}

func Test_ResolveDatasourceURLs_EvaluatesAgainstEnvironment(t *testing.T) {
	// arrange
	config := queryengine.ValidatedConfiguration{Datasources: []queryengine.Datasource{
		{Name: "db", URL: envURL("DATABASE_URL")},
	}}

	// act
	err := config.ResolveDatasourceURLs(nil, queryengine.EnvLookupFromMap(map[string]string{"DATABASE_URL": "postgres://env"}))

	// assert
	require.NoError(t, err)
	assert.Equal(t, queryengine.StaticURL("postgres://env"), config.Datasources[0].URL)
}

func Test_ResolveDatasourceURLs_FailsForMissingVariable(t *testing.T) {
	config := queryengine.ValidatedConfiguration{Datasources: []queryengine.Datasource{
		{Name: "db", URL: envURL("DATABASE_URL")},
	}}

	err := config.ResolveDatasourceURLs(nil, queryengine.EnvLookupFromMap(nil))

	assert.ErrorContains(t, err, "DATABASE_URL")
}

func Test_SortedOverrides_OrdersByName(t *testing.T) {
	overrides := queryengine.SortedOverrides(map[string]string{"b": "2", "a": "1", "c": "3"})

	assert.Equal(t, []queryengine.Override{{Key: "a", Value: "1"}, {Key: "b", Value: "2"}, {Key: "c", Value: "3"}}, overrides)
}

func Test_ValidateOneDatasource(t *testing.T) {
	one := queryengine.Datasource{Name: "db"}

	testCases := []struct {
		name        string
		datasources []queryengine.Datasource
		expectedErr error
	}{
		{name: "none", datasources: nil, expectedErr: queryengine.ErrNoDatasource},
		{name: "one", datasources: []queryengine.Datasource{one}},
		{name: "two", datasources: []queryengine.Datasource{one, one}, expectedErr: queryengine.ErrMultipleDatasources},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			config := queryengine.ValidatedConfiguration{Datasources: tc.datasources}

			err := config.ValidateOneDatasource()

			if tc.expectedErr == nil {
				assert.NoError(t, err)
				return
			}

			assert.ErrorIs(t, err, tc.expectedErr)
			kind, _ := queryengine.KindOf(err)
			assert.Equal(t, queryengine.KindConfiguration, kind)
		})
	}
}

func Test_LoadURLWithConfigDir_AnchorsRelativeFileURLs(t *testing.T) {
	testCases := []struct {
		name     string
		url      string
		expected string
	}{
		{name: "relative file", url: "file:./dev.db", expected: "file:" + filepath.Join("/srv/app", "dev.db")},
		{name: "relative file with params", url: "file:dev.db?mode=ro", expected: "file:" + filepath.Join("/srv/app", "dev.db") + "?mode=ro"},
		{name: "absolute file", url: "file:/var/data/dev.db", expected: "file:/var/data/dev.db"},
		{name: "in memory", url: "file::memory:", expected: "file::memory:"},
		{name: "postgres", url: "postgres://localhost/db", expected: "postgres://localhost/db"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			datasource := queryengine.Datasource{Name: "db", URL: queryengine.StaticURL(tc.url)}

			url, err := datasource.LoadURLWithConfigDir("/srv/app", nil)

			require.NoError(t, err)
			assert.Equal(t, tc.expected, url)
		})
	}
}

func Test_PreviewFeatures_AreMergedAndDeduplicated(t *testing.T) {
	config := queryengine.ValidatedConfiguration{Generators: []queryengine.Generator{
		{Name: "a", PreviewFeatures: []string{"tracing", "metrics"}},
		{Name: "b", PreviewFeatures: []string{"metrics"}},
	}}

	assert.Equal(t, []string{"metrics", "tracing"}, config.PreviewFeatures())
}

func Test_Datasource_Capabilities_DependOnProvider(t *testing.T) {
	postgres := queryengine.Datasource{Provider: queryengine.ProviderPostgreSQL}
	sqlite := queryengine.Datasource{Provider: queryengine.ProviderSQLite}

	assert.True(t, postgres.Capabilities().Contains(queryengine.CapabilityReturning))
	assert.False(t, sqlite.Capabilities().Contains(queryengine.CapabilityReturning))
	assert.True(t, sqlite.Capabilities().Contains(queryengine.CapabilityLastInsertID))
}
