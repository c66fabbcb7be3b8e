package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/adnreport/internal/domain"
)

func TestNormalize_StringEncodedResults(t *testing.T) {
	payload := []byte(`{"results":"[{\"day\":\"2024-01-01\",\"hour\":\"05\",\"country\":\"US\",\"platform\":\"android\",\"application\":\"App\",\"package_name\":\"com.app\",\"zone_id\":\"z1\",\"impressions\":100,\"clicks\":5,\"revenue\":2.5}]"}`)

	rows, err := Normalize(payload, "sdk")
	require.NoError(t, err)
	require.Len(t, rows, 1)

	row := rows[0]
	assert.Equal(t, "2024-01-01", row.Day)
	assert.Equal(t, "05", row.Hour)
	assert.Equal(t, "US", row.Country)
	assert.Equal(t, "android", row.Platform)
	assert.Equal(t, "App", row.Application)
	assert.Equal(t, "com.app", row.PackageName)
	assert.Equal(t, "z1", row.ZoneID)
	assert.Equal(t, "sdk", row.SdkKey)
	require.NotNil(t, row.Impressions)
	assert.Equal(t, int64(100), *row.Impressions)
	require.NotNil(t, row.Clicks)
	assert.Equal(t, int64(5), *row.Clicks)
	assert.Equal(t, 2.5, row.Revenue)
}

func TestNormalize_LiteralArrayResults(t *testing.T) {
	payload := []byte(`{"results":[{"day":"2024-01-01","hour":"05","revenue":"1.25","impressions":"7"}]}`)

	rows, err := Normalize(payload, "sdk")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 1.25, rows[0].Revenue)
	require.NotNil(t, rows[0].Impressions)
	assert.Equal(t, int64(7), *rows[0].Impressions)
}

func TestNormalize_CountsKeepFullPrecision(t *testing.T) {
	payload := []byte(`{"results":[{"impressions":9007199254740993,"clicks":"1e3"}]}`)

	rows, err := Normalize(payload, "sdk")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.NotNil(t, rows[0].Impressions)
	assert.Equal(t, int64(9007199254740993), *rows[0].Impressions)
	require.NotNil(t, rows[0].Clicks)
	assert.Equal(t, int64(1000), *rows[0].Clicks)
}

func TestNormalize_DefaultsMissingAmountsToZero(t *testing.T) {
	payload := []byte(`{"results":"[{\"day\":\"2024-01-01\",\"ctr\":null,\"ecpm\":\"\"}]"}`)

	rows, err := Normalize(payload, "sdk")
	require.NoError(t, err)
	require.Len(t, rows, 1)

	assert.Zero(t, rows[0].Ctr)
	assert.Zero(t, rows[0].Revenue)
	assert.Zero(t, rows[0].Ecpm)
	assert.Nil(t, rows[0].Impressions)
	assert.Nil(t, rows[0].Clicks)
	assert.Empty(t, rows[0].Country)
}

func TestNormalize_EmptyArray(t *testing.T) {
	rows, err := Normalize([]byte(`{"results":"[]"}`), "sdk")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestNormalize_NoData(t *testing.T) {
	for name, payload := range map[string]string{
		"missing":      `{}`,
		"null":         `{"results":null}`,
		"blank string": `{"results":"  "}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Normalize([]byte(payload), "sdk")
			require.Error(t, err)
			assert.True(t, domain.IsNoData(err), "got %v", err)
		})
	}
}

func TestNormalize_ParseFailures(t *testing.T) {
	for name, payload := range map[string]string{
		"not json":       `<html>`,
		"results object": `{"results":{"a":1}}`,
		"bad inner":      `{"results":"[{"}`,
		"bad revenue":    `{"results":[{"revenue":"abc"}]}`,
		"bad clicks":     `{"results":[{"clicks":"x"}]}`,
		"fractional":     `{"results":[{"impressions":12.5}]}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Normalize([]byte(payload), "sdk")
			require.Error(t, err)
			assert.Equal(t, domain.KindParseFailed, domain.KindOf(err), "got %v", err)
		})
	}
}
