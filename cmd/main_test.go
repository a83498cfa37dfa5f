package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transitkit/gtfs/model"
)

func TestParseHeaders(t *testing.T) {
	h, err := parseHeaders([]string{"Authorization: Bearer a:b", " X-Key :123"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"Authorization": "Bearer a:b", "X-Key": "123"}, h)

	_, err = parseHeaders([]string{"nocolon"})
	assert.Error(t, err)
}

func TestIsRemote(t *testing.T) {
	assert.True(t, isRemote("https://example.com/gtfs.zip"))
	assert.True(t, isRemote("http://example.com/gtfs.zip"))
	assert.True(t, isRemote("gs://bucket/gtfs.zip"))
	assert.False(t, isRemote("./gtfs.zip"))
	assert.False(t, isRemote("/data/gtfs"))
}

func TestOpenStorage(t *testing.T) {
	s, err := openStorage("memory", "", "", false)
	require.NoError(t, err)
	assert.NotNil(t, s)

	s, err = openStorage("sqlite", t.TempDir(), "", false)
	require.NoError(t, err)
	assert.NotNil(t, s)

	t.Setenv("GTFS_POSTGRES_CONN", "")
	_, err = openStorage("postgres", "", "", false)
	assert.Error(t, err)

	_, err = openStorage("mysql", "", "", false)
	assert.Error(t, err)
}

func TestDescribeLoadError(t *testing.T) {
	typed := fmt.Errorf("parsing stops.txt: %w", &model.MissingRequiredFieldError{File: "stops.txt", Field: "stop_id"})
	err := describeLoadError(typed)
	var target *model.MissingRequiredFieldError
	assert.True(t, errors.As(err, &target))
	assert.Contains(t, err.Error(), "missing required field")

	plain := errors.New("boom")
	assert.Equal(t, plain, describeLoadError(plain))
}
