package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadEvent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alarm.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"detail":{}}`), 0600))

	data, err := readEvent(nil, path)
	require.NoError(t, err)
	assert.Equal(t, `{"detail":{}}`, string(data))

	data, err = readEvent(strings.NewReader(`{"Records":[]}`), "-")
	require.NoError(t, err)
	assert.Equal(t, `{"Records":[]}`, string(data))

	_, err = readEvent(nil, filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorContains(t, err, "failed to read event file")
}
