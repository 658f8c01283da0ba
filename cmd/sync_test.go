package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDay(t *testing.T) {
	d, err := parseDay("2025-11-03")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 11, 3, 0, 0, 0, 0, time.UTC), d)
}

func TestParseDay_Invalid(t *testing.T) {
	for _, bad := range []string{"03-11-2025", "2025/11/03", "yesterday", ""} {
		_, err := parseDay(bad)
		assert.Error(t, err, bad)
	}
}
