package timefmt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZone_Format(t *testing.T) {
	zone, err := Load("Asia/Kolkata")
	require.NoError(t, err)

	utc := time.Date(2024, 3, 1, 18, 45, 0, 0, time.UTC)

	assert.Equal(t, "2024-03-02 12:15 AM", zone.Format(&utc, "Not set"))
	assert.Equal(t, "Not set", zone.Format(nil, "Not set"))
	assert.Equal(t, "Not available", zone.Format(&time.Time{}, "Not available"))
}

func TestZone_ParseInput(t *testing.T) {
	zone, err := Load("Asia/Kolkata")
	require.NoError(t, err)

	parsed, err := zone.ParseInput("2024-03-02T09:30")
	require.NoError(t, err)
	assert.True(t, parsed.Equal(time.Date(2024, 3, 2, 4, 0, 0, 0, time.UTC)))

	_, err = zone.ParseInput("02/03/2024 09:30")
	assert.Error(t, err)
}

func TestLoad_UnknownZone(t *testing.T) {
	_, err := Load("Mars/Olympus_Mons")
	assert.Error(t, err)
}
