package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldValueStates(t *testing.T) {
	assert.True(t, Present(1.5).IsPresent())
	assert.Equal(t, 1.5, Present(1.5).Value)

	assert.False(t, Missing().IsPresent())
	assert.Equal(t, StatusMissing, Missing().Status)

	iv := Invalid("out of range")
	assert.False(t, iv.IsPresent())
	assert.Equal(t, "out of range", iv.Reason)
}

func TestRawReadingSensorAccess(t *testing.T) {
	var r RawReading
	for _, field := range SensorFields {
		r.SetSensor(field, Present(float64(len(field))))
		assert.Equal(t, float64(len(field)), r.Sensor(field).Value)
	}
	assert.Equal(t, StatusInvalid, r.Sensor(SensorField("bogus")).Status)
}

func TestSensorLimitContains(t *testing.T) {
	limits := DefaultSensorLimits()

	ws := limits[FieldWindSpeed]
	assert.True(t, ws.Contains(0))
	assert.True(t, ws.Contains(100))
	assert.False(t, ws.Contains(-0.1))
	assert.False(t, ws.Contains(100.1))

	wd := limits[FieldWindDirection]
	assert.True(t, wd.Contains(360))
	assert.False(t, wd.Contains(400))

	po := limits[FieldPowerOutput]
	assert.True(t, po.Contains(0))
	assert.True(t, po.Contains(1e9)) // unbounded above
	assert.False(t, po.Contains(-1))
}

func TestDateHelpers(t *testing.T) {
	ts := time.Date(2025, 4, 8, 23, 59, 59, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 4, 8, 0, 0, 0, 0, time.UTC), Midnight(ts))
	assert.Equal(t, "2025-04-08", DateString(ts))

	parsed, err := ParseDate("2025-04-08")
	require.NoError(t, err)
	assert.Equal(t, Midnight(ts), parsed)

	_, err = ParseDate("08/04/2025")
	require.Error(t, err)
}

func TestReadingDate(t *testing.T) {
	r := Reading{Timestamp: time.Date(2025, 4, 8, 13, 30, 0, 0, time.UTC)}
	assert.Equal(t, time.Date(2025, 4, 8, 0, 0, 0, 0, time.UTC), r.Date())
}

func TestGroupContains(t *testing.T) {
	for id := 1; id <= 3; id++ {
		g, err := GroupByID(id)
		require.NoError(t, err)
		assert.True(t, g.Contains(g.MinTurbineID))
		assert.True(t, g.Contains(g.MaxTurbineID))
		assert.False(t, g.Contains(g.MinTurbineID-1))
		assert.False(t, g.Contains(g.MaxTurbineID+1))
	}

	_, err := GroupByID(4)
	require.Error(t, err)
}

func TestGroupRangesDoNotOverlap(t *testing.T) {
	g1, _ := GroupByID(1)
	g2, _ := GroupByID(2)
	g3, _ := GroupByID(3)

	assert.Equal(t, g1.MaxTurbineID+1, g2.MinTurbineID)
	assert.Equal(t, g2.MaxTurbineID+1, g3.MinTurbineID)
	assert.Equal(t, 15, g3.MaxTurbineID)
}

func TestGroupFromName(t *testing.T) {
	cases := []struct {
		name    string
		wantID  int
		wantErr bool
	}{
		{"data_group_1", 1, false},
		{"data_group_2.csv", 2, false},
		{"/drop/incoming/data_group_3/2025-04-08.csv", 3, false},
		{"data_group_9", 0, true}, // well-formed but unknown
		{"group_1", 0, true},
		{"", 0, true},
	}

	for _, tc := range cases {
		g, err := GroupFromName(tc.name)
		if tc.wantErr {
			assert.Error(t, err, tc.name)
			continue
		}
		require.NoError(t, err, tc.name)
		assert.Equal(t, tc.wantID, g.ID)
	}
}

func TestGroupName(t *testing.T) {
	g, err := GroupByID(2)
	require.NoError(t, err)
	assert.Equal(t, "data_group_2", g.Name())
}
