package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMondayOfCurrentWeek(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{
			name: "midweek",
			now:  time.Date(2026, time.January, 7, 15, 30, 0, 0, time.UTC),
			want: time.Date(2026, time.January, 5, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "monday itself",
			now:  time.Date(2026, time.January, 5, 0, 0, 1, 0, time.UTC),
			want: time.Date(2026, time.January, 5, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "sunday belongs to the week that started last monday",
			now:  time.Date(2026, time.January, 11, 23, 59, 0, 0, time.UTC),
			want: time.Date(2026, time.January, 5, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "across month boundary",
			now:  time.Date(2026, time.February, 1, 10, 0, 0, 0, time.UTC),
			want: time.Date(2026, time.January, 26, 0, 0, 0, 0, time.UTC),
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := NewFixed(tc.now)
			assert.Equal(t, tc.want, c.MondayOfCurrentWeek())
			assert.Equal(t, tc.want.AddDate(0, 0, 7), c.MondayOfNextWeek())
		})
	}
}

func TestMaterialize(t *testing.T) {
	c := NewFixed(time.Date(2026, time.January, 7, 12, 0, 0, 0, time.UTC))

	got, err := c.Materialize(1, "09:00:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, time.January, 6, 9, 0, 0, 0, time.UTC), got)

	got, err = c.Materialize(6, "18:30")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, time.January, 11, 18, 30, 0, 0, time.UTC), got)
}

func TestMaterializeRejectsBadInput(t *testing.T) {
	c := NewFixed(time.Date(2026, time.January, 7, 12, 0, 0, 0, time.UTC))

	_, err := c.Materialize(7, "09:00:00")
	assert.Error(t, err)

	_, err = c.Materialize(-1, "09:00:00")
	assert.Error(t, err)

	_, err = c.Materialize(0, "quarter past nine")
	assert.Error(t, err)
}

func TestNormalizeTimeOfDay(t *testing.T) {
	got, err := NormalizeTimeOfDay("9:05")
	require.NoError(t, err)
	assert.Equal(t, "09:05:00", got)

	got, err = NormalizeTimeOfDay("18:00:30")
	require.NoError(t, err)
	assert.Equal(t, "18:00:30", got)

	_, err = NormalizeTimeOfDay("25:00")
	assert.Error(t, err)
}

func TestNewRejectsUnknownZone(t *testing.T) {
	_, err := New("Not/AZone")
	assert.Error(t, err)
}

func TestTodayUsesClubZone(t *testing.T) {
	c, err := New("UTC")
	require.NoError(t, err)
	today := c.Today()
	assert.Equal(t, 0, today.Hour())
	assert.Equal(t, "UTC", today.Location().String())
}
