package domain

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimestampUnmarshal(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		want  time.Time
		valid bool
	}{
		{"rfc3339", `"2024-01-01T09:00:00Z"`, time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC), true},
		{"fractional", `"2024-01-01T09:00:00.123Z"`, time.Date(2024, 1, 1, 9, 0, 0, 123e6, time.UTC), true},
		{"date only", `"2024-01-01"`, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), true},
		{"epoch millis", `1704099600000`, time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC), true},
		{"epoch millis string", `"1704099600000"`, time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC), true},
		{"basic date", `"20240101"`, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), true},
		{"short digits", `"12345"`, time.Time{}, false},
		{"epoch overflow", `1e300`, time.Time{}, false},
		{"epoch overflow string", `"99999999999999999999"`, time.Time{}, false},
		{"epoch beyond range", `9000000000000000`, time.Time{}, false},
		{"fractional epoch", `1704099600000.5`, time.Time{}, false},
		{"garbage", `"yesterday-ish"`, time.Time{}, false},
		{"null", `null`, time.Time{}, false},
		{"object", `{"a":1}`, time.Time{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ts Timestamp
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &ts))
			assert.Equal(t, tt.valid, ts.Valid())
			if tt.valid {
				assert.True(t, tt.want.Equal(ts.Time), "got %v", ts.Time)
			}
		})
	}
}

func TestTimestampMarshal(t *testing.T) {
	data, err := json.Marshal(At(time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	assert.JSONEq(t, `"2024-01-01T09:00:00Z"`, string(data))

	data, err = json.Marshal(Timestamp{})
	require.NoError(t, err)
	assert.Equal(t, "null", string(data))
}

func TestEntryUnmarshalMalformedCreatedAt(t *testing.T) {
	var e Entry
	err := json.Unmarshal([]byte(`{"_id":"x1","title":"t","createdAt":"not a date","mood":{"happy":70}}`), &e)
	require.NoError(t, err)

	assert.Equal(t, "x1", e.ID)
	assert.False(t, e.CreatedAt.Valid())
	score, ok := e.Mood.Score("happy")
	assert.True(t, ok)
	assert.Equal(t, 70.0, score)
}

func TestMoodScore(t *testing.T) {
	m := Mood{
		"float":  42.5,
		"int":    7,
		"number": json.Number("12"),
		"string": "80",
		"bool":   true,
		"nil":    nil,
		"nan":    math.NaN(),
	}

	for key, want := range map[string]float64{"float": 42.5, "int": 7, "number": 12} {
		got, ok := m.Score(key)
		assert.True(t, ok, key)
		assert.Equal(t, want, got, key)
	}
	for _, key := range []string{"string", "bool", "nil", "nan", "absent"} {
		_, ok := m.Score(key)
		assert.False(t, ok, key)
	}
}

func TestMoodValidate(t *testing.T) {
	assert.NoError(t, Mood{"happy": 0, "sad": 100}.Validate())
	assert.NoError(t, Mood(nil).Validate())

	for _, bad := range []Mood{{"happy": -1}, {"happy": 100.5}, {"happy": "high"}, {" ": 10}} {
		err := bad.Validate()
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidInput))
	}
}

func TestParseCriterion(t *testing.T) {
	c, err := ParseCriterion("happy:high")
	require.NoError(t, err)
	assert.Equal(t, Criterion{Type: "happy", Level: LevelHigh}, c)
	assert.Equal(t, "happy:High", c.String())

	for _, bad := range []string{"happy", ":High", "happy:extreme", ""} {
		_, err := ParseCriterion(bad)
		assert.ErrorIs(t, err, ErrInvalidInput, bad)
	}
}

func TestCriteriaSet(t *testing.T) {
	happyHigh := Criterion{Type: "happy", Level: LevelHigh}
	sadLow := Criterion{Type: "sad", Level: LevelLow}

	var s CriteriaSet
	assert.True(t, s.Add(happyHigh))
	assert.False(t, s.Add(happyHigh), "duplicates are a no-op")
	assert.True(t, s.Add(sadLow))
	assert.Equal(t, []Criterion{happyHigh, sadLow}, s.Items())

	assert.False(t, s.Remove(Criterion{Type: "happy", Level: LevelLow}))
	assert.True(t, s.Remove(happyHigh))
	assert.Equal(t, []Criterion{sadLow}, s.Items())

	s.Clear()
	assert.Zero(t, s.Len())

	var nilSet *CriteriaSet
	assert.Zero(t, nilSet.Len())
	assert.False(t, nilSet.Contains(sadLow))
}

func TestCriteriaSetJSON(t *testing.T) {
	s := &CriteriaSet{}
	require.NoError(t, json.Unmarshal([]byte(`[{"type":"happy","level":"High"},{"type":"happy","level":"high"}]`), s))
	assert.Equal(t, 1, s.Len())

	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"type":"happy","level":"High"}]`, string(data))

	assert.Error(t, json.Unmarshal([]byte(`[{"type":"happy","level":"Huge"}]`), s))
}
