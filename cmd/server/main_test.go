package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleEntries = `[
  {"_id": "a", "title": "t", "body": "b", "mood": {"happy": 80, "anxious": 10}, "createdAt": "2024-01-01T09:00:00Z"},
  {"_id": "b", "title": "t", "body": "b", "mood": {"happy": 60}, "createdAt": "2024-01-01T21:00:00Z"},
  {"_id": "c", "title": "t", "body": "b", "mood": {"happy": 20}, "createdAt": "2024-01-02T09:00:00Z"},
  {"_id": "d", "title": "t", "body": "b", "mood": {"happy": 90}, "createdAt": "not a date"}
]`

type aggregateOutput struct {
	Days []struct {
		Weekday string `json:"weekday"`
		Moods   []struct {
			Mood    string  `json:"mood"`
			Average float64 `json:"average"`
			Level   string  `json:"level"`
		} `json:"moods"`
	} `json:"days"`
	Stats struct {
		Entries        int `json:"entries"`
		SkippedEntries int `json:"skippedEntries"`
	} `json:"stats"`
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestClassifyCommand(t *testing.T) {
	out, err := execute(t, "", "classify", "10", "26", "75.5")
	require.NoError(t, err)
	assert.Equal(t, "10\tLow\n26\tMedium\n75.5\tHigh\n", out)

	for _, score := range []string{"lots", "NaN", "Inf", "-Inf"} {
		_, err = execute(t, "", "classify", score)
		assert.Error(t, err, score)
	}

	_, err = execute(t, "", "classify")
	assert.Error(t, err)
}

func TestAggregateCommand(t *testing.T) {
	out, err := execute(t, sampleEntries, "aggregate")
	require.NoError(t, err)

	var got aggregateOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))

	require.Len(t, got.Days, 2)
	assert.Equal(t, "Monday", got.Days[0].Weekday)
	require.Len(t, got.Days[0].Moods, 2)
	assert.Equal(t, "anxious", got.Days[0].Moods[0].Mood)
	assert.Equal(t, 70.0, got.Days[0].Moods[1].Average)
	assert.Equal(t, "High", got.Days[0].Moods[1].Level)
	assert.Equal(t, "Tuesday", got.Days[1].Weekday)
	assert.Equal(t, 4, got.Stats.Entries)
	assert.Equal(t, 1, got.Stats.SkippedEntries)
}

func TestAggregateCommandTimezoneAndFilter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "entries.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleEntries), 0o600))

	out, err := execute(t, "", "aggregate", "--file", path, "--timezone", "Asia/Tokyo", "--precision", "0")
	require.NoError(t, err)
	// 21:00 UTC on Monday is Tuesday morning in Tokyo.
	var got aggregateOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got.Days, 2)
	assert.Equal(t, "Tuesday", got.Days[1].Weekday)
	assert.Equal(t, 40.0, got.Days[1].Moods[0].Average)

	out, err = execute(t, "", "aggregate", "--file", path, "--mood", "happy:Low")
	require.NoError(t, err)
	assert.Contains(t, out, `"weekday": "Tuesday"`)
	assert.NotContains(t, out, `"weekday": "Monday"`)

	_, err = execute(t, "", "aggregate", "--file", path, "--timezone", "Nowhere/City")
	assert.Error(t, err)

	_, err = execute(t, "", "aggregate", "--file", filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestFilterCommand(t *testing.T) {
	out, err := execute(t, sampleEntries, "filter", "--mood", "happy:Low", "--mood", "anxious:Low")
	require.NoError(t, err)

	var got []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	var ids []string
	for _, e := range got {
		ids = append(ids, e["id"].(string))
	}
	assert.Equal(t, []string{"a", "c"}, ids)

	_, err = execute(t, sampleEntries, "filter", "--mood", "happy")
	assert.Error(t, err)
}
