package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSnapshot(t *testing.T) {
	t.Run("object items keep payload order", func(t *testing.T) {
		data := []byte(`{
			"items": {
				"W3": {"state": "Critical", "report_count": 7, "location_label": "Indiranagar"},
				"W1": {"state": "Clear", "report_count": 0},
				"W2": {"state": "Reported", "report_count": 2, "name": "Jayanagar"}
			},
			"hazards": [
				{"event_id": "h9", "issue_type": "pothole", "severity": 4, "from_id": "W1", "to_id": "W2"}
			],
			"rainfall_mm_hr": 12.5,
			"city_waste_index": 41.2,
			"timestamp": "2026-03-14T09:30:00Z",
			"priority_queue": [{"id": "W3"}]
		}`)

		snap, issues, err := ParseSnapshot(data)
		require.NoError(t, err)
		assert.Empty(t, issues)

		require.Len(t, snap.Items, 3)
		assert.Equal(t, "W3", snap.Items[0].ID)
		assert.Equal(t, "W1", snap.Items[1].ID)
		assert.Equal(t, "W2", snap.Items[2].ID)
		assert.Equal(t, StateCritical, snap.Items[0].State)
		assert.Equal(t, 7, snap.Items[0].ReportCount)
		assert.Equal(t, "Indiranagar", snap.Items[0].LocationLabel)
		assert.Equal(t, "Jayanagar", snap.Items[2].LocationLabel)

		require.Len(t, snap.Hazards, 1)
		assert.Equal(t, Hazard{EventID: "h9", IssueType: "pothole", Severity: 4, FromID: "W1", ToID: "W2"}, snap.Hazards[0])

		assert.InEpsilon(t, 12.5, snap.Aux.RainfallMMHr, 0.0001)
		assert.InEpsilon(t, 41.2, snap.Aux.CityWasteIndex, 0.0001)
		assert.Zero(t, snap.Aux.CityRoadIndex)
		assert.Equal(t, time.Date(2026, time.March, 14, 9, 30, 0, 0, time.UTC), snap.ObservedAt)
	})

	t.Run("array items use embedded ids", func(t *testing.T) {
		data := []byte(`{"items": [
			{"id": "S2", "state": "warning", "report_count": 3},
			{"id": "S1", "state": "NORMAL", "report_count": 0}
		]}`)

		snap, issues, err := ParseSnapshot(data)
		require.NoError(t, err)
		assert.Empty(t, issues)
		require.Len(t, snap.Items, 2)
		assert.Equal(t, ItemState{ID: "S2", State: StateEscalated, ReportCount: 3}, snap.Items[0])
		assert.Equal(t, ItemState{ID: "S1", State: StateClear, ReportCount: 0}, snap.Items[1])
	})

	t.Run("naive timestamp read as UTC", func(t *testing.T) {
		snap, _, err := ParseSnapshot([]byte(`{"timestamp": "2026-03-14T09:30:00.123456"}`))
		require.NoError(t, err)
		assert.Equal(t, time.Date(2026, time.March, 14, 9, 30, 0, 123456000, time.UTC), snap.ObservedAt)
	})

	t.Run("empty object is an empty snapshot", func(t *testing.T) {
		snap, issues, err := ParseSnapshot([]byte(`{}`))
		require.NoError(t, err)
		assert.Empty(t, issues)
		assert.Empty(t, snap.Items)
		assert.Empty(t, snap.Hazards)
		assert.True(t, snap.ObservedAt.IsZero())
	})
}

func TestParseSnapshot_SkipsMalformedEntries(t *testing.T) {
	data := []byte(`{
		"items": {
			"A": {"state": "Reported", "report_count": 1},
			"B": {"state": "Exploded", "report_count": 1},
			"C": {"report_count": 1},
			"D": {"state": "Clear"},
			"E": {"state": "Clear", "report_count": -2},
			"F": "not an object",
			"A": {"state": "Critical", "report_count": 9},
			"G": {"state": "Escalated", "report_count": 4}
		},
		"hazards": [
			{"event_id": "h1", "severity": 3},
			{"event_id": "", "severity": 3},
			{"event_id": "h2", "severity": 9},
			{"event_id": "h3"},
			{"event_id": "h1", "severity": 5},
			42,
			{"event_id": "h4", "severity": 1}
		],
		"rainfall_mm_hr": "heavy"
	}`)

	snap, issues, err := ParseSnapshot(data)
	require.NoError(t, err)

	require.Len(t, snap.Items, 2)
	assert.Equal(t, "A", snap.Items[0].ID)
	assert.Equal(t, StateReported, snap.Items[0].State, "first occurrence wins")
	assert.Equal(t, "G", snap.Items[1].ID)

	require.Len(t, snap.Hazards, 2)
	assert.Equal(t, "h1", snap.Hazards[0].EventID)
	assert.Equal(t, 3, snap.Hazards[0].Severity)
	assert.Equal(t, "h4", snap.Hazards[1].EventID)

	assert.Zero(t, snap.Aux.RainfallMMHr)

	require.Len(t, issues, 11)
	for _, is := range issues {
		assert.ErrorIs(t, is, ErrMalformedEntry)
	}
	assert.Equal(t, "items", issues[0].Section)
	assert.Equal(t, "B", issues[0].Key)
	assert.ErrorIs(t, issues[0], ErrUnknownState)
	assert.Equal(t, "hazards", issues[len(issues)-1].Section)
}

func TestParseSnapshot_InvalidPayload(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", `{broken`},
		{"array payload", `[1,2,3]`},
		{"null payload", `null`},
		{"items wrong type", `{"items": 5}`},
		{"hazards wrong type", `{"hazards": {"h1": {}}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ParseSnapshot([]byte(tt.data))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidSnapshot))
		})
	}
}

func TestParseState(t *testing.T) {
	tests := []struct {
		in   string
		want State
	}{
		{"Clear", StateClear},
		{"reported", StateReported},
		{" ESCALATED ", StateEscalated},
		{"Critical", StateCritical},
		{"Cleared", StateCleared},
		{"Normal", StateClear},
		{"Elevated", StateReported},
		{"Warning", StateEscalated},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseState(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseState("")
	assert.ErrorIs(t, err, ErrUnknownState)
	_, err = ParseState("overflowing")
	assert.ErrorIs(t, err, ErrUnknownState)
}

func TestStateRank(t *testing.T) {
	assert.Equal(t, 0, StateClear.Rank())
	assert.Equal(t, 1, StateReported.Rank())
	assert.Equal(t, 2, StateEscalated.Rank())
	assert.Equal(t, 3, StateCritical.Rank())
	assert.Equal(t, StateClear.Rank(), StateCleared.Rank())
}
