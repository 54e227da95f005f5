package domain

import "time"

// ItemState is the observed state of one monitored item (a ward, a bin
// cluster, a road segment).
type ItemState struct {
	ID            string `json:"id"`
	State         State  `json:"state"`
	ReportCount   int    `json:"report_count"`
	LocationLabel string `json:"location_label,omitempty"`
}

// Hazard is an active adverse event between two items. EventID stays
// stable for as long as the hazard is active.
type Hazard struct {
	EventID   string `json:"event_id"`
	IssueType string `json:"issue_type"`
	Severity  int    `json:"severity"`
	FromID    string `json:"from_id"`
	ToID      string `json:"to_id"`
}

// Aux carries scalar fields of the payload that the differ does not interpret.
type Aux struct {
	RainfallMMHr   float64 `json:"rainfall_mm_hr"`
	CityWasteIndex float64 `json:"city_waste_index"`
	CityRoadIndex  float64 `json:"city_road_index"`
}

// Snapshot is the full state of the monitored system at one instant.
// Items and Hazards keep payload order; IDs are unique within each.
// A Snapshot is treated as immutable once parsed.
type Snapshot struct {
	Items      []ItemState `json:"items"`
	Hazards    []Hazard    `json:"hazards"`
	Aux        Aux         `json:"aux"`
	ObservedAt time.Time   `json:"observed_at,omitzero"`
}

// Item returns the item with the given id.
func (s *Snapshot) Item(id string) (ItemState, bool) {
	for _, it := range s.Items {
		if it.ID == id {
			return it, true
		}
	}
	return ItemState{}, false
}

func (s *Snapshot) itemIndex() map[string]ItemState {
	idx := make(map[string]ItemState, len(s.Items))
	for _, it := range s.Items {
		idx[it.ID] = it
	}
	return idx
}

func (s *Snapshot) hazardIDs() map[string]struct{} {
	ids := make(map[string]struct{}, len(s.Hazards))
	for _, h := range s.Hazards {
		ids[h.EventID] = struct{}{}
	}
	return ids
}
