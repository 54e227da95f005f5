// Package domain models monitoring snapshots of the city's waste and road
// network and the feed events derived from them.
//
// # Data Source
//
// The upstream dashboard backend recomputes the whole city state every few
// seconds (ward waste risk, road segment risk, active road hazards, weather)
// and pushes it as one JSON document over a WebSocket, or serves it from
// its dashboard endpoint. Nothing incremental is sent: every message is a
// full snapshot, so change detection happens here by comparing consecutive
// snapshots.
//
// # Snapshot Conventions
//
// Items:
//
//	Either an object keyed by item id, {"W1": {...}, "W2": {...}}, where
//	key order is significant, or an array of objects carrying "id".
//	Required: "state" and "report_count". Optional: "location_label",
//	falling back to "name".
//
// States and ranks:
//
//	Clear=0  Reported=1  Escalated=2  Critical=3  Cleared=0
//	The dashboard's band names are accepted too:
//	Normal→Clear, Elevated→Reported, Warning→Escalated.
//	Any other state string makes the item malformed; it is never ranked
//	as Clear by default.
//
// Hazards:
//
//	Array of {"event_id", "issue_type", "severity" (1–5), "from_id", "to_id"}.
//	event_id is stable while the hazard is active.
//
// Partial failure:
//
//	A malformed item or hazard is dropped from the snapshot and reported as
//	an [EntryError]; the rest of the snapshot is still used. Only a payload
//	that is not a JSON object fails as a whole ([ErrInvalidSnapshot]).
//
// # Event Derivation
//
// [Diff] compares the previous and current snapshot:
//
//	rank up              → escalation   (critical if now Critical, else warning)
//	rank down            → deescalation (info)
//	report_count up      → new_report   (info, carries the delta, never notifies)
//	event_id not seen    → new_hazard   (warning)
//	first-seen item      → nothing
//	hazard gone          → nothing
//
// Item events come first in current item order, then hazard events in
// current hazard order. Only critical notifying events become a
// [Notification] for the external sink.
package domain
