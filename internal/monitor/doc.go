// Package monitor connects a snapshot source to the differ.
//
// A Monitor receives raw payloads from its Source, parses them into
// snapshots, diffs each against the previous one, and hands the derived
// events to the feed, the publishers, and (for critical events) the
// notifier. Only a successfully parsed snapshot replaces the previous slot,
// and source reconnections never reset it, so a reconnect does not re-fire
// events.
package monitor
