// Package events defines the events published on the internal buses when a
// decision is made or the priority table changes.
package events
