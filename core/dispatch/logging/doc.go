// Package logging persists shedding decisions for later inspection. Stores
// are append-only and support filtering by time range, selected source and
// circuit.
package logging
