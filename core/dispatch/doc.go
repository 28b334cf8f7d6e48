// Package dispatch decides, once per tick, which source supplies the facility
// and which circuits stay energized.
//
// A SourceSelector labels the authoritative source and sizes the capacity
// pool, an Allocator sheds circuits in strict priority order, and the
// DecisionManager composes both with a priority registry snapshot.
package dispatch
