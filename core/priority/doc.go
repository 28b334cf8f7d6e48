// Package priority holds the ranking used to decide which circuits are served
// first under scarcity. A Registry keeps a read-only default configuration and
// an operator controlled current configuration, and persists the latter
// through a Store.
package priority
