// Package infra contains technical adapters such as the MQTT publisher, the
// priority file store and metrics exporters. These packages should depend
// only on the interfaces defined in the core packages.
package infra
