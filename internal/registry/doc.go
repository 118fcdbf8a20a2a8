// Package registry provides the central mapping between declarative flow
// manifests and their registered Go plan implementations.
package registry
