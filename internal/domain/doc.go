// Package domain defines the core domain types and interfaces.
//
// This package contains shared model types, ranking views, and cross-cutting
// interfaces. No implementation code - just contracts. Prevents circular
// imports by keeping interfaces on the consumer side.
package domain
