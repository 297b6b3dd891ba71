// Package oteladapters provides OpenTelemetry adapters for the lending engine's observability
// interfaces: a TracingCollector that opens one span per engine operation and a ContextualLogger
// that correlates log records with the active trace.
package oteladapters
