// Package serialio provides the raw text-link primitives shared by the
// path ingester, the ingestion service and the host-side feeder: a raw-mode
// serial open, a bounded line reader, and C-flavored field scanning.
package serialio
