// Package sink persists measured step rows.
//
// A [CSVSink] writes one file per test at <root>/<category>/<name>.csv. The
// header is fixed by the first row written; every later row is projected onto
// it. Fields are always double-quoted with backslash and quote characters
// escaped by a backslash, which [ParseLine] reverses.
package sink
