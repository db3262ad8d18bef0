// Package archive serializes records before deletion.
//
// Three formats are supported: "json" (an indented JSON array), "csv" (one
// row per record with the document body as a JSON column) and "compressed"
// (gzip JSON Lines). FileArchiver writes one file per archived batch and
// reports the bytes written so they can be added to a policy's
// totalSizeArchived.
package archive
