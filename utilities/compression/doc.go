// Package compression provides the codec used to shrink snapshot files.
//
// A saved snapshot is RLE8 data wrapped in a gzip stream at the highest level.
// Snapshots are JSON, which has almost no byte runs, so the RLE8 stage does
// little: the doubled letter in every `null` label costs one extra byte. Gzip
// does nearly all of the shrinking. The RLE8 stage stays because it's part of
// the file format, and files written by older versions must still decode.
//
// The run-length scheme is RLE8 as used by the BMP format: a byte B occurring
// N >= 2 times in a row is written as B B followed by an unsigned byte holding
// N - 2. Runs longer than 257 are split. For example:
//
//	WXXXXXXXXXXXXXXXYZZ
//	W XX 13 Y ZZ 0
package compression
