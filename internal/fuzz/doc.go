// Package fuzztests houses Go fuzz harnesses for the lf front end: line
// segmentation, block merging, document encoding and security screening.
// The harnesses check that arbitrary input never panics and that parsed
// programs survive a document round trip.
//
// Seeds: testdata/*.lf plus a few built-in snippets.
package fuzztests
