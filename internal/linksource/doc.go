// Package linksource turns operator input into ordered link lists.
//
// FromMessage accepts a single pasted http(s) link. FromBatch reads an
// uploaded newline-delimited file without validating individual lines, so a
// malformed line surfaces later as a resolution failure for that entry only.
// Expander optionally replaces YouTube playlist links with their videos.
package linksource
