// Package resolver maps a link to the renditions it can be downloaded as.
//
// Backends implement Resolver. The yt-dlp backend shells out to the yt-dlp
// binary and covers most sites; the youtube backend uses a native client for
// YouTube links when yt-dlp is unavailable or fails. Chain tries backends in
// configured order. Select applies the transfer ceiling.
//
// Renditions carry an opaque Handle that downloads the chosen rendition into a
// directory; the transfer package calls it after selection.
package resolver
