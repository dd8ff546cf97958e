// Package tmdb adapts The Movie Database API for movie and show records.
// Show fetches compose the series payload with per-season episode payloads
// into one envelope so normalization stays pure.
package tmdb
