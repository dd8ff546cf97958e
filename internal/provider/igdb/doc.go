// Package igdb adapts the IGDB API for video game records. Queries use the
// Apicalypse body format; the adapter expects a preissued bearer token.
package igdb
