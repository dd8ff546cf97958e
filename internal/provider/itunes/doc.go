// Package itunes adapts the iTunes lookup API for podcast and audio book
// records. Podcast lookups pull the episode list in the same request; the
// collection entry leads and episodes follow newest first.
package itunes
