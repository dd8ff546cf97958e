// Package anilist adapts the AniList GraphQL API for anime and manga records.
package anilist
