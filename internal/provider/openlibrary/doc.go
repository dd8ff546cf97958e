// Package openlibrary adapts the Open Library API for book records. A book
// fetch composes the work document, its edition list, and each author
// document into one envelope; page counts average over editions and the
// publish year comes from the earliest edition.
package openlibrary
