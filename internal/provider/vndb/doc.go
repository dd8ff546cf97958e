// Package vndb adapts the VNDB API for visual novel records.
package vndb
