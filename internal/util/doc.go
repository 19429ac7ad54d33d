// Package util provides small helpers shared across the client packages.
package util
