package models

// Package holds the structured metadata of a Debian binary package
type Package struct {
	Name         string
	Version      string
	Architecture string
	Description  string
	Maintainer   string
	Dependencies []string

	// File information
	Filename string
	Size     int64

	// Control fields not modeled above, preserved verbatim
	Metadata map[string]string
}
