// Package service holds the session manager and the controllers behind every screen:
// manuals, profiles and step images. Each backend call runs under its own deadline.
package service
