// Package orbit holds the release version of the orbit agent.
package orbit

// Version is the current release.
const Version = "0.1.0"
