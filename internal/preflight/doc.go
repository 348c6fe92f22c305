// Package preflight holds environment checks run before capture starts:
// directory access and free disk space.
package preflight
