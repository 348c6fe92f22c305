// Package session manages the capture session lifecycle: starting,
// ending, and lazily ensuring a session so ingestion never races a cold
// start.
package session
