// Command socialscope is the operator CLI for the study capture agent:
// run the agent in the foreground, inspect local capture state, trigger
// sync passes, and manage configuration.
package main
