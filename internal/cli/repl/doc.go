// Package repl provides the interactive shell of datalayer-cli.
//
// Lines are split with shell quoting rules and handed to an Executor,
// so every command of the CLI works inside the shell against one open
// engine. History persists to a file between runs.
package repl
