// Package command defines the datalayer-cli commands on urfave/cli/v2.
//
//   - root.go: application, global flags, configuration and logger setup
//   - env.go: per-invocation state (config, engine, output)
//   - data.go: get, set, delete, keys, count, dump, clear
//   - lifecycle.go: purge, new-session
//   - info.go: info, config
//   - backup.go: backup create, list, restore, prune
//   - run.go: long-running maintenance process
//   - shell.go: interactive shell over one open engine
//
// Commands parse flags, act on a storage.Table through the executor and
// print through internal/cli/output.
package command
