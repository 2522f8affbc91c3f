// Package confloader loads layered configuration with koanf.
//
// Sources, later overriding earlier:
//
//  1. Defaults already present in the target struct
//  2. A YAML file
//  3. Environment variables (DATALAYER_ prefix)
//  4. A map, typically built from command-line flags
//
// Watcher reports changes to the file so callers can reload.
package confloader
