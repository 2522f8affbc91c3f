// Package output renders datalayer-cli results.
//
//   - formatter.go: Formatter interface and factory
//   - table.go: column-aligned tables, wide mode
//   - json.go: indented JSON
//   - yaml.go: YAML via gopkg.in/yaml.v3
//   - record.go: display view of stored records
package output
