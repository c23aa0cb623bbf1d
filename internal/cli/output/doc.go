// Package output formats sesspool-cli results.
//
//   - formatter.go: Formatter interface and factory
//   - table.go: table rendering with wide mode
//   - json.go: indented JSON
//   - yaml.go: block YAML keyed like the JSON output
//   - spinner.go: progress animation for long requests
package output
