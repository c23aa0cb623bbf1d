// Package confloader loads configuration with koanf.
//
// Sources, lowest priority first: the target struct's preset values, a
// YAML or JSON file, then environment variables under a prefix
// (SESSPOOL_ by default, double underscore between levels). Watcher
// reports file changes through fsnotify so callers can reload settings
// such as the log level.
package confloader
