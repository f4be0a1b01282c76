// Package config loads and watches the reporter configuration file.
//
// Load(path) reads the YAML file, applies defaults (5m interval, 100 report
// buffer, terms size 500 on event.name over @timestamp), then validates the
// reporter fields and every report's scoring block through
// traffic.NewProcessingConfig, so a bad threshold or date fails at startup.
//
// Watch(ctx, path, onChange) uses fsnotify and calls onChange once the file
// settles after a save.
package config
