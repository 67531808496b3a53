// Package configs provides the embedded configuration template for rigqa.
//
// The template is embedded at build time with //go:embed so it ships in
// every distribution. `rigqa init` writes it to .rigqa.yaml (corpus
// config) or, with --user, to ~/.config/rigqa/config.yaml.
//
// Configuration hierarchy (see internal/config Load):
//  1. Hardcoded defaults (internal/config NewConfig)
//  2. User config (~/.config/rigqa/config.yaml)
//  3. Corpus config (.rigqa.yaml, or $RIGQA_CONFIG)
//  4. Environment variables (RIGQA_*)
package configs

import _ "embed"

// ConfigTemplate is the commented starter configuration written by
// `rigqa init`. Defaults in the template mirror internal/config; the
// struct defaults are authoritative.
//
//go:embed config.example.yaml
var ConfigTemplate string
