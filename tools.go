//go:build tools
// +build tools

// Package tools declares tool dependencies for this module.
//
// These imports are not used at runtime. They keep mockgen, invoked through
// the go:generate directives, tracked in go.mod so generation is reproducible.
package problem_map

import (
	_ "go.uber.org/mock/mockgen"
)
