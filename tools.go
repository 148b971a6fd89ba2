//go:build tools
// +build tools

// Package tools pins the code generators invoked by go generate (mockgen)
// so that they are tracked in go.mod.
package crush_chat

import (
	_ "go.uber.org/mock/mockgen"
)
