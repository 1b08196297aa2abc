package supervisor

import "strings"

// Class resolves an agent class name to the CLI invocation written into the
// spawned terminal once the shell has settled.
type Class struct {
	Name   string
	Binary string
	Args   []string
}

// Invocation returns the shell command line for this class.
func (c Class) Invocation() string {
	if len(c.Args) == 0 {
		return c.Binary
	}
	return c.Binary + " " + strings.Join(c.Args, " ")
}

const defaultClassName = "claude"

var classes = map[string]Class{
	"claude": {Name: "claude", Binary: "claude"},
	"opus":   {Name: "opus", Binary: "claude", Args: []string{"--model", "opus"}},
	"sonnet": {Name: "sonnet", Binary: "claude", Args: []string{"--model", "sonnet"}},
	"codex":  {Name: "codex", Binary: "codex"},
	"gemini": {Name: "gemini", Binary: "gemini"},
}

// ResolveClass maps a class name to its CLI invocation. Unknown classes
// fall back to the default class rather than failing the spawn.
func ResolveClass(name string) Class {
	if c, ok := classes[strings.ToLower(strings.TrimSpace(name))]; ok {
		return c
	}
	return classes[defaultClassName]
}
