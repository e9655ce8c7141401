package main

import (
	"github.com/opencode-ai/genpipe/cmd"
)

func main() {
	cmd.Execute()
}
