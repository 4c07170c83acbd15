package main

import (
	"ironfly/cmd/ironfly/commands"
)

func main() {
	commands.Execute()
}
