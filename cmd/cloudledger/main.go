package main

import "github.com/DrSkyle/cloudledger/cmd/cloudledger/commands"

func main() {
	commands.Execute()
}
