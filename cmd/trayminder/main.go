package main

import "github.com/bryanchriswhite/TrayMinder/cmd/trayminder/commands"

func main() {
	commands.Execute()
}
