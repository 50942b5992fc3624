package main

import "github.com/agileassist/server/internal/cmd"

func main() {
	cmd.Execute()
}
