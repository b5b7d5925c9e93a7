package main

import "github.com/abczzz13/proxytrace/internal/cli"

func main() {
	cli.Execute()
}
