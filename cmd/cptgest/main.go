package main

import "github.com/cpt-tools/cptgest/internal/cli"

func main() {
	cli.Execute()
}
