package main

import "github.com/ubtk/marctk/cmd/marctk/cmd"

func main() {
	cmd.Execute()
}
