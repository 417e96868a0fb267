package main

import "github.com/javi11/altview/cmd/altview/cmd"

func main() {
	cmd.Execute()
}
