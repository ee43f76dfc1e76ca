package main

import "github.com/example/charter-desk/cmd"

func main() {
	cmd.Execute()
}
