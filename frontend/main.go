package main

import "github.com/stxue1/wdltest/frontend/cmd"

func main() {
	cmd.Execute()
}
