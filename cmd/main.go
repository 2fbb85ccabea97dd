package main

import (
	cmd "github.com/aspenlund/kbharvest/cmd/kbharvest"
)

func main() {
	cmd.Execute()
}
