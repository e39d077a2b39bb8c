package main

import (
	"StuffChat/cmd"
)

func main() {
	cmd.Execute()
}
