package main

import "rfidattend/internal/cli"

func main() {
	cli.Execute()
}
