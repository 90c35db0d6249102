package main

import "yoma-api/cmd"

func main() {
	cmd.Execute()
}
