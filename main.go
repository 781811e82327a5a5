package main

import "potsync/cmd"

func main() {
	cmd.Execute()
}
