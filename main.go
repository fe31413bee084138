package main

import "ticketing-sync/cmd"

func main() {
	cmd.Execute()
}
