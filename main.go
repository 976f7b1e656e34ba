package main

import "mtserver/cmd"

func main() {
	cmd.Execute()
}
