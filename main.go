package main

import "vnchat/cmd"

func main() {
	cmd.Execute()
}
