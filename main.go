package main

import "nathanbeddoewebdev/vpsorder/cmd"

func main() {
	cmd.Execute()
}
