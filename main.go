package main

import "github.com/khanhnv2901/webapp-tripwire/cmd"

var execCmd = cmd.Execute

func main() {
	execCmd()
}
