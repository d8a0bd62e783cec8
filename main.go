package main

import "github.com/m3trik/releasechain/cmd"

func main() {
	cmd.Execute()
}
