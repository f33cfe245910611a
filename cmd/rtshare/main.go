package main

import "github.com/diesing/rt-share/internal/client/cmd"

func main() {
	cmd.Execute()
}
