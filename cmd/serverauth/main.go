package main

import "github.com/MrEthical07/serverAuth/cmd/serverauth/cmd"

func main() {
	cmd.Execute()
}
