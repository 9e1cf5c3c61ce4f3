package main

import "ziggly-wallet/cmd/ziggly-cli/cmd"

func main() {
	cmd.Execute()
}
