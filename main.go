package main

import "github.com/polaris-ai/polaris-cli/cmd"

func main() {
	cmd.Execute()
}
