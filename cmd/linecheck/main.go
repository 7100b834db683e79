package main

import "github.com/MeKo-Tech/linecheck/cmd/linecheck/cmd"

func main() {
	cmd.Execute()
}
