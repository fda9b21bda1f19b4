package main

import "github.com/D0liphin/Testnice/internal/cmd"

func main() {
	cmd.Execute()
}
