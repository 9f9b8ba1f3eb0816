package main

import (
	"os"

	"fc-troll-detector/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
