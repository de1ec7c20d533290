package main

import (
	"github.com/autobrr/propfilter/cmd"
)

func main() {
	cmd.Execute()
}
