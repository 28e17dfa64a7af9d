package main

import (
	"github.com/mchmarny/fragility/pkg/cli"
)

func main() {
	cli.Execute()
}
