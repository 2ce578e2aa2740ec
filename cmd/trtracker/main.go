package main

import "github.com/Yeboster/trade-republic-tracker/internal/cli"

func main() {
	cli.Execute()
}
