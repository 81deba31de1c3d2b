package main

import "github.com/joseph-ayodele/invoice-desk/internal/cli"

func main() {
	cli.Execute()
}
