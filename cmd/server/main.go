package main

import "github.com/sirazahmedsyed/product-stock-service/internal/cli"

func main() {
	cli.Execute()
}
