package main

import (
	"github.com/nsgamedb/eshop-scraper/cmd"
)

func main() {
	cmd.Execute()
}
