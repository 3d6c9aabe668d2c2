package main

import "github.com/JakeFAU/crawlersvc/cmd"

func main() {
	cmd.Execute()
}
