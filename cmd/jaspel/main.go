package main

import "github.com/yakey01/dokterku-sub007/internal/cli"

func main() {
	cli.Execute()
}
