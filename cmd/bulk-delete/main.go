package main

import "github.com/jatinvaidya/auth0-bulk-delete/internal/cli"

func main() {
	cli.Execute()
}
