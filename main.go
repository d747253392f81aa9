package main

import (
	"os"

	"github.com/chatlink/chatlink/internal/cli"
)

func main() {
	cli.InitCLI()
	os.Exit(cli.ExecuteWithErrorCode(os.Args[1:]))
}
