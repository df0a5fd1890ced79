package main

import (
	"context"
	"os"

	"github.com/codefionn/threadchat/internal/cli"
)

func main() {
	os.Exit(cli.Run(context.Background(), os.Args[1:], cli.StdIO()))
}
