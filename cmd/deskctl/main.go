package main

import (
	"os"

	"github.com/deliverydesk/deliverydesk/cmd/deskctl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
