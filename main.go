package main

import (
	"os"

	"github.com/intrafind/ihub-apps-sub012/app"
)

func main() {
	err := app.Execute()
	if err != nil {
		os.Exit(1)
	}
}
