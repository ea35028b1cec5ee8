package main

import (
	"os"

	"github.com/tidegate/tidegate/internal/app"
)

func main() {
	if err := app.Tidegate().Execute(); err != nil {
		os.Exit(1)
	}
}
