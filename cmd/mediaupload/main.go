package main

import (
	"fmt"
	"os"

	"github.com/dmitrymomot/mediaqueue/cmd/mediaupload/app"
)

func main() {
	if err := app.Run(); err != nil {
		fmt.Fprintln(os.Stderr, "mediaupload:", err)
		os.Exit(1)
	}
}
