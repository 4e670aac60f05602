package main

import (
	"log"
	"os"

	"nyiyui.ca/hato/chizu/dashboard"
)

func main() {
	err := dashboard.Main()
	if err != nil {
		log.Print(err)
		os.Exit(3)
	}
}
