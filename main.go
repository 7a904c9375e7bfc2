package main

import (
	"log"

	"github.com/screenpilot/cv-ranker/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
