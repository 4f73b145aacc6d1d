package main

import (
	"log"

	"github.com/Nano112/db-clone-tool/internal/cli"
)

func main() {
	log.SetFlags(0)
	if err := cli.Execute(); err != nil {
		log.Fatal(err)
	}
}
