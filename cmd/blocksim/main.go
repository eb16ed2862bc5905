package main

import (
	"os"

	"github.com/nnsgmsone/damrey/logger"
)

func main() {
	log := logger.New(os.Stderr, "blocksim")

	err := newApp().Run(os.Args)
	if err != nil {
		log.Fatalf("fatal error: %s\n", err.Error())
	}
}
