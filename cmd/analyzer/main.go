package main

import (
	"context"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/itayaharoni2/analyzer/driver"
)

func main() {
	log.SetOutput(os.Stderr)
	log.SetFlags(log.LstdFlags)

	// Optional .env in the working directory, so settings like
	// ANALYZER_NAMESPACE_ISOLATION can live in a dotfile.
	if err := godotenv.Load(); err == nil {
		log.Println("loaded .env")
	}

	os.Exit(driver.Run(context.Background(), os.Args, os.Stdin, os.Stdout, os.Stderr))
}
