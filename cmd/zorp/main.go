package main

import (
	"log"

	"github.com/rustport/zorp/internal/app"
)

func main() {
	if err := app.New().Run(); err != nil {
		log.Fatalf("❌ zorp failed to start: %v", err)
	}
}
