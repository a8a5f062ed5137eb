package main

import (
	"log"

	_ "go.uber.org/automaxprocs"

	"infinity_stones/internal/app"
)

func main() {
	a := app.NewApp()
	if err := a.Run(); err != nil {
		log.Fatalf("app stopped: %v", err)
	}
}
