package main

import (
	"log"
	"net/http"

	"github.com/joho/godotenv"

	"photolog/internal/config"
	"photolog/internal/db"
	"photolog/internal/server"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	database, err := db.Open(cfg.DB, "migrations")
	if err != nil {
		log.Fatal(err)
	}
	srv, err := server.New(database, "web/templates")
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("listening on :%s", cfg.Port)
	if err := http.ListenAndServe(":"+cfg.Port, srv); err != nil {
		log.Fatal(err)
	}
}
