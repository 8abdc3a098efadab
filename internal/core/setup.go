package core

import (
	"log"

	"github.com/PlaceBound/PB-Backend/internal/db"
)

func Init() {
	// Ensure the core schema exists first
	if err := db.EnsureSchema(db.DB, "core"); err != nil {
		log.Fatal("Failed to create core schema: ", err)
	}

	if err := db.DB.AutoMigrate(&User{}, &Area{}, &VisitRecord{}); err != nil {
		log.Fatal("Failed to auto-migrate tables", err)
	}
}
