package main

import (
	"flag"
	"fmt"
	"log"
	"net/url"
	"strings"

	"mcs_platform/cmd/migration/versions"

	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/caarlos0/env/v10"
)

type migrationEnv struct {
	DatabaseUri string `env:"DATABASE_URI,required"`
}

func postgresDsn(uri string) string {
	parts, err := url.Parse(uri)
	if err != nil {
		log.Fatalf("error parsing db uri: %v", err)
	}
	pwd, _ := parts.User.Password()
	dbname := strings.TrimPrefix(parts.Path, "/")
	return fmt.Sprintf("host=%v user=%v password=%v dbname=%v port=%v", parts.Hostname(), parts.User.Username(), pwd, dbname, parts.Port())
}

func migrations() []*gormigrate.Migration {
	return []*gormigrate.Migration{
		{
			ID:       "0_initial_migration",
			Migrate:  versions.Migration_0_initial_migration,
			Rollback: versions.Rollback_0_initial_migration,
		},
	}
}

func main() {
	envFile := flag.String("env", "", "File to load env variables from.")
	rollbackTo := flag.String("rollback_to", "", "If specified, rolls the schema back to the given migration id instead of migrating forward.")

	flag.Parse()

	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil {
			log.Fatalf("error loading .env file '%v': %v", *envFile, err)
		}
	}

	var cfg migrationEnv
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("error parsing environment: %v", err)
	}

	db, err := gorm.Open(postgres.Open(postgresDsn(cfg.DatabaseUri)), &gorm.Config{})
	if err != nil {
		log.Fatalf("error opening database connection: %v", err)
	}

	m := gormigrate.New(db, gormigrate.DefaultOptions, migrations())

	if *rollbackTo != "" {
		if err := m.RollbackTo(*rollbackTo); err != nil {
			log.Fatalf("rollback failed: %v", err)
		}
		log.Printf("rolled back to %v", *rollbackTo)
		return
	}

	if err := m.Migrate(); err != nil {
		log.Fatalf("migration failed: %v", err)
	}
	log.Println("migrations applied successfully")
}
