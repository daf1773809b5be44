package main

import (
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"strings"

	"mcs_platform/monitor/auth"
	"mcs_platform/monitor/schema"

	"github.com/caarlos0/env/v10"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Seeding is idempotent, entries already present by name/username are left
// untouched so the command can run on every deploy.

type seedFile struct {
	Roles []struct {
		Name        string `yaml:"name"`
		Description string `yaml:"description"`
	} `yaml:"roles"`

	Users []struct {
		Username  string   `yaml:"username"`
		Email     string   `yaml:"email"`
		Password  string   `yaml:"password"`
		FirstName string   `yaml:"first_name"`
		LastName  string   `yaml:"last_name"`
		Roles     []string `yaml:"roles"`
	} `yaml:"users"`

	Sites []struct {
		Name        string `yaml:"name"`
		Location    string `yaml:"location"`
		Description string `yaml:"description"`
		Zones       []struct {
			Name        string `yaml:"name"`
			Description string `yaml:"description"`
		} `yaml:"zones"`
	} `yaml:"sites"`
}

type seedEnv struct {
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

func seedRoles(txn *gorm.DB, data seedFile) (map[string]uuid.UUID, error) {
	roleIds := map[string]uuid.UUID{}
	for _, entry := range data.Roles {
		role := schema.Role{Name: entry.Name}
		result := txn.Where(&role).Attrs(schema.Role{Id: uuid.New(), Description: entry.Description}).FirstOrCreate(&role)
		if result.Error != nil {
			return nil, fmt.Errorf("error seeding role %v: %w", entry.Name, result.Error)
		}
		roleIds[entry.Name] = role.Id
	}
	return roleIds, nil
}

func seedUsers(txn *gorm.DB, data seedFile, roleIds map[string]uuid.UUID) error {
	for _, entry := range data.Users {
		hashedPwd, err := auth.HashPassword(entry.Password)
		if err != nil {
			return fmt.Errorf("error hashing password for user %v: %w", entry.Username, err)
		}

		user := schema.User{Username: entry.Username}
		result := txn.Where(&user).Attrs(schema.User{
			Id:        uuid.New(),
			Email:     entry.Email,
			Password:  hashedPwd,
			FirstName: entry.FirstName,
			LastName:  entry.LastName,
			Status:    schema.UserActive,
		}).FirstOrCreate(&user)
		if result.Error != nil {
			return fmt.Errorf("error seeding user %v: %w", entry.Username, result.Error)
		}

		for _, roleName := range entry.Roles {
			roleId, ok := roleIds[roleName]
			if !ok {
				return fmt.Errorf("user %v references unknown role %v", entry.Username, roleName)
			}
			assignment := schema.UserRole{UserId: user.Id, RoleId: roleId}
			if result := txn.Where(&assignment).FirstOrCreate(&assignment); result.Error != nil {
				return fmt.Errorf("error assigning role %v to user %v: %w", roleName, entry.Username, result.Error)
			}
		}
	}
	return nil
}

func seedSites(txn *gorm.DB, data seedFile) error {
	for _, entry := range data.Sites {
		site := schema.Site{Name: entry.Name}
		result := txn.Where(&site).Attrs(schema.Site{
			Id:          uuid.New(),
			Location:    entry.Location,
			Description: entry.Description,
			Status:      "Active",
		}).FirstOrCreate(&site)
		if result.Error != nil {
			return fmt.Errorf("error seeding site %v: %w", entry.Name, result.Error)
		}

		for _, zoneEntry := range entry.Zones {
			zone := schema.Zone{Name: zoneEntry.Name, SiteId: site.Id}
			result := txn.Where(&zone).Attrs(schema.Zone{
				Id:          uuid.New(),
				Description: zoneEntry.Description,
				Status:      "Active",
			}).FirstOrCreate(&zone)
			if result.Error != nil {
				return fmt.Errorf("error seeding zone %v: %w", zoneEntry.Name, result.Error)
			}
		}
	}
	return nil
}

func main() {
	envFile := flag.String("env", "", "File to load env variables from.")
	seedPath := flag.String("seed", "seed.yaml", "Path to the yaml seed data file.")

	flag.Parse()

	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil {
			log.Fatalf("error loading .env file '%v': %v", *envFile, err)
		}
	}

	var cfg seedEnv
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("error parsing environment: %v", err)
	}

	content, err := os.ReadFile(*seedPath)
	if err != nil {
		log.Fatalf("error reading seed file '%v': %v", *seedPath, err)
	}

	var data seedFile
	if err := yaml.Unmarshal(content, &data); err != nil {
		log.Fatalf("error parsing seed file: %v", err)
	}

	db, err := gorm.Open(postgres.Open(postgresDsn(cfg.DatabaseUri)), &gorm.Config{})
	if err != nil {
		log.Fatalf("error opening database connection: %v", err)
	}

	err = db.Transaction(func(txn *gorm.DB) error {
		roleIds, err := seedRoles(txn, data)
		if err != nil {
			return err
		}
		if err := seedUsers(txn, data, roleIds); err != nil {
			return err
		}
		return seedSites(txn, data)
	})
	if err != nil {
		log.Fatalf("seeding failed: %v", err)
	}

	log.Println("seed data applied successfully")
}
