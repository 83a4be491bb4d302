package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	migrate "github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joho/godotenv"
)

func main() {
	source := flag.String("source", "file://migrations", "migration source URL")
	flag.Parse()

	command := flag.Arg(0)
	if command == "" {
		command = "up"
	}

	_ = godotenv.Load()
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		fatal(errors.New("DATABASE_URL is required"))
	}

	m, err := migrate.New(*source, databaseURL)
	if err != nil {
		fatal(err)
	}
	defer m.Close()

	switch command {
	case "up":
		err = m.Up()
	case "down":
		err = m.Steps(-1)
	case "drop":
		err = m.Drop()
	case "version":
		var version uint
		var dirty bool
		version, dirty, err = m.Version()
		if err == nil {
			fmt.Printf("version=%d dirty=%v\n", version, dirty)
		}
	default:
		fatal(fmt.Errorf("unknown command %q (want up, down, drop or version)", command))
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		fatal(err)
	}
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "migrate:", err)
	os.Exit(1)
}
