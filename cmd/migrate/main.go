package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

const usage = `Usage: migrate [flags] <command>

Commands:
  up         apply pending migrations (all, or -steps N)
  down       roll back migrations (all, or -steps N)
  force <v>  mark the schema as version v without running anything
  version    print the current schema version

Flags:
`

func main() {
	var (
		steps int
		dbURL string
		dir   string
	)

	flag.IntVar(&steps, "steps", 0, "limit up/down to N migrations (0 applies everything)")
	flag.StringVar(&dbURL, "db", "", "database URL, defaults to $DATABASE_URL")
	flag.StringVar(&dir, "path", "migrations", "directory holding the .sql migration files")
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}
	command := flag.Arg(0)

	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL")
	}
	if dbURL == "" {
		log.Fatal("no database URL: pass -db or set DATABASE_URL")
	}

	m, err := migrate.New("file://"+dir, dbURL)
	if err != nil {
		log.Fatalf("migrate init: %v", err)
	}
	defer m.Close()

	switch command {
	case "up":
		err = apply(m, steps, false)
	case "down":
		err = apply(m, steps, true)
	case "force":
		if flag.NArg() < 2 {
			log.Fatal("force needs a version argument")
		}
		v, perr := strconv.Atoi(flag.Arg(1))
		if perr != nil {
			log.Fatalf("force: bad version %q", flag.Arg(1))
		}
		err = m.Force(v)
	case "version":
		v, dirty, verr := m.Version()
		if verr != nil {
			log.Fatalf("version: %v", verr)
		}
		fmt.Printf("schema version %d (dirty=%v)\n", v, dirty)
		return
	default:
		log.Fatalf("unknown command %q (want up, down, force or version)", command)
	}

	if err != nil && err != migrate.ErrNoChange {
		log.Fatalf("%s: %v", command, err)
	}

	v, dirty, _ := m.Version()
	if err == migrate.ErrNoChange {
		fmt.Printf("nothing to do, schema version %d\n", v)
		return
	}
	fmt.Printf("done, schema version %d (dirty=%v)\n", v, dirty)
}

// apply runs steps migrations in the given direction; steps == 0 means
// everything.
func apply(m *migrate.Migrate, steps int, down bool) error {
	if steps > 0 {
		if down {
			return m.Steps(-steps)
		}
		return m.Steps(steps)
	}
	if down {
		return m.Down()
	}
	return m.Up()
}
