package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"storefront/internal/config"
	"storefront/internal/db"
	"storefront/internal/importer"
	tokenrepo "storefront/internal/repository/token"
	userrepo "storefront/internal/repository/user"
	usersvc "storefront/internal/service/user"
)

func main() {
	var filePath string
	flag.StringVar(&filePath, "file", "", "Path to accounts CSV (username,password[,role])")
	flag.Parse()

	if filePath == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.FromEnv()
	ctx := context.Background()

	pool, err := db.Connect(ctx, cfg.DBConnString)
	if err != nil {
		log.Fatalf("connect db: %v", err)
	}
	defer pool.Close()

	f, err := os.Open(filePath)
	if err != nil {
		log.Fatalf("open file: %v", err)
	}
	defer f.Close()

	users := usersvc.New(userrepo.NewPostgres(pool, nil), tokenrepo.NewPostgres(pool))
	imp := importer.NewCSVImporter(f, users)

	start := time.Now()
	res, err := imp.Run(ctx)
	if err != nil {
		log.Fatalf("import failed after %d account(s): %v", res.Created, err)
	}

	fmt.Printf("Imported %d accounts (%d already present) in %s\n", res.Created, res.Skipped, time.Since(start).Truncate(time.Millisecond))
}
