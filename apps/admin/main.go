package main

import (
	"log"
	"os"

	"github.com/trezcool/sections/core"
	"github.com/trezcool/sections/services/identity"
	logsvc "github.com/trezcool/sections/services/logger"
	"github.com/trezcool/sections/services/sheets"
	"github.com/trezcool/sections/storage/database"
	sqlxrepos "github.com/trezcool/sections/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()

	logger := logsvc.NewRollbarLogger(log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)
	logger.Enable(!conf.Debug)

	// set up DB
	if err := database.CreateIfNotExist(conf); err != nil {
		logger.Fatal("creating database", err)
	}
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal("opening database", err)
	}

	// start CLI
	cli := commandLine{
		conf:      conf,
		db:        db.DB,
		store:     sqlxrepos.NewStore(db, logger),
		logger:    logger,
		issuer:    identity.NewTokenIssuer(conf),
		openSheet: sheets.Open,
		in:        os.Stdin,
		out:       os.Stdout,
	}
	err = cli.run(os.Args)
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			log.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}
