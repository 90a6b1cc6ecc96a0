package main

import (
	"log"
	"os"

	"github.com/jmoiron/sqlx"

	"github.com/tmalinga/vikundi/core"
	"github.com/tmalinga/vikundi/storage/database"
	sqlxrepos "github.com/tmalinga/vikundi/storage/database/sqlx"
)

var logger *log.Logger // todo: logger service

func main() {
	defer os.Exit(0)

	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	conf := core.NewConfig()

	// set up DB
	sdb, err := database.Open(conf)
	errAndDie(err)
	defer sdb.Close()
	errAndDie(sdb.Ping())
	db := sqlx.NewDb(sdb, "postgres")

	// start CLI
	cli := commandLine{
		db:       sdb,
		usrRepo:  sqlxrepos.NewUserRepository(db),
		grpRepo:  sqlxrepos.NewGroupRepository(db),
		sessRepo: sqlxrepos.NewSessionRepository(db),
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
