package main

import (
	"log"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/digitme/digit/core"
	"github.com/digitme/digit/core/communication"
	"github.com/digitme/digit/core/progression"
	"github.com/digitme/digit/core/report"
	"github.com/digitme/digit/core/user"
	"github.com/digitme/digit/services/email"
	"github.com/digitme/digit/services/logger"
	"github.com/digitme/digit/services/sms"
	"github.com/digitme/digit/storage/database"
	"github.com/digitme/digit/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()
	std := log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(std, conf)
	defer logger.Close()

	// set up DB
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal("opening database", err)
	}
	defer db.Close()

	// set up services
	translator := core.NewTranslator()
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	user.LoadCommonPasswords(conf.WorkDir, logger)

	var mailer core.EmailService
	if conf.Debug {
		mailer = emailsvc.NewConsoleService(conf, std)
	} else {
		mailer = emailsvc.NewSendgridService(conf)
	}
	junebug, err := smssvc.NewJunebugClient(smssvc.OptionsFromConfig(conf.Junebug), logger)
	if err != nil {
		logger.Fatal("setting up sms client", err)
	}

	usrRepo := sqlxrepos.NewUserRepository(db)
	schoolRepo := sqlxrepos.NewSchoolRepository(db)
	engine, err := progression.NewEngine(schoolRepo, conf, logger)
	if err != nil {
		logger.Fatal("setting up grade up engine", err)
	}
	reports, err := report.NewService(schoolRepo, usrRepo, mailer, validate, conf, logger)
	if err != nil {
		logger.Fatal("setting up teacher reports", err)
	}

	// start CLI
	cli := commandLine{
		conf:    conf,
		logger:  logger,
		out:     os.Stdout,
		migrate: newMigrator(db.DB, conf.Database.Engine),
		usrRepo: usrRepo,
		usrSvc:  user.NewService(usrRepo, validate),
		engine:  engine,
		reports: reports,
		sms:     communication.NewService(sqlxrepos.NewCommunicationRepository(db), junebug, logger),
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			std.Printf("\nerror: %s\n", err)
		}
		logger.Close()
		os.Exit(1)
	}
}
