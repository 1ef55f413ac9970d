package dig_container

import (
	"fmt"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/digitme/digit/apps/api/echo"
	"github.com/digitme/digit/core"
	"github.com/digitme/digit/core/admin"
	"github.com/digitme/digit/core/communication"
	"github.com/digitme/digit/core/progression"
	"github.com/digitme/digit/core/report"
	"github.com/digitme/digit/core/school"
	"github.com/digitme/digit/core/stats"
	"github.com/digitme/digit/core/user"
	emailsvc "github.com/digitme/digit/services/email"
	logsvc "github.com/digitme/digit/services/logger"
	"github.com/digitme/digit/services/scheduler"
	smssvc "github.com/digitme/digit/services/sms"
	"github.com/digitme/digit/storage/database"
	sqlxrepos "github.com/digitme/digit/storage/database/sqlx"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

type serverParams struct {
	dig.In
	Conf       *core.Config
	Logger     core.Logger
	Validate   *validator.Validate
	Translator ut.Translator
	UserSvc    *user.Service
	SchoolSvc  *school.Service
	StatsSvc   *stats.Service
	SchoolRepo school.Repository
	Actions    *admin.Actions
	Jobs       *scheduler.Scheduler
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags)
	return logsvc.NewRollbarLogger(stdLogger, conf)
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	return logsvc.NewRollbarLogger(stdLogger, conf)
}

func newDB(conf *core.Config, loggerParam DBLoggerParam) *sqlx.DB {
	setUp := func() (*sqlx.DB, error) {
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(db, conf.Database.Engine); err != nil {
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return db
}

func newEmailService(conf *core.Config) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf, log.New(os.Stdout, "EMAIL : ", log.LstdFlags))
	}
	return emailsvc.NewSendgridService(conf)
}

func newSMSClient(conf *core.Config, logger core.Logger) (communication.SMSClient, error) {
	return smssvc.NewJunebugClient(smssvc.OptionsFromConfig(conf.Junebug), logger)
}

func newValidator(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	return validate
}

func newGradeUpEngine(repo school.Repository, conf *core.Config, logger core.Logger) (*progression.Engine, error) {
	return progression.NewEngine(repo, conf, logger)
}

func newReportService(
	repo school.Repository, users user.Repository, mailer core.EmailService,
	validate *validator.Validate, conf *core.Config, logger core.Logger,
) (*report.Service, error) {
	return report.NewService(repo, users, mailer, validate, conf, logger)
}

func newStatsService(repo school.Repository) (*stats.Service, error) {
	return stats.NewService(repo)
}

func newAdminActions(svc *school.Service, repo school.Repository, logger core.Logger) *admin.Actions {
	return admin.NewActions(svc, repo, logger)
}

func newScheduler(
	conf *core.Config, logger core.Logger,
	engine *progression.Engine, reports *report.Service, comms *communication.Service,
) (*scheduler.Scheduler, error) {
	return scheduler.New(logger, scheduler.Jobs(conf.Schedule, engine, reports, comms)...)
}

func newServer(p serverParams) *echoapi.Server {
	return echoapi.NewServer(&echoapi.Options{
		Conf:       p.Conf,
		Logger:     p.Logger,
		Validate:   p.Validate,
		Translator: p.Translator,
		UserSvc:    p.UserSvc,
		SchoolSvc:  p.SchoolSvc,
		StatsSvc:   p.StatsSvc,
		Learners:   p.SchoolRepo,
		Filters:    admin.Filters(p.SchoolRepo),
		Actions:    p.Actions,
		Jobs:       p.Jobs,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(newEmailService))
	must(c.Provide(newSMSClient))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(newValidator))

	// storage
	must(c.Provide(sqlxrepos.NewUserRepository))
	must(c.Provide(sqlxrepos.NewSchoolRepository))
	must(c.Provide(sqlxrepos.NewCommunicationRepository))

	// services
	must(c.Provide(user.NewService))
	must(c.Provide(school.NewService))
	must(c.Provide(communication.NewService))
	must(c.Provide(newStatsService))
	must(c.Provide(newGradeUpEngine))
	must(c.Provide(newReportService))
	must(c.Provide(newAdminActions))
	must(c.Provide(newScheduler))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
