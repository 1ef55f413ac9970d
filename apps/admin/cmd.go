package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/digitme/digit/core"
	"github.com/digitme/digit/core/progression"
	"github.com/digitme/digit/core/user"
	"github.com/digitme/digit/services/scheduler"
)

var (
	readPasswordFunc = term.ReadPassword   // mockable
	notifyContext    = signal.NotifyContext // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	conf    *core.Config
	logger  core.Logger
	out     io.Writer
	migrate migrator
	usrRepo user.Repository
	usrSvc  *user.Service
	engine  scheduler.GradeUpper
	reports scheduler.ReportSender
	sms     scheduler.QueueDrainer
}

func (cli *commandLine) printUsage() {
	_, _ = fmt.Fprintln(cli.out, "Usage:")
	_, _ = fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS] - run a goose migration command (up, down, status, ...)")
	_, _ = fmt.Fprintln(cli.out, "  gradeup [-cycle YEAR] - promote learners to their next grade")
	_, _ = fmt.Fprintln(cli.out, "  teacherreport - email the monthly reports to teachers")
	_, _ = fmt.Fprintln(cli.out, "  sendsms - send the due queued text messages")
	_, _ = fmt.Fprintln(cli.out, "  schedule - run the batch jobs on their schedules until interrupted")
	_, _ = fmt.Fprintln(cli.out, "  adduser -name NAME -username USERNAME -email EMAIL [-roles ROLE,...] - create a user")
	_, _ = fmt.Fprintln(cli.out, "  resetpassword -username USERNAME|EMAIL - reset user's password")
}

func (cli *commandLine) flagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(cli.out)
	return fs
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}
	ctx := context.Background()

	gradeUpCmd := cli.flagSet("gradeup")
	gradeUpCycle := gradeUpCmd.Int("cycle", progression.CurrentCycle(), "The grade-up cycle, defaults to the current year.")

	addUserCmd := cli.flagSet("adduser")
	addUserName := addUserCmd.String("name", "", "The user's full name.")
	addUserUname := addUserCmd.String("username", "", "The user's username. The password will be prompted next.")
	addUserEmail := addUserCmd.String("email", "", "The user's email.")
	addUserRoles := addUserCmd.String("roles", "", "Comma separated roles, eg: admin:,teacher:")

	resetPasswordCmd := cli.flagSet("resetpassword")
	resetPasswordUname := resetPasswordCmd.String("username", "", "The user's username or email. The password will be prompted next.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "gradeup":
		if err := gradeUpCmd.Parse(args[2:]); err != nil {
			return err
		}
		res, err := cli.engine.Run(ctx, *gradeUpCycle)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cli.out, "cycle %d: %d promoted, %d graduated, %d enrolled, %d skipped\n",
			res.Cycle, res.Promoted, res.Graduated, res.Enrolled, res.Skipped)
		return nil

	case "teacherreport":
		res, err := cli.reports.SendTeacherReports(ctx)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cli.out, "%d teachers emailed, %d failed reports, %d failed emails\n",
			res.Emailed, len(res.FailedReports), len(res.FailedEmails))
		return nil

	case "sendsms":
		n, err := cli.sms.DrainQueue(ctx)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cli.out, "%d messages sent\n", n)
		return nil

	case "schedule":
		return cli.schedule(ctx)

	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addUserName == "" || (*addUserUname == "" && *addUserEmail == "") {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := cli.readPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			addUserCmd.Usage()
			return errHelp
		}
		var roles []string
		if *addUserRoles != "" {
			roles = strings.Split(*addUserRoles, ",")
		}
		return cli.addUser(ctx, user.NewUser{
			Name:            *addUserName,
			Username:        *addUserUname,
			Email:           *addUserEmail,
			Password:        pwd,
			PasswordConfirm: pwd,
			Roles:           roles,
		})

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordUname == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := cli.readPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.resetPassword(ctx, *resetPasswordUname, pwd)

	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) readPassword() (string, error) {
	_, _ = fmt.Fprint(cli.out, "Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	_, _ = fmt.Fprintln(cli.out)
	return string(pwd), err
}

// schedule blocks until SIGINT or SIGTERM, then waits for running jobs.
func (cli *commandLine) schedule(ctx context.Context) error {
	s, err := scheduler.New(cli.logger, scheduler.Jobs(cli.conf.Schedule, cli.engine, cli.reports, cli.sms)...)
	if err != nil {
		return err
	}
	sigCtx, stop := notifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s.Start()
	cli.logger.Info(fmt.Sprintf("scheduler started with %d jobs", s.Scheduled()))
	<-sigCtx.Done()

	timeout := cli.conf.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = time.Minute
	}
	stopCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	cli.logger.Info("scheduler stopping")
	return s.Stop(stopCtx)
}
