package main

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/trezcool/sections/core"
	"github.com/trezcool/sections/core/access"
	"github.com/trezcool/sections/core/enrollment"
	"github.com/trezcool/sections/core/importer"
	"github.com/trezcool/sections/core/report"
	"github.com/trezcool/sections/core/roster"
	"github.com/trezcool/sections/services/identity"
	"github.com/trezcool/sections/storage/database"
)

var (
	isTerminalFunc = term.IsTerminal // mockable

	errHelp    = errors.New("help provided")
	errAborted = errors.New("aborted")
)

type commandLine struct {
	conf      *core.Config
	db        *sql.DB
	store     roster.Store
	logger    core.Logger
	issuer    *identity.TokenIssuer
	openSheet func(ctx context.Context, conf *core.Config, location string) (importer.Source, error)
	in        io.Reader
	out       io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS]                                - run a goose migration command (up, down, status, ...)")
	fmt.Fprintln(cli.out, "  import -type sections|enrollment -from FILE|URL       - import a spreadsheet (.csv, .xlsx or Google Sheets url)")
	fmt.Fprintln(cli.out, "  seed -file FILE                                       - load yaml fixtures")
	fmt.Fprintln(cli.out, "  export-rosters [-format csv|xlsx] [-out FILE]         - write the section rosters")
	fmt.Fprintln(cli.out, "  drop-candidates                                       - list students who should be dropped")
	fmt.Fprintln(cli.out, "  token -email EMAIL [-name NAME]                       - issue an api token")
	fmt.Fprintln(cli.out, "  reset [-yes]                                          - remove every section, user and attendance of the course")
}

// actor is the identity commands run as: an admin of the configured course.
func (cli *commandLine) actor() access.Actor {
	return access.Actor{
		Course: cli.conf.Course,
		User:   roster.User{Course: cli.conf.Course, Email: "admin@cli", Name: "Admin CLI", IsStaff: true, IsAdmin: true},
		Role:   access.Admin,
	}
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}
	ctx := context.Background()

	importCmd := flag.NewFlagSet("import", flag.ContinueOnError)
	importType := importCmd.String("type", "", "What the sheet holds: sections or enrollment.")
	importFrom := importCmd.String("from", "", "A .csv or .xlsx file, or a Google Sheets url.")

	seedCmd := flag.NewFlagSet("seed", flag.ContinueOnError)
	seedFile := seedCmd.String("file", "", "The yaml fixtures file.")

	exportCmd := flag.NewFlagSet("export-rosters", flag.ContinueOnError)
	exportFormat := exportCmd.String("format", "csv", "csv or xlsx.")
	exportOut := exportCmd.String("out", "", "Output file; stdout when empty.")

	tokenCmd := flag.NewFlagSet("token", flag.ContinueOnError)
	tokenEmail := tokenCmd.String("email", "", "The user's email.")
	tokenName := tokenCmd.String("name", "", "The user's display name.")

	resetCmd := flag.NewFlagSet("reset", flag.ContinueOnError)
	resetYes := resetCmd.Bool("yes", false, "Do not ask for confirmation.")

	for _, fs := range []*flag.FlagSet{importCmd, seedCmd, exportCmd, tokenCmd, resetCmd} {
		fs.SetOutput(cli.out)
	}

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return database.Migrate(ctx, cli.db, args[2], args[3:]...)

	case "import":
		if err := importCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *importFrom == "" || (*importType != "sections" && *importType != "enrollment") {
			importCmd.Usage()
			return errHelp
		}
		return cli.importSheet(ctx, *importType, *importFrom)

	case "seed":
		if err := seedCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *seedFile == "" {
			seedCmd.Usage()
			return errHelp
		}
		f, err := os.Open(*seedFile)
		if err != nil {
			return err
		}
		defer f.Close()
		return cli.seed(ctx, f)

	case "export-rosters":
		if err := exportCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *exportFormat != "csv" && *exportFormat != "xlsx" {
			exportCmd.Usage()
			return errHelp
		}
		return cli.exportRosters(ctx, *exportFormat, *exportOut)

	case "drop-candidates":
		emails, err := report.NewService(cli.store, cli.conf.Term).DropCandidates(ctx, cli.actor())
		if err != nil {
			return err
		}
		fmt.Fprintln(cli.out, report.DropCandidatesString(emails))
		return nil

	case "token":
		if err := tokenCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *tokenEmail == "" {
			tokenCmd.Usage()
			return errHelp
		}
		token, err := cli.issuer.GenerateToken(cli.issuer.Claims(*tokenEmail, *tokenName, cli.conf.Course))
		if err != nil {
			return err
		}
		fmt.Fprintln(cli.out, token)
		return nil

	case "reset":
		if err := resetCmd.Parse(args[2:]); err != nil {
			return err
		}
		if !*resetYes && !cli.confirm(fmt.Sprintf("Remove everything in course %q?", cli.conf.Course)) {
			return errAborted
		}
		return enrollment.NewService(cli.store, cli.logger).ResetCourse(ctx, cli.actor())

	default:
		cli.printUsage()
		return errHelp
	}
}

// confirm asks a yes/no question; without a terminal it assumes no.
func (cli *commandLine) confirm(question string) bool {
	if f, ok := cli.in.(*os.File); !ok || !isTerminalFunc(int(f.Fd())) {
		return false
	}
	fmt.Fprintf(cli.out, "%s [y/N] ", question)
	answer, _ := bufio.NewReader(cli.in).ReadString('\n')
	answer = strings.ToLower(core.CleanString(answer))
	return answer == "y" || answer == "yes"
}

func (cli *commandLine) importSheet(ctx context.Context, typ, location string) error {
	src, err := cli.openSheet(ctx, cli.conf, location)
	if err != nil {
		return err
	}
	svc := importer.NewService(cli.store, cli.logger, cli.conf.Term.ImportWeekStart)

	var count int
	if typ == "sections" {
		count, err = svc.ImportSectionsFrom(ctx, cli.actor(), src)
	} else {
		count, err = svc.ImportEnrollmentFrom(ctx, cli.actor(), src)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "imported %d %s rows\n", count, typ)
	return nil
}

func (cli *commandLine) exportRosters(ctx context.Context, format, out string) (err error) {
	rows, err := report.NewService(cli.store, cli.conf.Term).RosterRows(ctx, cli.actor())
	if err != nil {
		return err
	}
	w := cli.out
	if out != "" {
		f, cErr := os.Create(out)
		if cErr != nil {
			return cErr
		}
		defer func() {
			if cErr := f.Close(); cErr != nil && err == nil {
				err = fmt.Errorf("closing export file: %w", cErr)
			}
		}()
		w = f
	}
	if format == "xlsx" {
		return report.WriteRosterXLSX(w, rows)
	}
	return report.WriteRosterCSV(w, rows)
}
