package main

import (
	"context"
	"fmt"
	"io"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/trezcool/sections/core"
	"github.com/trezcool/sections/core/enrollment"
	"github.com/trezcool/sections/core/importer"
	"github.com/trezcool/sections/core/policy"
	"github.com/trezcool/sections/core/roster"
)

type (
	// fixtures is the seed file layout. Section times use the import format: a day code and a clock time.
	fixtures struct {
		Config   map[string]bool  `yaml:"config"`
		Message  *string          `yaml:"message"`
		Staff    []fixtureUser    `yaml:"staff"`
		Students []fixtureUser    `yaml:"students"`
		Sections []fixtureSection `yaml:"sections"`
	}

	fixtureUser struct {
		Email string `yaml:"email"`
		Name  string `yaml:"name"`
		Admin bool   `yaml:"admin"`
	}

	fixtureSection struct {
		Type           string   `yaml:"type"`
		Description    string   `yaml:"description"`
		Capacity       int      `yaml:"capacity"`
		CanSelfEnroll  bool     `yaml:"canSelfEnroll"`
		EnrollmentCode string   `yaml:"enrollmentCode"`
		Staff          string   `yaml:"staff"`
		Tags           []string `yaml:"tags"`
		Location       string   `yaml:"location"`
		Day            string   `yaml:"day"`
		Start          string   `yaml:"start"`
		End            string   `yaml:"end"`
		CallLink       string   `yaml:"callLink"`
		Students       []string `yaml:"students"`
	}
)

// seed loads fixtures in one transaction: users first, then sections and their students.
func (cli *commandLine) seed(ctx context.Context, r io.Reader) error {
	var fx fixtures
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&fx); err != nil {
		return errors.Wrap(err, "decoding fixtures")
	}
	course := cli.conf.Course
	weekStart := cli.conf.Term.ImportWeekStart

	var sections int
	err := cli.store.Atomic(ctx, func(tx roster.Tx) error {
		if len(fx.Config) > 0 || fx.Message != nil {
			if _, err := policy.Set(ctx, tx, course, policy.Update{Toggles: fx.Config, Message: fx.Message}); err != nil {
				return err
			}
		}
		for _, u := range fx.Staff {
			if _, err := roster.SyncLogin(ctx, tx, course, u.Email, u.Name, true, u.Admin); err != nil {
				return err
			}
		}
		for _, u := range fx.Students {
			if _, err := roster.GetOrCreateUser(ctx, tx, course, u.Email, u.Name, false); err != nil {
				return err
			}
		}

		for i, fs := range fx.Sections {
			start, err := importer.ParseTime(weekStart, fs.Day, fs.Start)
			if err != nil {
				return errors.Wrapf(err, "section %d", i)
			}
			end, err := importer.ParseTime(weekStart, fs.Day, fs.End)
			if err != nil {
				return errors.Wrapf(err, "section %d", i)
			}
			sec := roster.Section{
				Course:         course,
				Type:           core.ParseSectionType(fs.Type),
				Description:    fs.Description,
				Capacity:       fs.Capacity,
				CanSelfEnroll:  fs.CanSelfEnroll,
				EnrollmentCode: fs.EnrollmentCode,
				Tags:           fs.Tags,
				Location:       fs.Location,
				StartTime:      start.UTC(),
				EndTime:        end.UTC(),
				CallLink:       fs.CallLink,
			}
			if sec.Tags == nil {
				sec.Tags = []string{}
			}
			if fs.Staff != "" {
				staff, err := roster.GetOrCreateUser(ctx, tx, course, fs.Staff, "", true)
				if err != nil {
					return err
				}
				sec.StaffID = staff.ID
			}
			if sec, err = tx.CreateSection(ctx, sec); err != nil {
				return errors.Wrapf(err, "creating section %d", i)
			}
			for _, email := range fs.Students {
				usr, err := roster.GetOrCreateUser(ctx, tx, course, email, "", false)
				if err != nil {
					return err
				}
				if err = enrollment.Place(ctx, tx, course, usr.ID, sec); err != nil {
					return errors.Wrapf(err, "placing %s", email)
				}
			}
			sections++
		}
		return nil
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "seeded %d staff, %d students, %d sections\n", len(fx.Staff), len(fx.Students), sections)
	return nil
}
