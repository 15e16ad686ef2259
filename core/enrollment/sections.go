package enrollment

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/sections/core"
	"github.com/trezcool/sections/core/access"
	"github.com/trezcool/sections/core/roster"
)

type NewSection struct {
	Type           string    `json:"type" validate:"required"`
	Description    string    `json:"description"`
	Capacity       int       `json:"capacity" validate:"gte=0"`
	CanSelfEnroll  bool      `json:"canSelfEnroll"`
	EnrollmentCode string    `json:"enrollmentCode"`
	StaffEmail     string    `json:"staffEmail" validate:"omitempty,email"`
	Tags           []string  `json:"tags"`
	Location       string    `json:"location"`
	StartTime      time.Time `json:"startTime" validate:"required"`
	EndTime        time.Time `json:"endTime" validate:"required"`
	CallLink       string    `json:"callLink"`
}

// CreateSection adds a section to the course. A staff email unknown to the course creates that staff user.
func (svc *Service) CreateSection(ctx context.Context, actor access.Actor, ns NewSection) (roster.Section, error) {
	if err := access.Check(actor, access.OpCreateSection); err != nil {
		return roster.Section{}, err
	}
	sec := roster.Section{
		Course:         actor.Course,
		Type:           core.ParseSectionType(ns.Type),
		Description:    core.CleanString(ns.Description),
		Capacity:       ns.Capacity,
		CanSelfEnroll:  ns.CanSelfEnroll,
		EnrollmentCode: core.CleanString(ns.EnrollmentCode),
		Tags:           cleanTags(ns.Tags),
		Location:       core.CleanString(ns.Location),
		StartTime:      ns.StartTime.UTC(),
		EndTime:        ns.EndTime.UTC(),
		CallLink:       core.CleanString(ns.CallLink),
	}
	if err := validateSection(sec); err != nil {
		return roster.Section{}, err
	}

	err := svc.store.Atomic(ctx, func(tx roster.Tx) error {
		if ns.StaffEmail != "" {
			staff, err := roster.GetOrCreateUser(ctx, tx, actor.Course, ns.StaffEmail, "", true)
			if err != nil {
				return err
			}
			sec.StaffID = staff.ID
		}
		var err error
		sec, err = tx.CreateSection(ctx, sec)
		return errors.Wrap(err, "creating section")
	})
	return sec, err
}

func (svc *Service) UpdateDescription(ctx context.Context, actor access.Actor, sectionID int, description string) (roster.Section, error) {
	return svc.updateSection(ctx, actor, access.OpUpdateDescription, sectionID, func(sec *roster.Section) error {
		sec.Description = core.CleanString(description)
		return nil
	})
}

func (svc *Service) UpdateCallLink(ctx context.Context, actor access.Actor, sectionID int, callLink string) (roster.Section, error) {
	return svc.updateSection(ctx, actor, access.OpUpdateCallLink, sectionID, func(sec *roster.Section) error {
		sec.CallLink = core.CleanString(callLink)
		return nil
	})
}

// UpdateEnrollmentCode sets the code; an empty code opens the section.
func (svc *Service) UpdateEnrollmentCode(ctx context.Context, actor access.Actor, sectionID int, code string) (roster.Section, error) {
	return svc.updateSection(ctx, actor, access.OpUpdateCode, sectionID, func(sec *roster.Section) error {
		sec.EnrollmentCode = core.CleanString(code)
		return nil
	})
}

func (svc *Service) UpdateLocation(ctx context.Context, actor access.Actor, sectionID int, location string) (roster.Section, error) {
	return svc.updateSection(ctx, actor, access.OpUpdateLocation, sectionID, func(sec *roster.Section) error {
		sec.Location = core.CleanString(location)
		return nil
	})
}

func (svc *Service) UpdateTime(ctx context.Context, actor access.Actor, sectionID int, start, end time.Time) (roster.Section, error) {
	return svc.updateSection(ctx, actor, access.OpUpdateTime, sectionID, func(sec *roster.Section) error {
		sec.StartTime, sec.EndTime = start.UTC(), end.UTC()
		return validateSection(*sec)
	})
}

func (svc *Service) UpdateTags(ctx context.Context, actor access.Actor, sectionID int, tags []string) (roster.Section, error) {
	return svc.updateSection(ctx, actor, access.OpUpdateTags, sectionID, func(sec *roster.Section) error {
		sec.Tags = cleanTags(tags)
		return nil
	})
}

// UpdateCapacity does not evict anyone when the new capacity is below the enrolled count.
func (svc *Service) UpdateCapacity(ctx context.Context, actor access.Actor, sectionID int, capacity int) (roster.Section, error) {
	return svc.updateSection(ctx, actor, access.OpUpdateCapacity, sectionID, func(sec *roster.Section) error {
		sec.Capacity = capacity
		return validateSection(*sec)
	})
}

func (svc *Service) UpdateSelfEnroll(ctx context.Context, actor access.Actor, sectionID int, canSelfEnroll bool) (roster.Section, error) {
	return svc.updateSection(ctx, actor, access.OpUpdateSelfEnroll, sectionID, func(sec *roster.Section) error {
		sec.CanSelfEnroll = canSelfEnroll
		return nil
	})
}

func (svc *Service) updateSection(
	ctx context.Context,
	actor access.Actor,
	op access.Operation,
	sectionID int,
	set func(sec *roster.Section) error,
) (roster.Section, error) {
	if err := access.Check(actor, op); err != nil {
		return roster.Section{}, err
	}
	var sec roster.Section
	err := svc.store.Atomic(ctx, func(tx roster.Tx) (err error) {
		if sec, err = roster.FindSection(ctx, tx, actor.Course, sectionID, true); err != nil {
			return err
		}
		if err = set(&sec); err != nil {
			return err
		}
		sec, err = tx.UpdateSection(ctx, sec)
		return errors.Wrap(err, "updating section")
	})
	return sec, err
}

// RemindTutors emails every tutor whose sections have no call link yet and returns how many were emailed.
func (svc *Service) RemindTutors(ctx context.Context, actor access.Actor, mailSvc core.EmailService, frontendURL string) (int, error) {
	if err := access.Check(actor, access.OpRemindTutors); err != nil {
		return 0, err
	}

	pending := make(map[int][]roster.Section)
	tutors := make(map[int]roster.User)
	err := svc.store.Atomic(ctx, func(tx roster.Tx) error {
		sections, err := tx.QuerySections(ctx, actor.Course, roster.SectionFilter{})
		if err != nil {
			return errors.Wrap(err, "querying sections")
		}
		roster.SortSections(sections)
		for _, sec := range sections {
			if !sec.HasStaff() || sec.CallLink != "" {
				continue
			}
			if _, ok := tutors[sec.StaffID]; !ok {
				usr, err := tx.GetUser(ctx, actor.Course, sec.StaffID, false)
				if err != nil {
					return errors.Wrap(err, "getting tutor")
				}
				tutors[sec.StaffID] = usr
			}
			pending[sec.StaffID] = append(pending[sec.StaffID], sec)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	messages := make([]*core.EmailMessage, 0, len(tutors))
	for id, tutor := range tutors {
		var body strings.Builder
		fmt.Fprintf(&body, "Hi %s,\n\nThe following sections do not have a call link yet:\n\n", tutor.Name)
		for _, sec := range pending[id] {
			fmt.Fprintf(&body, "  - %s at %s (%s)\n", sec.Type, sec.StartTime.Format(time.RFC1123), sec.Location)
		}
		fmt.Fprintf(&body, "\nPlease add one at %s.\n", frontendURL)
		messages = append(messages, &core.EmailMessage{
			To:      []mail.Address{{Name: tutor.Name, Address: tutor.Email}},
			Subject: "Set up your section call links",
			BodyStr: body.String(),
		})
	}
	if len(messages) > 0 {
		mailSvc.SendMessages(messages...)
		svc.logger.Info(fmt.Sprintf("reminded %d tutors to set up call links", len(messages)), actor.User)
	}
	return len(messages), nil
}

func validateSection(sec roster.Section) error {
	if sec.Type.IsZero() {
		return core.NewFailure(core.FailureInvalid, "Section type is required.")
	}
	if sec.Capacity < 0 {
		return core.NewFailure(core.FailureInvalid, "Capacity cannot be negative.")
	}
	if !sec.EndTime.After(sec.StartTime) {
		return core.NewFailure(core.FailureInvalid, "Section must end after it starts.")
	}
	return nil
}

func cleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		// commas are the stored separator
		out = append(out, roster.SplitTags(tag)...)
	}
	return out
}
