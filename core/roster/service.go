package roster

import (
	"context"
	"sort"

	"github.com/pkg/errors"

	"github.com/trezcool/sections/core"
)

// GetOrCreateUser finds the user of the course by email, or creates one with the given name and staff flag.
// An empty name falls back to the email.
func GetOrCreateUser(ctx context.Context, repo UserRepository, course, email, name string, isStaff bool) (User, error) {
	email = core.CleanString(email, true /* lower */)
	usr, err := repo.GetUserByEmail(ctx, course, email)
	if err == nil {
		return usr, nil
	}
	if errors.Cause(err) != ErrUserNotFound {
		return User{}, errors.Wrap(err, "finding user by email")
	}
	if name = core.CleanString(name); name == "" {
		name = email
	}
	usr, err = repo.CreateUser(ctx, User{Course: course, Email: email, Name: name, IsStaff: isStaff})
	return usr, errors.Wrap(err, "creating user")
}

// SortSections orders sections by type, start time, location and id.
func SortSections(sections []Section) {
	sort.SliceStable(sections, func(i, j int) bool {
		a, b := sections[i], sections[j]
		if a.Type.String() != b.Type.String() {
			return a.Type.String() < b.Type.String()
		}
		if !a.StartTime.Equal(b.StartTime) {
			return a.StartTime.Before(b.StartTime)
		}
		if a.Location != b.Location {
			return a.Location < b.Location
		}
		return a.ID < b.ID
	})
}

// FindSection is GetSection with a missing section reported as a NotFound failure.
func FindSection(ctx context.Context, repo SectionRepository, course string, id int, forUpdate bool) (Section, error) {
	sec, err := repo.GetSection(ctx, course, id, forUpdate)
	if err != nil {
		if errors.Cause(err) == ErrSectionNotFound {
			return Section{}, core.NewFailure(core.FailureNotFound, "Section %d does not exist.", id)
		}
		return Section{}, errors.Wrap(err, "getting section")
	}
	return sec, nil
}

// FindStudent looks a student up by email, reporting a missing one as an UnknownStudent failure.
func FindStudent(ctx context.Context, repo UserRepository, course, email string) (User, error) {
	email = core.CleanString(email, true /* lower */)
	usr, err := repo.GetUserByEmail(ctx, course, email)
	if err != nil {
		if errors.Cause(err) == ErrUserNotFound {
			return User{}, core.NewFailure(core.FailureUnknownStudent, "Student %s is not enrolled", email)
		}
		return User{}, errors.Wrap(err, "finding user by email")
	}
	return usr, nil
}

// SyncLogin resolves the user behind an authenticated identity, creating it on first login.
// Later logins refresh the display name and the staff and admin flags.
func SyncLogin(ctx context.Context, repo UserRepository, course, email, name string, isStaff, isAdmin bool) (User, error) {
	usr, err := GetOrCreateUser(ctx, repo, course, email, name, isStaff)
	if err != nil {
		return User{}, err
	}
	upd := usr
	if name = core.CleanString(name); name != "" {
		upd.Name = name
	}
	upd.IsStaff = isStaff
	upd.IsAdmin = isAdmin
	if upd == usr {
		return usr, nil
	}
	usr, err = repo.UpdateUser(ctx, upd)
	return usr, errors.Wrap(err, "refreshing user")
}
