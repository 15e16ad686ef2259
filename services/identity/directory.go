package identity

import (
	"github.com/trezcool/sections/core"
)

// Directory answers whether an email belongs to the course staff or admins.
type Directory struct {
	staff  map[string]bool
	admins map[string]bool
}

func NewDirectory(conf *core.Config) *Directory {
	return NewStaticDirectory(conf.StaffEmails, conf.AdminEmails)
}

func NewStaticDirectory(staff, admins []string) *Directory {
	dir := &Directory{staff: make(map[string]bool), admins: make(map[string]bool)}
	for _, email := range staff {
		dir.staff[core.CleanString(email, true /* lower */)] = true
	}
	for _, email := range admins {
		dir.admins[core.CleanString(email, true /* lower */)] = true
	}
	return dir
}

// IsStaff is true for admins too.
func (dir *Directory) IsStaff(email string) bool {
	email = core.CleanString(email, true /* lower */)
	return dir.staff[email] || dir.admins[email]
}

func (dir *Directory) IsAdmin(email string) bool {
	return dir.admins[core.CleanString(email, true /* lower */)]
}
