package core

import (
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var emailSeparator = regexp.MustCompile(`[\s,]+`)

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// ParseEmails splits a pasted list of emails on commas and whitespace.
// Blank entries are dropped and duplicates are kept only once, in order.
func ParseEmails(s string) []string {
	seen := make(map[string]bool)
	emails := make([]string, 0)
	for _, email := range emailSeparator.Split(s, -1) {
		email = CleanString(email, true /* lower */)
		if email == "" || seen[email] {
			continue
		}
		seen[email] = true
		emails = append(emails, email)
	}
	return emails
}

// Getwd tries to find the project root, the closest parent directory holding a go.mod.
// go-test changes the working directory to the test package being run during tests.
func Getwd() string {
	wd, err := os.Getwd()
	if err != nil {
		log.Fatal(err)
	}
	currDir := wd
	for {
		if fi, err := os.Stat(filepath.Join(currDir, "go.mod")); err == nil && !fi.IsDir() {
			return currDir
		}
		newDir := filepath.Dir(currDir)
		if newDir == string(os.PathSeparator) || newDir == currDir {
			return wd
		}
		currDir = newDir
	}
}
