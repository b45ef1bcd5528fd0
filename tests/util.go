package testutil

import (
	"log"
	"os"
	"testing"
	"time"

	"github.com/trezcool/kelasi/core"
	"github.com/trezcool/kelasi/core/fiche"
	"github.com/trezcool/kelasi/core/user"
)

func NewTestConfig() *core.Config {
	return &core.Config{
		AppName:         "Kelasi",
		Env:             "TEST",
		TestMode:        true,
		Debug:           true,
		SecretKey:       "secret",
		FrontendBaseURL: "http://localhost:3000",
		DefaultFromName: "Kelasi",
		DefaultFromAddr: "noreply@test.local",
		SendNotifEmails: true,
		Server: core.ServerConfig{
			JWTExpirationDelta:        10 * time.Minute,
			JWTRefreshExpirationDelta: 5 * time.Minute,
		},
		Validation: core.ValidationConfig{
			MinScore:     100,
			RecentWindow: 7 * 24 * time.Hour,
			TemplateID:   "default",
		},
	}
}

// NewTestLogger logs to stderr and never reports anywhere.
func NewTestLogger() core.Logger {
	return stdLogger{std: log.New(os.Stderr, "test ", log.LstdFlags)}
}

type stdLogger struct {
	std *log.Logger
}

var _ core.Logger = (*stdLogger)(nil)

func (l stdLogger) Enable(bool) {}

func (l stdLogger) print(msg string, args []interface{}) {
	l.std.Println(msg)
	for _, arg := range args {
		l.std.Printf("%+v\n", arg)
	}
}

func (l stdLogger) Debug(msg string, args ...interface{}) { l.print(msg, args) }
func (l stdLogger) Info(msg string, args ...interface{})  { l.print(msg, args) }
func (l stdLogger) Warn(msg string, args ...interface{})  { l.print(msg, args) }
func (l stdLogger) Error(msg string, args ...interface{}) { l.print(msg, args) }
func (l stdLogger) Fatal(msg string, args ...interface{}) { l.print(msg, args); l.std.Fatal(msg) }

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		IsActive:  &isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateFiche(
	t *testing.T,
	repo fiche.Repository,
	title, subject, level, createdBy string,
	status fiche.Status,
	createdAt ...time.Time,
) fiche.Fiche {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	f := fiche.Fiche{
		Title:    title,
		Subject:  subject,
		Level:    level,
		Duration: 60,
		Content: "Mise en situation: rappel des acquis.\nDéveloppement: " + title + ".\n" +
			"Synthèse: points clés.\nÉvaluation: exercices.",
		Objectives: []fiche.Objective{
			{ID: "obj-1", Description: "expliquer " + title},
		},
		Activities: []fiche.Activity{
			{Title: "Travail dirigé (voir obj-1)", Duration: 30},
		},
		Status:    status,
		CreatedBy: createdBy,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	f, err := repo.CreateFiche(f)
	if err != nil {
		t.Fatalf("CreateFiche() failed: %v", err)
	}
	return f
}
