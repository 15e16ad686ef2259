package core

import (
	"log"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		Debug            bool
		TestMode         bool
		Env              string
		AppName          string
		Build            string
		WorkDir          string
		SecretKey        string
		RollbarToken     string
		SendgridApiKey   string
		FrontendBaseURL  string
		defaultFromEmail string

		// Course is the course scope used when a request does not name one.
		Course      string
		StaffEmails []string
		AdminEmails []string

		Server   ServerConfig
		Database DatabaseConfig
		Term     TermConfig
		Google   GoogleConfig
	}

	ServerConfig struct {
		Host               string
		Address            string
		DebugHost          string
		ShutdownTimeout    time.Duration
		JWTExpirationDelta time.Duration
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	// TermConfig holds the calendar of the running course term.
	TermConfig struct {
		Location        *time.Location
		FirstWeekStart  time.Time
		IsSummer        bool
		MaxAbsences     int
		ImportWeekStart time.Time
	}

	GoogleConfig struct {
		CredentialsFile string
	}
)

func (db DatabaseConfig) Address() string {
	return net.JoinHostPort(db.Host, db.Port)
}

func (conf *Config) DefaultFromEmail() string {
	if conf.defaultFromEmail != "" {
		return conf.defaultFromEmail
	}
	return "noreply@" + conf.Server.Host
}

// FirstWeekEnd is the exclusive end of the first-week window.
func (t TermConfig) FirstWeekEnd() time.Time {
	return t.FirstWeekStart.Add(7 * 24 * time.Hour)
}

func NewConfig() *Config {
	conf := viper.New()

	// defaults
	conf.SetTypeByDefaultValue(true)
	conf.SetDefault("debug", true)
	conf.SetDefault("testMode", false)
	conf.SetDefault("appName", "Sections")
	conf.SetDefault("build", "develop")
	conf.SetDefault("secretKey", "s3ct!0ns-l0cal-k3y_9x#q2w^b7v$1m@z8p&d4f*e6")
	conf.SetDefault("course", "cs61a")
	conf.SetDefault("staffEmails", "")
	conf.SetDefault("adminEmails", "")
	conf.SetDefault("frontendBaseURL", "http://localhost:3000")
	conf.SetDefault("server.host", "localhost")
	conf.SetDefault("server.address", ":8000")
	conf.SetDefault("server.debugHost", ":4000")
	conf.SetDefault("server.shutdownTimeout", 5*time.Second)
	conf.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)
	conf.SetDefault("database.engine", "postgres")
	conf.SetDefault("database.host", "localhost")
	conf.SetDefault("database.port", "5432")
	conf.SetDefault("database.name", "sections")
	conf.SetDefault("database.disableTLS", true)
	conf.SetDefault("term.timezone", "America/Los_Angeles")
	conf.SetDefault("term.firstWeekStart", "2022-06-27")
	conf.SetDefault("term.isSummer", true)
	conf.SetDefault("term.maxAbsences", 2)
	conf.SetDefault("term.importWeekStart", "2021-08-23")

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		conf.SetDefault("testMode", true)
	}
	conf.SetEnvPrefix(env)
	conf.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	wd := Getwd()

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	conf.AutomaticEnv()

	loc, err := time.LoadLocation(conf.GetString("term.timezone"))
	if err != nil {
		log.Fatalf("config.LoadLocation(%s): %v", conf.GetString("term.timezone"), err)
	}

	return &Config{
		Debug:            conf.GetBool("debug"),
		TestMode:         conf.GetBool("testMode"),
		Env:              env,
		AppName:          conf.GetString("appName"),
		Build:            conf.GetString("build"),
		WorkDir:          wd,
		SecretKey:        conf.GetString("secretKey"),
		RollbarToken:     conf.GetString("rollbarToken"),
		SendgridApiKey:   conf.GetString("sendgridApiKey"),
		FrontendBaseURL:  conf.GetString("frontendBaseURL"),
		defaultFromEmail: conf.GetString("defaultFromEmail"),
		Course:           conf.GetString("course"),
		StaffEmails:      splitList(conf.GetString("staffEmails")),
		AdminEmails:      splitList(conf.GetString("adminEmails")),
		Server: ServerConfig{
			Host:               conf.GetString("server.host"),
			Address:            conf.GetString("server.address"),
			DebugHost:          conf.GetString("server.debugHost"),
			ShutdownTimeout:    conf.GetDuration("server.shutdownTimeout"),
			JWTExpirationDelta: conf.GetDuration("server.jwtExpirationDelta"),
		},
		Database: DatabaseConfig{
			Engine:        conf.GetString("database.engine"),
			Host:          conf.GetString("database.host"),
			Port:          conf.GetString("database.port"),
			Name:          conf.GetString("database.name"),
			User:          conf.GetString("database.user"),
			Password:      conf.GetString("database.password"),
			AdminUser:     conf.GetString("database.adminUser"),
			AdminPassword: conf.GetString("database.adminPassword"),
			DisableTLS:    conf.GetBool("database.disableTLS"),
		},
		Term: TermConfig{
			Location:        loc,
			FirstWeekStart:  mustParseDate(conf.GetString("term.firstWeekStart"), loc),
			IsSummer:        conf.GetBool("term.isSummer"),
			MaxAbsences:     conf.GetInt("term.maxAbsences"),
			ImportWeekStart: mustParseDate(conf.GetString("term.importWeekStart"), loc),
		},
		Google: GoogleConfig{
			CredentialsFile: conf.GetString("google.credentialsFile"),
		},
	}
}

func mustParseDate(s string, loc *time.Location) time.Time {
	t, err := time.ParseInLocation("2006-01-02", s, loc)
	if err != nil {
		log.Fatalf("config.ParseDate(%s): %v", s, err)
	}
	return t
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = CleanString(item, true /* lower */); item != "" {
			out = append(out, item)
		}
	}
	return out
}
