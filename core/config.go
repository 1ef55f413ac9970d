package core

import (
	"fmt"
	"log"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	DatabaseConfig struct {
		Engine        string // postgres | sqlite
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	ServerConfig struct {
		Host            string
		Address         string
		DebugHost       string
		ShutdownTimeout time.Duration
	}

	JunebugConfig struct {
		URL      string
		Username string
		Password string
		From     string
		Fake     bool
	}

	GradeConfig struct {
		Grade10Course string
		Grade11Course string
		Grade12Course string
	}

	ScheduleConfig struct {
		GradeUp       string
		TeacherReport string
		SMSQueue      string
	}

	Config struct {
		Env      string
		Build    string
		Debug    bool
		TestMode bool

		AppName            string
		WorkDir            string
		MediaRoot          string
		SecretKey          string
		JWTExpirationDelta time.Duration

		defaultFromEmail string
		ReportFromEmail  string
		Managers         []mail.Address

		SendgridApiKey string
		RollbarToken   string

		Server   ServerConfig
		Database DatabaseConfig
		Junebug  JunebugConfig
		Grades   GradeConfig
		Schedule ScheduleConfig
	}
)

func (c DatabaseConfig) Address() string {
	if c.Port == "" {
		return c.Host
	}
	return c.Host + ":" + c.Port
}

func (c *Config) DefaultFromEmail() mail.Address {
	return mail.Address{Name: c.AppName, Address: c.defaultFromEmail}
}

// NewConfig loads the configuration from defaults, .env files and the environment.
// Environment variables are prefixed by the current env, eg: DEV_DATABASE_NAME.
func NewConfig() *Config {
	v := viper.New()

	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("build", "develop")
	v.SetDefault("appName", "dig-it")
	v.SetDefault("secretKey", "k9$2v@b7-r!xq5=mz&w3h1(e)u8#t0c^jn4s6gp+ydfa")
	v.SetDefault("jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("mediaRoot", "media")
	v.SetDefault("defaultFromEmail", "noreply@dig-it.me")
	v.SetDefault("reportFromEmail", "info@dig-it.me")
	v.SetDefault("managers", "")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("rollbarToken", "")

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "digit")
	v.SetDefault("database.user", "digit")
	v.SetDefault("database.password", "digit")
	v.SetDefault("database.adminUser", "")
	v.SetDefault("database.adminPassword", "")
	v.SetDefault("database.disableTLS", true)

	v.SetDefault("junebug.url", "http://localhost:8080/channels/default/messages/")
	v.SetDefault("junebug.username", "")
	v.SetDefault("junebug.password", "")
	v.SetDefault("junebug.from", "")
	v.SetDefault("junebug.fake", true)

	v.SetDefault("grades.grade10Course", "Grade 10 Course")
	v.SetDefault("grades.grade11Course", "Grade 11 Course")
	v.SetDefault("grades.grade12Course", "Grade 12 Course")

	v.SetDefault("schedule.gradeUp", "0 1 1 1 *")        // 01:00 on January 1st
	v.SetDefault("schedule.teacherReport", "0 6 1 * *")  // 06:00 on the 1st of each month
	v.SetDefault("schedule.smsQueue", "*/5 * * * *")

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	workDir := Getwd()

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(workDir, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	managers, err := mail.ParseAddressList(v.GetString("managers"))
	if err != nil && v.GetString("managers") != "" {
		log.Print(fmt.Errorf("config.managers: %v", err))
	}

	return &Config{
		Env:      env,
		Build:    v.GetString("build"),
		Debug:    v.GetBool("debug"),
		TestMode: v.GetBool("testMode"),

		AppName:            v.GetString("appName"),
		WorkDir:            workDir,
		MediaRoot:          v.GetString("mediaRoot"),
		SecretKey:          v.GetString("secretKey"),
		JWTExpirationDelta: v.GetDuration("jwtExpirationDelta"),

		defaultFromEmail: v.GetString("defaultFromEmail"),
		ReportFromEmail:  v.GetString("reportFromEmail"),
		Managers:         addressValues(managers),

		SendgridApiKey: v.GetString("sendgridApiKey"),
		RollbarToken:   v.GetString("rollbarToken"),

		Server: ServerConfig{
			Host:            v.GetString("server.host"),
			Address:         v.GetString("server.address"),
			DebugHost:       v.GetString("server.debugHost"),
			ShutdownTimeout: v.GetDuration("server.shutdownTimeout"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			Host:          v.GetString("database.host"),
			Port:          v.GetString("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTLS"),
		},
		Junebug: JunebugConfig{
			URL:      v.GetString("junebug.url"),
			Username: v.GetString("junebug.username"),
			Password: v.GetString("junebug.password"),
			From:     v.GetString("junebug.from"),
			Fake:     v.GetBool("junebug.fake"),
		},
		Grades: GradeConfig{
			Grade10Course: v.GetString("grades.grade10Course"),
			Grade11Course: v.GetString("grades.grade11Course"),
			Grade12Course: v.GetString("grades.grade12Course"),
		},
		Schedule: ScheduleConfig{
			GradeUp:       v.GetString("schedule.gradeUp"),
			TeacherReport: v.GetString("schedule.teacherReport"),
			SMSQueue:      v.GetString("schedule.smsQueue"),
		},
	}
}

// NewTestConfig returns a Config suitable for unit tests: no .env lookup, no environment.
func NewTestConfig() *Config {
	return &Config{
		Env:                "TEST",
		Build:              "test",
		Debug:              false,
		TestMode:           true,
		AppName:            "dig-it",
		MediaRoot:          os.TempDir(),
		SecretKey:          "secret",
		JWTExpirationDelta: 10 * time.Minute,
		defaultFromEmail:   "noreply@dig-it.me",
		ReportFromEmail:    "info@dig-it.me",
		Managers:           []mail.Address{{Name: "Admin", Address: "admin@dig-it.me"}},
		Database:           DatabaseConfig{Engine: "sqlite", Name: ":memory:"},
		Junebug:            JunebugConfig{Fake: true},
		Grades: GradeConfig{
			Grade10Course: "Grade 10 Course",
			Grade11Course: "Grade 11 Course",
			Grade12Course: "Grade 12 Course",
		},
	}
}

func addressValues(addrs []*mail.Address) []mail.Address {
	vals := make([]mail.Address, 0, len(addrs))
	for _, a := range addrs {
		vals = append(vals, *a)
	}
	return vals
}
