package config

import (
	"fmt"
	"os"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/aegee/statutory/internal/models"
)

type Config struct {
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	CoreURL                      string
	MailerURL                    string
	MemberslistNotificationEmail string
}

func LoadConfig() (*Config, error) {
	return &Config{
		DBHost:     os.Getenv("DB_HOST"),
		DBPort:     os.Getenv("DB_PORT"),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     os.Getenv("DB_NAME"),

		CoreURL:                      os.Getenv("CORE_URL"),
		MailerURL:                    os.Getenv("MAILER_URL"),
		MemberslistNotificationEmail: os.Getenv("MEMBERSLIST_NOTIFICATION_EMAIL"),
	}, nil
}

func InitDatabase(cfg *Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort,
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	err = db.AutoMigrate(
		&models.Event{},
		&models.Application{},
		&models.PaxLimit{},
		&models.MembersList{},
		&models.Plenary{},
		&models.Attendance{},
		&models.Position{},
		&models.Candidate{},
	)
	if err != nil {
		return nil, err
	}

	return db, nil
}
