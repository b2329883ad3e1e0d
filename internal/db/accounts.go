package db

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/z060142/FireNET/internal/model"
)

// userRow is the relational representation of an account, mapped onto the
// users table layout shared with existing FireNET databases.
type userRow struct {
	UID      int    `gorm:"primaryKey;column:uid"`
	Login    string `gorm:"unique;not null"`
	Password string `gorm:"not null"`
	Banned   bool   `gorm:"column:ban;default:false"`
}

func (userRow) TableName() string { return "users" }

// OpenSQL connects to the relational accounts database and runs migrations.
func OpenSQL(dialector gorm.Dialector, debug bool) (*gorm.DB, error) {
	// By default only log errors but enable full SQL query prints-to-console
	// with debug mode.
	log := logger.Default.LogMode(logger.Error)
	if debug {
		log = logger.Default.LogMode(logger.Info)
	}

	sqlDB, err := gorm.Open(dialector, &gorm.Config{Logger: log})
	if err != nil {
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}

	if err := sqlDB.AutoMigrate(&userRow{}); err != nil {
		return nil, fmt.Errorf("error auto migrating db: %w", err)
	}

	return sqlDB, nil
}

// findUserRow searches the users table for the specified login, returning
// nil if there is no match.
func findUserRow(sqlDB *gorm.DB, login string) (*model.User, error) {
	var row userRow
	err := sqlDB.Where("login = ?", login).First(&row).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &model.User{
		UID:      row.UID,
		Login:    row.Login,
		Password: row.Password,
		Banned:   row.Banned,
	}, nil
}

func createUserRow(sqlDB *gorm.DB, user *model.User) error {
	return sqlDB.Create(&userRow{
		UID:      user.UID,
		Login:    user.Login,
		Password: user.Password,
		Banned:   user.Banned,
	}).Error
}

func updateUserRow(sqlDB *gorm.DB, user *model.User) error {
	return sqlDB.Model(&userRow{}).
		Where("uid = ?", user.UID).
		Update("ban", user.Banned).Error
}
