package slackbot

import (
	"database/sql"

	"clubbot/internal/config"
	"clubbot/internal/domain"
	"clubbot/internal/router"
	"clubbot/internal/storage/sqlite"
)

type Config = config.Config
type Member = domain.Member
type Request = router.Request
type Correction = domain.Correction

func GetMemberLog(db *sql.DB, member string) (domain.MemberLog, error) {
	return sqlite.GetMemberLog(db, member)
}

func GetAllMemberLogs(db *sql.DB) (map[string]domain.MemberLog, error) {
	return sqlite.GetAllMemberLogs(db)
}

func SetSubtraction(db *sql.DB, member, date string, duration *string) error {
	return sqlite.SetSubtraction(db, member, date, duration)
}

func SignedInOn(db *sql.DB, date string) ([]string, error) {
	return sqlite.SignedInOn(db, date)
}

func GetCorrections(db *sql.DB) ([]Correction, error) {
	return sqlite.GetCorrections(db)
}

func GetRequirements(db *sql.DB, member string) (map[string]bool, error) {
	return sqlite.GetRequirements(db, member)
}
