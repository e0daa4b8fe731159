package domain

import (
	"strconv"
	"strings"
	"time"
)

// DateLayout is the key format of meeting and subtraction logs.
const DateLayout = "2006-01-02"

type Member struct {
	Name    string `json:"-" validate:"required"`
	SlackID string `json:"slackId"`
	Groups  string `json:"groups"` // space separated: "board", "nonmember", ...
	Present bool   `json:"present"`
}

func (m Member) GroupList() []string {
	return strings.Fields(m.Groups)
}

func (m Member) InGroup(group string) bool {
	for _, g := range m.GroupList() {
		if g == group {
			return true
		}
	}
	return false
}

func (m Member) IsBoard() bool {
	return m.InGroup("board")
}

// DayLog holds one date's sessions keyed "start0", "end0", "start1", ...
type DayLog map[string]string

// MeetingLog maps a YYYY-MM-DD date to that day's sessions.
type MeetingLog map[string]DayLog

// SubtractLog maps a date to an H:MM deduction. A nil value clears the
// deduction for that date.
type SubtractLog map[string]*string

// MemberLog is everything stored under one member's log entry.
type MemberLog struct {
	Meetings MeetingLog  `json:"meetings"`
	Subtract SubtractLog `json:"subtract"`
}

type Correction struct {
	ID        int64
	Name      string
	Request   string
	Date      string
	Submitted time.Time
}

// Event is a countdown target from config. Timestamp is RFC 3339.
type Event struct {
	Name      string `yaml:"name"`
	Timestamp string `yaml:"timestamp"`
}

func StartKey(i int) string {
	return "start" + strconv.Itoa(i)
}

func EndKey(i int) string {
	return "end" + strconv.Itoa(i)
}

// FindMember matches a full name case-insensitively.
func FindMember(members []Member, name string) (Member, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, m := range members {
		if strings.ToLower(m.Name) == name {
			return m, true
		}
	}
	return Member{}, false
}

func FindMemberBySlackID(members []Member, slackID string) (Member, bool) {
	if slackID == "" {
		return Member{}, false
	}
	for _, m := range members {
		if m.SlackID == slackID {
			return m, true
		}
	}
	return Member{}, false
}
