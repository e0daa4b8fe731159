package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"clubbot/internal/domain"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "clubbot-test.db")
	db, err := InitDB(dbPath)
	if err != nil {
		t.Fatalf("InitDB failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func strPtr(s string) *string { return &s }

func TestInitDBIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "twice.db")
	for i := 0; i < 2; i++ {
		db, err := InitDB(path)
		if err != nil {
			t.Fatalf("InitDB pass %d failed: %v", i, err)
		}
		if err := Ping(context.Background(), db); err != nil {
			t.Fatalf("Ping failed: %v", err)
		}
		_ = db.Close()
	}
}

func TestMembersUpsertAndList(t *testing.T) {
	db := newTestDB(t)

	if err := UpsertMember(db, domain.Member{Name: "Jane Doe", SlackID: "U1", Groups: "board"}); err != nil {
		t.Fatalf("UpsertMember failed: %v", err)
	}
	if err := UpsertMember(db, domain.Member{Name: "Alex Roe", SlackID: "U2"}); err != nil {
		t.Fatalf("UpsertMember failed: %v", err)
	}
	if err := UpsertMember(db, domain.Member{Name: "Jane Doe", SlackID: "U1", Groups: "board nonmember", Present: true}); err != nil {
		t.Fatalf("UpsertMember update failed: %v", err)
	}
	if err := UpsertMember(db, domain.Member{Name: " "}); err == nil {
		t.Fatal("expected empty member name to be rejected")
	}

	members, err := GetMembers(db)
	if err != nil {
		t.Fatalf("GetMembers failed: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("expected 2 members, got %d", len(members))
	}
	if members[0].Name != "Alex Roe" || members[1].Name != "Jane Doe" {
		t.Fatalf("unexpected member order: %+v", members)
	}
	if members[1].Groups != "board nonmember" || !members[1].Present {
		t.Fatalf("expected updated member, got %+v", members[1])
	}
}

func TestMemberLogRoundTrip(t *testing.T) {
	db := newTestDB(t)

	mustSession := func(member, date string, idx int, start, end string) {
		t.Helper()
		if err := InsertSession(db, member, date, idx, start, end); err != nil {
			t.Fatalf("InsertSession failed: %v", err)
		}
	}
	mustSession("Jane", "2024-03-01", 0, "16:00:00", "18:30:00")
	mustSession("Jane", "2024-03-01", 1, "19:00:00", "")
	mustSession("Jane", "2024-03-02", 0, "10:00:00", "12:00:00")
	mustSession("Alex", "2024-03-02", 0, "10:00:00", "11:00:00")
	if err := SetSubtraction(db, "Jane", "2024-03-02", strPtr("1:00")); err != nil {
		t.Fatalf("SetSubtraction failed: %v", err)
	}

	got, err := GetMemberLog(db, "Jane")
	if err != nil {
		t.Fatalf("GetMemberLog failed: %v", err)
	}
	want := domain.MemberLog{
		Meetings: domain.MeetingLog{
			"2024-03-01": {"start0": "16:00:00", "end0": "18:30:00", "start1": "19:00:00"},
			"2024-03-02": {"start0": "10:00:00", "end0": "12:00:00"},
		},
		Subtract: domain.SubtractLog{"2024-03-02": strPtr("1:00")},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected log:\n got %#v\nwant %#v", got, want)
	}

	all, err := GetAllMemberLogs(db)
	if err != nil {
		t.Fatalf("GetAllMemberLogs failed: %v", err)
	}
	if len(all) != 2 || len(all["Alex"].Meetings) != 1 {
		t.Fatalf("unexpected all logs: %#v", all)
	}

	empty, err := GetMemberLog(db, "Nobody")
	if err != nil {
		t.Fatalf("GetMemberLog for unknown member failed: %v", err)
	}
	if empty.Meetings != nil || empty.Subtract != nil {
		t.Fatalf("expected empty log, got %#v", empty)
	}
}

func TestSetSubtractionOverwriteAndClear(t *testing.T) {
	db := newTestDB(t)

	if err := SetSubtraction(db, "Jane", "2024-03-02", strPtr("1:00")); err != nil {
		t.Fatalf("SetSubtraction failed: %v", err)
	}
	if err := SetSubtraction(db, "Jane", "2024-03-02", strPtr("2:15")); err != nil {
		t.Fatalf("SetSubtraction overwrite failed: %v", err)
	}
	ml, err := GetMemberLog(db, "Jane")
	if err != nil {
		t.Fatalf("GetMemberLog failed: %v", err)
	}
	if got := *ml.Subtract["2024-03-02"]; got != "2:15" {
		t.Fatalf("expected overwritten subtraction, got %q", got)
	}

	if err := SetSubtraction(db, "Jane", "2024-03-02", nil); err != nil {
		t.Fatalf("SetSubtraction clear failed: %v", err)
	}
	ml, err = GetMemberLog(db, "Jane")
	if err != nil {
		t.Fatalf("GetMemberLog failed: %v", err)
	}
	if len(ml.Subtract) != 0 {
		t.Fatalf("expected subtraction cleared, got %#v", ml.Subtract)
	}
}

func TestSignedInOn(t *testing.T) {
	db := newTestDB(t)
	_ = InsertSession(db, "Zed", "2024-03-01", 0, "16:00:00", "")
	_ = InsertSession(db, "Amy", "2024-03-01", 0, "16:00:00", "17:00:00")
	_ = InsertSession(db, "Amy", "2024-03-01", 1, "18:00:00", "19:00:00")
	_ = InsertSession(db, "Bob", "2024-03-02", 0, "16:00:00", "17:00:00")

	names, err := SignedInOn(db, "2024-03-01")
	if err != nil {
		t.Fatalf("SignedInOn failed: %v", err)
	}
	if !reflect.DeepEqual(names, []string{"Amy", "Zed"}) {
		t.Fatalf("unexpected names: %v", names)
	}

	none, err := SignedInOn(db, "2023-01-01")
	if err != nil {
		t.Fatalf("SignedInOn failed: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("expected no names, got %v", none)
	}
}

func TestCorrectionsAndRequirements(t *testing.T) {
	db := newTestDB(t)
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	if _, err := InsertCorrection(db, domain.Correction{Name: "Jane", Request: "forgot to sign out", Date: "3/1", Submitted: base.Add(time.Hour)}); err != nil {
		t.Fatalf("InsertCorrection failed: %v", err)
	}
	id, err := InsertCorrection(db, domain.Correction{Name: "Alex", Request: "missed sign in", Submitted: base})
	if err != nil {
		t.Fatalf("InsertCorrection failed: %v", err)
	}
	if id <= 0 {
		t.Fatalf("expected positive id, got %d", id)
	}

	corrections, err := GetCorrections(db)
	if err != nil {
		t.Fatalf("GetCorrections failed: %v", err)
	}
	if len(corrections) != 2 || corrections[0].Name != "Alex" {
		t.Fatalf("expected corrections ordered by submission, got %+v", corrections)
	}

	if err := SetRequirement(db, "Jane", "safety", true); err != nil {
		t.Fatalf("SetRequirement failed: %v", err)
	}
	if err := SetRequirement(db, "Jane", "dues", false); err != nil {
		t.Fatalf("SetRequirement failed: %v", err)
	}
	if err := SetRequirement(db, "Jane", "dues", true); err != nil {
		t.Fatalf("SetRequirement update failed: %v", err)
	}
	reqs, err := GetRequirements(db, "Jane")
	if err != nil {
		t.Fatalf("GetRequirements failed: %v", err)
	}
	if !reflect.DeepEqual(reqs, map[string]bool{"safety": true, "dues": true}) {
		t.Fatalf("unexpected requirements: %v", reqs)
	}
}

func TestImportSnapshot(t *testing.T) {
	db := newTestDB(t)

	n, err := ImportSnapshot(db, Snapshot{
		Members: []domain.Member{{Name: "Jane", SlackID: "U1"}},
		Logs: map[string]domain.MemberLog{
			"Jane": {
				Meetings: domain.MeetingLog{
					"2024-03-01": {"start0": "16:00:00", "end0": "18:00:00", "start1": "19:00:00"},
				},
				Subtract: domain.SubtractLog{"2024-03-01": strPtr("0:30"), "2024-03-02": nil},
			},
		},
		Corrections: []domain.Correction{{Name: "Jane", Request: "fix"}},
	})
	if err != nil {
		t.Fatalf("ImportSnapshot failed: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 sessions imported, got %d", n)
	}

	ml, err := GetMemberLog(db, "Jane")
	if err != nil {
		t.Fatalf("GetMemberLog failed: %v", err)
	}
	if _, open := ml.Meetings["2024-03-01"]["end1"]; open {
		t.Fatal("expected session 1 to stay open")
	}
	if len(ml.Subtract) != 1 {
		t.Fatalf("expected nil subtraction to be skipped, got %#v", ml.Subtract)
	}
}

func TestImportSnapshotRollsBackOnError(t *testing.T) {
	db := newTestDB(t)

	_, err := ImportSnapshot(db, Snapshot{
		Members: []domain.Member{{Name: "Jane"}, {Name: ""}},
	})
	if err == nil {
		t.Fatal("expected invalid member to fail import")
	}
	members, err := GetMembers(db)
	if err != nil {
		t.Fatalf("GetMembers failed: %v", err)
	}
	if len(members) != 0 {
		t.Fatalf("expected rollback, got %+v", members)
	}
}
