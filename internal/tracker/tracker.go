// Package tracker persists application records keyed by fingerprint and
// serializes all access to the single database connection.
package tracker

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"jobpilot/internal/domain"
	"jobpilot/internal/fingerprint"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrDuplicateFingerprint means Create was asked to insert an
	// identity that already exists. Callers use CheckDuplicate first.
	ErrDuplicateFingerprint = errors.New("duplicate fingerprint")
)

type Store struct {
	DB  *sql.DB
	Now func() time.Time

	mu sync.Mutex
}

func New(db *sql.DB) *Store {
	return &Store{DB: db, Now: time.Now}
}

func (s *Store) now() string {
	return s.Now().UTC().Format(time.RFC3339)
}

const recordColumns = `fingerprint, canonical_url, source_mode, company, role_title, location, status,
first_seen_at, last_attempt_at, submitted_at, resume_artifact_path, cover_letter_artifact_path,
proof_text, proof_screenshot_path, override_duplicate, override_reason`

func scanRecord(scan func(dest ...any) error) (domain.ApplicationRecord, error) {
	var r domain.ApplicationRecord
	var canonicalURL, location, lastAttempt, submitted, resume, cover, proofText, proofShot, overrideReason sql.NullString
	var overrideDup int
	err := scan(&r.Fingerprint, &canonicalURL, &r.SourceMode, &r.Company, &r.RoleTitle, &location, &r.Status,
		&r.FirstSeenAt, &lastAttempt, &submitted, &resume, &cover, &proofText, &proofShot, &overrideDup, &overrideReason)
	if err == sql.ErrNoRows {
		return r, ErrNotFound
	}
	if err != nil {
		return r, err
	}
	if canonicalURL.Valid {
		r.CanonicalURL = canonicalURL.String
	}
	if location.Valid {
		r.Location = location.String
	}
	if lastAttempt.Valid {
		r.LastAttemptAt = &lastAttempt.String
	}
	if submitted.Valid {
		r.SubmittedAt = &submitted.String
	}
	if resume.Valid {
		r.ResumePath = &resume.String
	}
	if cover.Valid {
		r.CoverLetterPath = &cover.String
	}
	if proofText.Valid {
		r.ProofText = &proofText.String
	}
	if proofShot.Valid {
		r.ProofScreenshotPath = &proofShot.String
	}
	r.OverrideDuplicate = overrideDup != 0
	if overrideReason.Valid {
		r.OverrideReason = &overrideReason.String
	}
	return r, nil
}

// Create computes the fingerprint for the posting, inserts a NEW record
// and returns the fingerprint. Inserting an existing identity is a hard
// error, not a silent upsert.
func (s *Store) Create(ctx context.Context, url, company, role, location, sourceMode string) (string, error) {
	if company == "" && role == "" && url == "" {
		return "", fmt.Errorf("create: url or company/role required")
	}
	fp := fingerprint.FromURL(url, company, role, location)
	if err := s.CreateWithFingerprint(ctx, fp, url, company, role, location, sourceMode); err != nil {
		return "", err
	}
	return fp, nil
}

// CreateWithFingerprint inserts a NEW record under a caller-resolved
// fingerprint. The batch runner uses this so the record lands under the
// identity the queue builder's duplicate check computed from the lead,
// not one recomputed from the apply URL.
func (s *Store) CreateWithFingerprint(ctx context.Context, fp, url, company, role, location, sourceMode string) error {
	if fp == "" {
		return fmt.Errorf("create: fingerprint required")
	}
	canonical := ""
	if url != "" {
		canonical = fingerprint.NormalizeURL(url)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var one int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM applications WHERE fingerprint=?`, fp).Scan(&one)
	if err == nil {
		return fmt.Errorf("%w: %s", ErrDuplicateFingerprint, fp)
	}
	if err != sql.ErrNoRows {
		return err
	}

	now := s.now()
	_, err = tx.ExecContext(ctx, `INSERT INTO applications(fingerprint, canonical_url, source_mode, company, role_title, location, status, first_seen_at, override_duplicate)
VALUES (?,?,?,?,?,?,?,?,0)`,
		fp, nullable(canonical), sourceMode, company, role, nullable(location), string(domain.StatusNew), now)
	if err != nil {
		return err
	}
	if err := appendEvent(ctx, tx, fp, now, "created", fmt.Sprintf(`{"source_mode":%q}`, sourceMode)); err != nil {
		return err
	}
	return tx.Commit()
}

// GetByFingerprint returns the record or ErrNotFound.
func (s *Store) GetByFingerprint(ctx context.Context, fp string) (domain.ApplicationRecord, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM applications WHERE fingerprint=?`, fp)
	return scanRecord(row.Scan)
}

// CheckDuplicate computes the same fingerprint a Create call would use and
// looks it up. It returns the existing record (nil when absent) along with
// the computed fingerprint.
func (s *Store) CheckDuplicate(ctx context.Context, url, company, role, location string) (*domain.ApplicationRecord, string, error) {
	fp := fingerprint.FromURL(url, company, role, location)
	rec, err := s.GetByFingerprint(ctx, fp)
	if errors.Is(err, ErrNotFound) {
		return nil, fp, nil
	}
	if err != nil {
		return nil, fp, err
	}
	return &rec, fp, nil
}

// UpdateStatus sets the status, stamps last_attempt_at, and stamps
// submitted_at when the new status is SUBMITTED. The transition is logged
// to the history table in the same transaction.
func (s *Store) UpdateStatus(ctx context.Context, fp string, status domain.Status) error {
	if !domain.ValidStatus(status) {
		return fmt.Errorf("invalid status %q", status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := s.now()
	var res sql.Result
	if status == domain.StatusSubmitted {
		res, err = tx.ExecContext(ctx, `UPDATE applications SET status=?, last_attempt_at=?, submitted_at=? WHERE fingerprint=?`,
			string(status), now, now, fp)
	} else {
		res, err = tx.ExecContext(ctx, `UPDATE applications SET status=?, last_attempt_at=? WHERE fingerprint=?`,
			string(status), now, fp)
	}
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	if err := appendEvent(ctx, tx, fp, now, "status", fmt.Sprintf(`{"status":%q}`, status)); err != nil {
		return err
	}
	return tx.Commit()
}

// UpdateProof records submission proof. Nil fields are left untouched.
func (s *Store) UpdateProof(ctx context.Context, fp string, proofText, screenshotPath *string) error {
	return s.updateFields(ctx, fp, map[string]*string{
		"proof_text":            proofText,
		"proof_screenshot_path": screenshotPath,
	})
}

// UpdateArtifacts records generated document paths. Nil fields are left
// untouched.
func (s *Store) UpdateArtifacts(ctx context.Context, fp string, resumePath, coverLetterPath *string) error {
	return s.updateFields(ctx, fp, map[string]*string{
		"resume_artifact_path":       resumePath,
		"cover_letter_artifact_path": coverLetterPath,
	})
}

// RecordOverride marks the record as a deliberately re-applied duplicate.
func (s *Store) RecordOverride(ctx context.Context, fp string, reason *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.DB.ExecContext(ctx, `UPDATE applications SET override_duplicate=1, override_reason=? WHERE fingerprint=?`,
		nullableStringPtr(reason), fp)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) updateFields(ctx context.Context, fp string, fields map[string]*string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var clauses []string
	var args []any
	// Deterministic column order keeps queries stable across runs.
	for _, col := range []string{"proof_text", "proof_screenshot_path", "resume_artifact_path", "cover_letter_artifact_path"} {
		v, ok := fields[col]
		if !ok || v == nil {
			continue
		}
		clauses = append(clauses, col+"=?")
		args = append(args, *v)
	}
	if len(clauses) == 0 {
		return nil
	}
	args = append(args, fp)
	query := `UPDATE applications SET `
	for i, c := range clauses {
		if i > 0 {
			query += ", "
		}
		query += c
	}
	query += ` WHERE fingerprint=?`
	res, err := s.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListRecent returns records ordered by first_seen_at descending.
// A zero status means no filter.
func (s *Store) ListRecent(ctx context.Context, limit int, status domain.Status) ([]domain.ApplicationRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM applications`
	var args []any
	if status != "" {
		query += ` WHERE status=?`
		args = append(args, string(status))
	}
	query += ` ORDER BY first_seen_at DESC, fingerprint DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.ApplicationRecord
	for rows.Next() {
		rec, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

// StatusCounts returns the number of records per status.
func (s *Store) StatusCounts(ctx context.Context) (map[domain.Status]int, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT status, count(*) FROM applications GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[domain.Status]int{}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		res[domain.Status(status)] = count
	}
	return res, rows.Err()
}

// SubmittedSince counts submissions at or after t. Used for the daily cap.
func (s *Store) SubmittedSince(ctx context.Context, t time.Time) (int, error) {
	var n int
	err := s.DB.QueryRowContext(ctx, `SELECT count(*) FROM applications WHERE submitted_at IS NOT NULL AND submitted_at >= ?`,
		t.UTC().Format(time.RFC3339)).Scan(&n)
	return n, err
}

// History returns the append-only event log for one record, oldest first.
func (s *Store) History(ctx context.Context, fp string) ([]domain.HistoryEvent, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT id, fingerprint, ts, type, COALESCE(detail,'') FROM events WHERE fingerprint=? ORDER BY id ASC`, fp)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.HistoryEvent
	for rows.Next() {
		var e domain.HistoryEvent
		if err := rows.Scan(&e.ID, &e.Fingerprint, &e.TS, &e.Type, &e.Detail); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

func appendEvent(ctx context.Context, tx *sql.Tx, fp, ts, evtType, detail string) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO events(fingerprint, ts, type, detail) VALUES (?,?,?,?)`,
		fp, ts, evtType, nullable(detail))
	return err
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil || *v == "" {
		return nil
	}
	return *v
}
