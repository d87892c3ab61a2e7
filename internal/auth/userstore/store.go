package userstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/debapps/WebAuthSecurity/internal/auth"
	"github.com/debapps/WebAuthSecurity/internal/auth/credentials"
	"github.com/debapps/WebAuthSecurity/internal/db"
	"github.com/debapps/WebAuthSecurity/internal/logger"
	"github.com/debapps/WebAuthSecurity/internal/telemetry"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("github.com/debapps/WebAuthSecurity/internal/auth/userstore")

// PasswordHasher is the subset of credentials.Hasher the store relies on.
type PasswordHasher interface {
	Hash(ctx context.Context, password string) (credentials.Hash, error)
	Verify(ctx context.Context, password string, stored credentials.Hash) (bool, error)
	NeedsRehash(stored credentials.Hash) bool
}

// Store is the durable user record store. Password hashes are read and
// written here and nowhere else.
type Store struct {
	db     *db.DB
	hasher PasswordHasher
	now    func() time.Time
}

func New(d *db.DB, hasher PasswordHasher) *Store {
	return &Store{
		db:     d,
		hasher: hasher,
		now:    time.Now,
	}
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func unavailable(op string, err error) error {
	return fmt.Errorf("userstore: %s: %w: %w", op, auth.ErrStoreUnavailable, err)
}

func (s *Store) FindByID(ctx context.Context, id string) (user *auth.User, err error) {
	ctx, span := tracer.Start(ctx, "userstore.FindByID")
	defer func() { telemetry.EndSpan(span, ignoreMiss(err)) }()

	return s.findByID(ctx, s.db.DB, id)
}

func (s *Store) findByID(ctx context.Context, q queryer, id string) (*auth.User, error) {
	row := q.QueryRowContext(ctx, s.db.Rebind(`
		SELECT id, username, secret, created_at, updated_at
		FROM users
		WHERE id = ?
	`), id)

	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, unavailable("find by id", err)
	}

	rows, err := q.QueryContext(ctx, s.db.Rebind(`
		SELECT user_id, provider, provider_user_id
		FROM identities
		WHERE user_id = ?
	`), id)
	if err != nil {
		return nil, unavailable("load identities", err)
	}
	if err := attachIdentities(rows, map[string]*auth.User{user.ID: user}); err != nil {
		return nil, unavailable("load identities", err)
	}

	return user, nil
}

// FindOrCreateByExternal returns the user linked to (provider, externalID),
// creating it on first sight. Concurrent callers for the same pair all get
// the same user: the identities primary key decides the winner and losers
// roll back their tentative user row.
func (s *Store) FindOrCreateByExternal(ctx context.Context, provider, externalID string) (user *auth.User, err error) {
	ctx, span := tracer.Start(ctx, "userstore.FindOrCreateByExternal")
	span.SetAttributes(attribute.String("auth.provider", provider))
	defer func() { telemetry.EndSpan(span, err) }()

	if provider == "" || externalID == "" {
		return nil, errors.New("userstore: provider and external id are required")
	}

	existing, err := s.findByExternal(ctx, provider, externalID)
	if !errors.Is(err, auth.ErrNotFound) {
		return existing, err
	}

	now := db.ToMillis(s.now())
	userID := uuid.NewString()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, unavailable("begin", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO users (id, created_at, updated_at)
		VALUES (?, ?, ?)
	`), userID, now, now); err != nil {
		return nil, unavailable("insert user", err)
	}

	res, err := tx.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO identities (provider, provider_user_id, user_id, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (provider, provider_user_id) DO NOTHING
	`), provider, externalID, userID, now)
	if err != nil {
		return nil, unavailable("insert identity", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return nil, unavailable("insert identity", err)
	}

	if n == 0 {
		// lost the race
		_ = tx.Rollback()
		return s.findByExternal(ctx, provider, externalID)
	}

	if err := tx.Commit(); err != nil {
		return nil, unavailable("commit", err)
	}

	logger.Info("user created", map[string]any{
		"user_id":  userID,
		"provider": provider,
	})

	return &auth.User{
		ID:        userID,
		External:  map[string]string{provider: externalID},
		CreatedAt: db.FromMillis(now),
		UpdatedAt: db.FromMillis(now),
	}, nil
}

func (s *Store) findByExternal(ctx context.Context, provider, externalID string) (*auth.User, error) {
	var userID string
	err := s.db.QueryRowContext(ctx, s.db.Rebind(`
		SELECT user_id
		FROM identities
		WHERE provider = ?
		  AND provider_user_id = ?
	`), provider, externalID).Scan(&userID)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, unavailable("find by external", err)
	}

	return s.findByID(ctx, s.db.DB, userID)
}

// CreateLocal registers a username/password user. Usernames are unique
// case-insensitively.
func (s *Store) CreateLocal(ctx context.Context, username, password string) (user *auth.User, err error) {
	ctx, span := tracer.Start(ctx, "userstore.CreateLocal")
	defer func() { telemetry.EndSpan(span, err) }()

	username = strings.TrimSpace(username)
	if username == "" {
		return nil, errors.New("userstore: username is required")
	}

	var exists bool
	err = s.db.QueryRowContext(ctx, s.db.Rebind(`
		SELECT EXISTS (
			SELECT 1 FROM users WHERE LOWER(username) = LOWER(?)
		)
	`), username).Scan(&exists)
	if err != nil {
		return nil, unavailable("check username", err)
	}
	if exists {
		return nil, auth.ErrAlreadyExists
	}

	hash, err := s.hasher.Hash(ctx, password)
	if err != nil {
		return nil, fmt.Errorf("userstore: hash password: %w", err)
	}

	now := db.ToMillis(s.now())
	userID := uuid.NewString()

	res, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO users (id, username, password_hash, password_salt, hash_version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`), userID, username, hash.Value, hash.Salt, hash.Version, now, now)
	if err != nil {
		return nil, unavailable("insert user", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return nil, unavailable("insert user", err)
	}
	if n == 0 {
		return nil, auth.ErrAlreadyExists
	}

	logger.Info("user registered", map[string]any{
		"user_id": userID,
	})

	return &auth.User{
		ID:        userID,
		Local:     &auth.LocalCredential{Username: username},
		External:  map[string]string{},
		CreatedAt: db.FromMillis(now),
		UpdatedAt: db.FromMillis(now),
	}, nil
}

// VerifyLocal checks a username/password pair. Legacy or outdated hashes are
// upgraded after a successful match.
func (s *Store) VerifyLocal(ctx context.Context, username, password string) (user *auth.User, err error) {
	ctx, span := tracer.Start(ctx, "userstore.VerifyLocal")
	defer func() { telemetry.EndSpan(span, err) }()

	var (
		userID        string
		stored        credentials.Hash
		salt, version sql.NullString
	)

	err = s.db.QueryRowContext(ctx, s.db.Rebind(`
		SELECT id, password_hash, password_salt, hash_version
		FROM users
		WHERE LOWER(username) = LOWER(?)
		  AND password_hash IS NOT NULL
	`), strings.TrimSpace(username)).Scan(&userID, &stored.Value, &salt, &version)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrUserNotFound
	}
	if err != nil {
		return nil, unavailable("find credentials", err)
	}
	stored.Salt = salt.String
	stored.Version = version.String

	if password == "" {
		return nil, auth.ErrBadPassword
	}

	ok, err := s.hasher.Verify(ctx, password, stored)
	if err != nil {
		return nil, fmt.Errorf("userstore: verify password: %w", err)
	}
	if !ok {
		return nil, auth.ErrBadPassword
	}

	if s.hasher.NeedsRehash(stored) {
		if err := s.rehash(ctx, userID, password); err != nil {
			logger.Warn("password rehash failed", map[string]any{
				"user_id": userID,
				"error":   err.Error(),
			})
		}
	}

	return s.findByID(ctx, s.db.DB, userID)
}

func (s *Store) rehash(ctx context.Context, userID, password string) error {
	fresh, err := s.hasher.Hash(ctx, password)
	if err != nil {
		return err
	}
	return s.updatePassword(ctx, userID, fresh)
}

func (s *Store) updatePassword(ctx context.Context, userID string, hash credentials.Hash) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`
		UPDATE users
		SET password_hash = ?, password_salt = ?, hash_version = ?, updated_at = ?
		WHERE id = ?
	`), hash.Value, hash.Salt, hash.Version, db.ToMillis(s.now()), userID)
	if err != nil {
		return unavailable("update password", err)
	}
	return requireAffected(res, "update password")
}

// SetSecret stores the user's secret, replacing any previous one.
func (s *Store) SetSecret(ctx context.Context, userID, secret string) (err error) {
	ctx, span := tracer.Start(ctx, "userstore.SetSecret")
	defer func() { telemetry.EndSpan(span, ignoreMiss(err)) }()

	res, err := s.db.ExecContext(ctx, s.db.Rebind(`
		UPDATE users
		SET secret = ?, updated_at = ?
		WHERE id = ?
	`), secret, db.ToMillis(s.now()), userID)
	if err != nil {
		return unavailable("set secret", err)
	}
	return requireAffected(res, "set secret")
}

// ListUsersWithSecret returns every user that has submitted a secret,
// oldest first. Users created in the same millisecond are ordered by id.
func (s *Store) ListUsersWithSecret(ctx context.Context) (users []*auth.User, err error) {
	ctx, span := tracer.Start(ctx, "userstore.ListUsersWithSecret")
	defer func() { telemetry.EndSpan(span, err) }()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, username, secret, created_at, updated_at
		FROM users
		WHERE secret IS NOT NULL
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, unavailable("list secrets", err)
	}
	defer rows.Close()

	byID := make(map[string]*auth.User)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, unavailable("list secrets", err)
		}
		users = append(users, user)
		byID[user.ID] = user
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list secrets", err)
	}
	if len(users) == 0 {
		return users, nil
	}

	idRows, err := s.db.QueryContext(ctx, `
		SELECT i.user_id, i.provider, i.provider_user_id
		FROM identities i
		JOIN users u ON u.id = i.user_id
		WHERE u.secret IS NOT NULL
	`)
	if err != nil {
		return nil, unavailable("load identities", err)
	}
	if err := attachIdentities(idRows, byID); err != nil {
		return nil, unavailable("load identities", err)
	}

	return users, nil
}

// Delete removes the user and every linked external identity.
func (s *Store) Delete(ctx context.Context, userID string) (err error) {
	ctx, span := tracer.Start(ctx, "userstore.Delete")
	defer func() { telemetry.EndSpan(span, ignoreMiss(err)) }()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return unavailable("begin", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, s.db.Rebind(`
		DELETE FROM identities WHERE user_id = ?
	`), userID); err != nil {
		return unavailable("delete identities", err)
	}

	res, err := tx.ExecContext(ctx, s.db.Rebind(`
		DELETE FROM users WHERE id = ?
	`), userID)
	if err != nil {
		return unavailable("delete user", err)
	}
	if err := requireAffected(res, "delete user"); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return unavailable("commit", err)
	}

	logger.Info("user deleted", map[string]any{
		"user_id": userID,
	})
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (*auth.User, error) {
	var (
		user                 auth.User
		username, secret     sql.NullString
		createdAt, updatedAt int64
	)

	if err := row.Scan(&user.ID, &username, &secret, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	if username.Valid {
		user.Local = &auth.LocalCredential{Username: username.String}
	}
	if secret.Valid {
		s := secret.String
		user.Secret = &s
	}
	user.External = map[string]string{}
	user.CreatedAt = db.FromMillis(createdAt)
	user.UpdatedAt = db.FromMillis(updatedAt)

	return &user, nil
}

func attachIdentities(rows *sql.Rows, byID map[string]*auth.User) error {
	defer rows.Close()

	for rows.Next() {
		var userID, provider, subject string
		if err := rows.Scan(&userID, &provider, &subject); err != nil {
			return err
		}
		if user, ok := byID[userID]; ok {
			user.External[provider] = subject
		}
	}
	return rows.Err()
}

func requireAffected(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return unavailable(op, err)
	}
	if n == 0 {
		return auth.ErrNotFound
	}
	return nil
}

// ignoreMiss keeps lookups of absent records from marking spans as failed.
func ignoreMiss(err error) error {
	if errors.Is(err, auth.ErrNotFound) {
		return nil
	}
	return err
}
