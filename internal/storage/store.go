package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgtype"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"messagely/internal/storage/zapadapter"
)

var (
	ErrUserExists         = errors.New("user already exists")
	ErrUserNotExist       = errors.New("user does not exist")
	ErrMessageNotExist    = errors.New("message does not exist")
	ErrMessageAlreadyRead = errors.New("message is already read")
)

// Store owns user identity records and message records. It is the only
// place where the password hash is ever read or written.
type Store struct {
	logger     *zap.SugaredLogger
	db         *pgxpool.Pool
	bcryptCost int
	dummyHash  []byte
}

// New sets provided zap.Logger via zapadapter to pgxpool.Pool and returns instance of Store struct
func New(ctx context.Context, logger *zap.SugaredLogger, cfg Config, opts ...Option) (*Store, error) {
	config, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, err
	}
	config.ConnConfig.Logger = zapadapter.NewLogger(logger.Desugar())

	for _, opt := range opts {
		opt.apply(config)
	}

	pool, err := pgxpool.ConnectConfig(ctx, config)
	if err != nil {
		return nil, err
	}

	cost := cfg.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}

	// compared against on the unknown-user path so both credential failures
	// pay the same bcrypt cost
	dummyHash, err := bcrypt.GenerateFromPassword([]byte("no-such-user"), cost)
	if err != nil {
		return nil, err
	}

	return &Store{
		logger:     logger,
		db:         pool,
		bcryptCost: cost,
		dummyHash:  dummyHash,
	}, nil
}

// Close releases the underlying connection pool
func (s *Store) Close() {
	s.db.Close()
}

// RegisterUser hashes the raw password and creates a new identity record.
// Neither the raw password nor the resulting hash leaves this method.
func (s *Store) RegisterUser(ctx context.Context, params RegisterParams) (User, error) {
	s.logger.Debugf("Registering user (%s)", params.Username)

	hash, err := bcrypt.GenerateFromPassword([]byte(params.Password), s.bcryptCost)
	if err != nil {
		return User{}, err
	}

	user := User{
		Username:  params.Username,
		FirstName: params.FirstName,
		LastName:  params.LastName,
		Phone:     params.Phone,
	}

	sql := `insert into users (username, password_hash, first_name, last_name, phone, joined_at)
			values ($1, $2, $3, $4, $5, $6)
			returning joined_at`
	err = s.db.QueryRow(ctx, sql,
		params.Username, string(hash), params.FirstName, params.LastName, params.Phone, time.Now()).
		Scan(&user.JoinedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return User{}, ErrUserExists
		}
		return User{}, err
	}

	s.logger.Debugf("Registered user (%s)", params.Username)

	return user, nil
}

// VerifyCredentials reports whether the username/password pair identifies an
// existing user. An unknown username and a wrong password both come back as
// a plain false so callers cannot tell the two cases apart, by timing
// included: the unknown-user path burns a bcrypt compare on a dummy hash.
func (s *Store) VerifyCredentials(ctx context.Context, username, password string) (bool, error) {
	var hash string
	sql := "select password_hash from users where username = $1"
	err := s.db.QueryRow(ctx, sql, username).Scan(&hash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
			return false, nil
		}
		return false, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return false, nil
	}

	return true, nil
}

// RecordLogin sets last_login_at for the user and returns the new timestamp.
// Callers must invoke it only after VerifyCredentials succeeded.
func (s *Store) RecordLogin(ctx context.Context, username string) (time.Time, error) {
	var loginAt time.Time
	sql := "update users set last_login_at = $2 where username = $1 returning last_login_at"
	err := s.db.QueryRow(ctx, sql, username, time.Now()).Scan(&loginAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, ErrUserNotExist
		}
		return time.Time{}, err
	}
	return loginAt, nil
}

// Profile returns the full profile for username, without the credential hash
func (s *Store) Profile(ctx context.Context, username string) (User, error) {
	var (
		user        User
		lastLoginAt pgtype.Timestamptz
	)
	sql := `select username, first_name, last_name, phone, joined_at, last_login_at
			  from users
			 where username = $1`
	err := s.db.QueryRow(ctx, sql, username).
		Scan(&user.Username, &user.FirstName, &user.LastName, &user.Phone, &user.JoinedAt, &lastLoginAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotExist
		}
		return User{}, err
	}
	if lastLoginAt.Status == pgtype.Present {
		t := lastLoginAt.Time
		user.LastLoginAt = &t
	}
	return user, nil
}

// ListProfiles returns the public listing of all users ordered by username
func (s *Store) ListProfiles(ctx context.Context) ([]UserSummary, error) {
	sql := "select username, first_name, last_name from users order by username asc"
	rows, err := s.db.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]UserSummary, 0)
	for rows.Next() {
		var u UserSummary
		if err := rows.Scan(&u.Username, &u.FirstName, &u.LastName); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return users, nil
}

// CreateMessage creates a new directed message and returns it
func (s *Store) CreateMessage(ctx context.Context, from, to, body string) (Message, error) {
	s.logger.Debugf("Creating message from (%s) to (%s)", from, to)

	msg := Message{
		FromUsername: from,
		ToUsername:   to,
		Body:         body,
	}

	sql := `insert into messages (from_username, to_username, body, sent_at)
			values ($1, $2, $3, $4)
			returning id, sent_at`
	err := s.db.QueryRow(ctx, sql, from, to, body, time.Now()).Scan(&msg.ID, &msg.SentAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			switch pgErr.ConstraintName {
			case "messages_from_username_fkey":
				s.logger.Debugf("Unknown sender (%s)", from)
			case "messages_to_username_fkey":
				s.logger.Debugf("Unknown recipient (%s)", to)
			}
			return Message{}, ErrUserNotExist
		}
		return Message{}, err
	}

	s.logger.Debugf("Created message with id %d", msg.ID)

	return msg, nil
}

// MessageByID returns the message joined with both participants' profiles
func (s *Store) MessageByID(ctx context.Context, id int64) (MessageDetail, error) {
	var (
		m      MessageDetail
		readAt pgtype.Timestamptz
	)
	sql := `select m.id, m.body, m.sent_at, m.read_at,
				   f.username, f.first_name, f.last_name, f.phone,
				   t.username, t.first_name, t.last_name, t.phone
			  from messages m
			  join users f on f.username = m.from_username
			  join users t on t.username = m.to_username
			 where m.id = $1`
	err := s.db.QueryRow(ctx, sql, id).Scan(
		&m.ID, &m.Body, &m.SentAt, &readAt,
		&m.From.Username, &m.From.FirstName, &m.From.LastName, &m.From.Phone,
		&m.To.Username, &m.To.FirstName, &m.To.LastName, &m.To.Phone,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return MessageDetail{}, ErrMessageNotExist
		}
		return MessageDetail{}, err
	}
	if readAt.Status == pgtype.Present {
		t := readAt.Time
		m.ReadAt = &t
	}
	return m, nil
}

// MarkRead sets read_at exactly once and returns the updated message.
// The "read_at is null" predicate makes the already-read check atomic with
// the write, so two concurrent calls cannot both succeed.
func (s *Store) MarkRead(ctx context.Context, id int64) (Message, error) {
	var (
		m      Message
		readAt time.Time
	)
	sql := `update messages
			   set read_at = $2
			 where id = $1 and read_at is null
			returning id, from_username, to_username, body, sent_at, read_at`
	err := s.db.QueryRow(ctx, sql, id, time.Now()).
		Scan(&m.ID, &m.FromUsername, &m.ToUsername, &m.Body, &m.SentAt, &readAt)
	if err == nil {
		m.ReadAt = &readAt
		return m, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Message{}, err
	}

	// zero rows updated: either the message is gone or somebody read it first
	var existing pgtype.Timestamptz
	err = s.db.QueryRow(ctx, "select read_at from messages where id = $1", id).Scan(&existing)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Message{}, ErrMessageNotExist
		}
		return Message{}, err
	}
	return Message{}, ErrMessageAlreadyRead
}

// MessagesFrom returns all messages sent by username, earliest first, each
// joined with the recipient's profile. A user with no sent messages yields
// an empty slice, not an error.
func (s *Store) MessagesFrom(ctx context.Context, username string) ([]OutgoingMessage, error) {
	s.logger.Debugf("Retrieving messages sent by (%s)", username)

	if err := s.checkUserExists(ctx, username); err != nil {
		return nil, err
	}

	sql := `select m.id, m.body, m.sent_at, m.read_at,
				   u.username, u.first_name, u.last_name, u.phone
			  from messages m
			  join users u on u.username = m.to_username
			 where m.from_username = $1
			 order by m.sent_at asc`
	rows, err := s.db.Query(ctx, sql, username)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]OutgoingMessage, 0)
	for rows.Next() {
		var (
			m      OutgoingMessage
			readAt pgtype.Timestamptz
		)
		err = rows.Scan(&m.ID, &m.Body, &m.SentAt, &readAt,
			&m.To.Username, &m.To.FirstName, &m.To.LastName, &m.To.Phone)
		if err != nil {
			return nil, err
		}
		if readAt.Status == pgtype.Present {
			t := readAt.Time
			m.ReadAt = &t
		}
		messages = append(messages, m)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	s.logger.Debugf("Retrieved %d sent messages", len(messages))

	return messages, nil
}

// MessagesTo returns all messages addressed to username, earliest first,
// each joined with the sender's profile.
func (s *Store) MessagesTo(ctx context.Context, username string) ([]IncomingMessage, error) {
	s.logger.Debugf("Retrieving messages addressed to (%s)", username)

	if err := s.checkUserExists(ctx, username); err != nil {
		return nil, err
	}

	sql := `select m.id, m.body, m.sent_at, m.read_at,
				   u.username, u.first_name, u.last_name, u.phone
			  from messages m
			  join users u on u.username = m.from_username
			 where m.to_username = $1
			 order by m.sent_at asc`
	rows, err := s.db.Query(ctx, sql, username)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]IncomingMessage, 0)
	for rows.Next() {
		var (
			m      IncomingMessage
			readAt pgtype.Timestamptz
		)
		err = rows.Scan(&m.ID, &m.Body, &m.SentAt, &readAt,
			&m.From.Username, &m.From.FirstName, &m.From.LastName, &m.From.Phone)
		if err != nil {
			return nil, err
		}
		if readAt.Status == pgtype.Present {
			t := readAt.Time
			m.ReadAt = &t
		}
		messages = append(messages, m)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	s.logger.Debugf("Retrieved %d received messages", len(messages))

	return messages, nil
}

func (s *Store) checkUserExists(ctx context.Context, username string) error {
	var i int8
	err := s.db.QueryRow(ctx, "select 1 from users where username = $1", username).Scan(&i)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUserNotExist
		}
		return err
	}
	return nil
}
