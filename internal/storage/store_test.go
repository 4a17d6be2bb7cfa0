package storage

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	mytesting "messagely/internal/testing"
)

func bootstrap(t *testing.T) *Store {
	logger, err := zap.NewDevelopment()
	require.NoError(t, err)
	s, err := New(context.Background(), logger.Sugar(), TestConfig)
	require.NoError(t, err)

	return s
}

func randParams() RegisterParams {
	return RegisterParams{
		Username:  mytesting.RandString(),
		Password:  mytesting.RandString(),
		FirstName: mytesting.RandString(),
		LastName:  mytesting.RandString(),
		Phone:     mytesting.RandPhone(),
	}
}

func registerRandom(t *testing.T, s *Store) RegisterParams {
	params := randParams()
	_, err := s.RegisterUser(context.Background(), params)
	require.NoError(t, err)
	return params
}

func TestRegisterUser(t *testing.T) {
	t.Parallel()

	s := bootstrap(t)
	params := randParams()

	user, err := s.RegisterUser(context.Background(), params)
	require.NoError(t, err)
	require.Equal(t, params.Username, user.Username)
	require.False(t, user.JoinedAt.IsZero())
	require.Nil(t, user.LastLoginAt)
}

func TestRegisterUserExists(t *testing.T) {
	t.Parallel()

	s := bootstrap(t)
	params := randParams()

	_, err := s.RegisterUser(context.Background(), params)
	require.NoError(t, err)
	_, err = s.RegisterUser(context.Background(), params)
	require.ErrorIs(t, err, ErrUserExists)
}

func TestVerifyCredentials(t *testing.T) {
	t.Parallel()

	s := bootstrap(t)
	params := registerRandom(t, s)

	valid, err := s.VerifyCredentials(context.Background(), params.Username, params.Password)
	require.NoError(t, err)
	require.True(t, valid)
}

func TestVerifyCredentials_WrongPassword(t *testing.T) {
	t.Parallel()

	s := bootstrap(t)
	params := registerRandom(t, s)

	valid, err := s.VerifyCredentials(context.Background(), params.Username, "definitely-wrong")
	require.NoError(t, err)
	require.False(t, valid)
}

func TestVerifyCredentials_UnknownUser(t *testing.T) {
	t.Parallel()

	s := bootstrap(t)

	// same (false, nil) shape as a wrong password
	valid, err := s.VerifyCredentials(context.Background(), mytesting.RandString(), "whatever")
	require.NoError(t, err)
	require.False(t, valid)
}

func TestVerifyCredentials_FalsePathsSameOrderOfMagnitude(t *testing.T) {
	t.Parallel()

	s := bootstrap(t)
	params := registerRandom(t, s)
	unknown := mytesting.RandString()

	const rounds = 5
	var wrongElapsed, unknownElapsed time.Duration
	for i := 0; i < rounds; i++ {
		start := time.Now()
		valid, err := s.VerifyCredentials(context.Background(), params.Username, "definitely-wrong")
		require.NoError(t, err)
		require.False(t, valid)
		wrongElapsed += time.Since(start)

		start = time.Now()
		valid, err = s.VerifyCredentials(context.Background(), unknown, "definitely-wrong")
		require.NoError(t, err)
		require.False(t, valid)
		unknownElapsed += time.Since(start)
	}

	// an unknown username must not be cheaper to probe than a wrong password
	require.Less(t, wrongElapsed, unknownElapsed*10)
	require.Less(t, unknownElapsed, wrongElapsed*10)
}

func TestRecordLogin(t *testing.T) {
	t.Parallel()

	s := bootstrap(t)
	params := registerRandom(t, s)

	// millisecond of slack: timestamps round-trip at microsecond precision
	before := time.Now().Add(-time.Millisecond)
	loginAt, err := s.RecordLogin(context.Background(), params.Username)
	require.NoError(t, err)
	require.False(t, loginAt.Before(before))

	user, err := s.Profile(context.Background(), params.Username)
	require.NoError(t, err)
	require.NotNil(t, user.LastLoginAt)
}

func TestRecordLogin_UnknownUser(t *testing.T) {
	t.Parallel()

	s := bootstrap(t)

	_, err := s.RecordLogin(context.Background(), mytesting.RandString())
	require.ErrorIs(t, err, ErrUserNotExist)
}

func TestProfile_UnknownUser(t *testing.T) {
	t.Parallel()

	s := bootstrap(t)

	_, err := s.Profile(context.Background(), mytesting.RandString())
	require.ErrorIs(t, err, ErrUserNotExist)
}

func TestListProfiles(t *testing.T) {
	t.Parallel()

	s := bootstrap(t)
	one := registerRandom(t, s)
	two := registerRandom(t, s)

	users, err := s.ListProfiles(context.Background())
	require.NoError(t, err)

	usernames := make([]string, 0, len(users))
	for _, u := range users {
		usernames = append(usernames, u.Username)
	}
	require.True(t, sort.StringsAreSorted(usernames))
	require.Contains(t, usernames, one.Username)
	require.Contains(t, usernames, two.Username)
}

func TestCreateMessage(t *testing.T) {
	t.Parallel()

	s := bootstrap(t)
	from := registerRandom(t, s)
	to := registerRandom(t, s)

	msg, err := s.CreateMessage(context.Background(), from.Username, to.Username, "Hi There!")
	require.NoError(t, err)
	require.Greater(t, msg.ID, int64(0))
	require.Equal(t, from.Username, msg.FromUsername)
	require.Equal(t, to.Username, msg.ToUsername)
	require.Nil(t, msg.ReadAt)
}

func TestCreateMessage_UnknownRecipient(t *testing.T) {
	t.Parallel()

	s := bootstrap(t)
	from := registerRandom(t, s)

	_, err := s.CreateMessage(context.Background(), from.Username, mytesting.RandString(), "Hi There!")
	require.ErrorIs(t, err, ErrUserNotExist)
}

func TestCreateMessage_UnknownSender(t *testing.T) {
	t.Parallel()

	s := bootstrap(t)
	to := registerRandom(t, s)

	_, err := s.CreateMessage(context.Background(), mytesting.RandString(), to.Username, "Hi There!")
	require.ErrorIs(t, err, ErrUserNotExist)
}

func TestMessageByID(t *testing.T) {
	t.Parallel()

	s := bootstrap(t)
	from := registerRandom(t, s)
	to := registerRandom(t, s)

	created, err := s.CreateMessage(context.Background(), from.Username, to.Username, "Hi There!")
	require.NoError(t, err)

	msg, err := s.MessageByID(context.Background(), created.ID)
	require.NoError(t, err)
	require.Equal(t, from.Username, msg.From.Username)
	require.Equal(t, from.Phone, msg.From.Phone)
	require.Equal(t, to.Username, msg.To.Username)
	require.Equal(t, "Hi There!", msg.Body)
	require.Nil(t, msg.ReadAt)
}

func TestMessageByID_NotExist(t *testing.T) {
	t.Parallel()

	s := bootstrap(t)

	_, err := s.MessageByID(context.Background(), 9223372036854775807)
	require.ErrorIs(t, err, ErrMessageNotExist)
}

func TestMarkRead(t *testing.T) {
	t.Parallel()

	s := bootstrap(t)
	from := registerRandom(t, s)
	to := registerRandom(t, s)

	created, err := s.CreateMessage(context.Background(), from.Username, to.Username, "read me")
	require.NoError(t, err)

	updated, err := s.MarkRead(context.Background(), created.ID)
	require.NoError(t, err)
	require.NotNil(t, updated.ReadAt)

	// second acknowledgment is a conflict, not a silent success
	_, err = s.MarkRead(context.Background(), created.ID)
	require.ErrorIs(t, err, ErrMessageAlreadyRead)
}

func TestMarkRead_NotExist(t *testing.T) {
	t.Parallel()

	s := bootstrap(t)

	_, err := s.MarkRead(context.Background(), 9223372036854775807)
	require.ErrorIs(t, err, ErrMessageNotExist)
}

func TestMessagesFromTo(t *testing.T) {
	t.Parallel()

	s := bootstrap(t)
	from := registerRandom(t, s)
	to := registerRandom(t, s)

	n := 3
	ids := make([]int64, n)
	for i := 0; i < n; i++ {
		msg, err := s.CreateMessage(context.Background(), from.Username, to.Username, mytesting.RandString())
		require.NoError(t, err)
		ids[i] = msg.ID
	}

	outgoing, err := s.MessagesFrom(context.Background(), from.Username)
	require.NoError(t, err)
	require.Len(t, outgoing, n)
	for i, m := range outgoing {
		require.Equal(t, ids[i], m.ID)
		require.Equal(t, to.Username, m.To.Username)
	}

	incoming, err := s.MessagesTo(context.Background(), to.Username)
	require.NoError(t, err)
	require.Len(t, incoming, n)
	for i, m := range incoming {
		require.Equal(t, ids[i], m.ID)
		require.Equal(t, from.Username, m.From.Username)
	}
}

func TestMessagesFrom_NoMessages(t *testing.T) {
	t.Parallel()

	s := bootstrap(t)
	user := registerRandom(t, s)

	messages, err := s.MessagesFrom(context.Background(), user.Username)
	require.NoError(t, err)
	require.NotNil(t, messages)
	require.Empty(t, messages)
}

func TestMessagesTo_UnknownUser(t *testing.T) {
	t.Parallel()

	s := bootstrap(t)

	_, err := s.MessagesTo(context.Background(), mytesting.RandString())
	require.ErrorIs(t, err, ErrUserNotExist)
}
