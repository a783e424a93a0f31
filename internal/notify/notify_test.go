package notify

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"sportify/worker/internal/models"
	"sportify/worker/internal/repository/memstore"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	failFor map[int]bool
	sent    []int
}

func (s *recordingSender) Send(ctx context.Context, m *models.MatchDetails) error {
	if s.failFor[m.ID] {
		return errors.New("chat unavailable")
	}
	s.sent = append(s.sent, m.ID)
	return nil
}

type notifyFixture struct {
	ctx   context.Context
	store *memstore.Store
	tour  *models.Tournament
	home  *models.Team
	away  *models.Team
}

func newNotifyFixture(t *testing.T) *notifyFixture {
	t.Helper()
	f := &notifyFixture{ctx: context.Background(), store: memstore.New()}

	f.tour = &models.Tournament{Name: "Premier League", RemoteID: sql.NullInt64{Int64: 426, Valid: true}}
	require.NoError(t, f.store.Tournaments.UpsertByRemoteID(f.ctx, f.tour))

	f.home = &models.Team{Name: "Arsenal FC"}
	f.away = &models.Team{Name: "Chelsea FC"}
	require.NoError(t, f.store.Teams.Create(f.ctx, f.home))
	require.NoError(t, f.store.Teams.Create(f.ctx, f.away))
	return f
}

func (f *notifyFixture) addMatch(t *testing.T, finished bool) *models.Match {
	t.Helper()
	m := &models.Match{
		TournamentID: f.tour.ID,
		HomeTeamID:   f.home.ID,
		AwayTeamID:   f.away.ID,
		Datetime:     time.Date(2024, 5, 1, 18, 0, 0, 0, time.UTC),
	}
	if finished {
		m.SetScore(2, 1)
	}
	require.NoError(t, f.store.Matches.Save(f.ctx, m))
	return m
}

func TestDispatcher_MarksOnlyAfterSuccessfulSend(t *testing.T) {
	f := newNotifyFixture(t)
	ok := f.addMatch(t, true)
	failing := f.addMatch(t, true)
	unplayed := f.addMatch(t, false)

	sender := &recordingSender{failFor: map[int]bool{failing.ID: true}}
	d := NewDispatcher(f.store.Matches, sender)

	sum, err := d.Dispatch(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, Summary{Pending: 2, Sent: 1, Failed: 1}, sum)
	assert.Equal(t, []int{ok.ID}, sender.sent)

	got, err := f.store.Matches.GetByID(f.ctx, ok.ID)
	require.NoError(t, err)
	assert.True(t, got.NotificationSent)

	got, err = f.store.Matches.GetByID(f.ctx, failing.ID)
	require.NoError(t, err)
	assert.False(t, got.NotificationSent, "failed send is retried later")

	got, err = f.store.Matches.GetByID(f.ctx, unplayed.ID)
	require.NoError(t, err)
	assert.False(t, got.NotificationSent)

	// The failed match is retried once the chat recovers
	sender.failFor = nil
	sum, err = d.Dispatch(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, Summary{Pending: 1, Sent: 1}, sum)
	assert.Equal(t, []int{ok.ID, failing.ID}, sender.sent)

	sum, err = d.Dispatch(f.ctx)
	require.NoError(t, err)
	assert.Zero(t, sum.Pending)
}

type fakeBot struct {
	sent []tgbotapi.Chattable
	err  error
}

func (b *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if b.err != nil {
		return tgbotapi.Message{}, b.err
	}
	b.sent = append(b.sent, c)
	return tgbotapi.Message{MessageID: len(b.sent)}, nil
}

func finishedDetails() *models.MatchDetails {
	d := &models.MatchDetails{
		Match: models.Match{
			ID:       9,
			Datetime: time.Date(2024, 5, 1, 18, 0, 0, 0, time.UTC),
		},
		HomeTeamName:   "Brighton & Hove Albion",
		AwayTeamName:   "Arsenal FC",
		TournamentName: "Premier League",
	}
	d.SetScore(0, 3)
	return d
}

func TestTelegramSender_Send(t *testing.T) {
	bot := &fakeBot{}
	sender := NewTelegramSenderWithBot(bot, -100123)

	require.NoError(t, sender.Send(context.Background(), finishedDetails()))
	require.Len(t, bot.sent, 1)

	msg, ok := bot.sent[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, int64(-100123), msg.ChatID)
	assert.Equal(t, tgbotapi.ModeHTML, msg.ParseMode)
	assert.Contains(t, msg.Text, "Brighton &amp; Hove Albion <b>0 - 3</b> Arsenal FC")
}

func TestTelegramSender_SendError(t *testing.T) {
	bot := &fakeBot{err: errors.New("Too Many Requests: retry after 5")}
	sender := NewTelegramSenderWithBot(bot, 1)

	err := sender.Send(context.Background(), finishedDetails())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "match 9")
}

func TestFormatResult(t *testing.T) {
	text := FormatResult(finishedDetails())

	assert.Equal(t,
		"🏆 <b>Premier League</b>\nBrighton &amp; Hove Albion <b>0 - 3</b> Arsenal FC\nFull time, 01 May 18:00 UTC",
		text)
}
