package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lapublica/platform/internal/domain"
	"github.com/lapublica/platform/internal/pkg/apperr"
	"github.com/lapublica/platform/internal/service/content"
	"github.com/lapublica/platform/internal/service/conversation"
	"github.com/lapublica/platform/internal/service/coupon"
	"github.com/lapublica/platform/internal/service/groupoffer"
	"github.com/lapublica/platform/internal/service/lead"
	"github.com/lapublica/platform/internal/service/notification"
)

func setupTestDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return db, mock
}

func TestWhere_Placeholders(t *testing.T) {
	var w where
	assert.Empty(t, w.sql())

	w.add("a = ?", 1)
	w.add("(b ILIKE ? OR c ILIKE ?)", "x", "x")
	w.add("d IS NULL")
	assert.Equal(t, " WHERE a = $1 AND (b ILIKE $2 OR c ILIKE $3) AND d IS NULL", w.sql())
	assert.Equal(t, "$4", w.next(50))
	assert.Equal(t, []any{1, "x", "x", 50}, w.args)
}

func TestLikePattern_EscapesWildcards(t *testing.T) {
	assert.Equal(t, `%50\%\_off%`, likePattern(" 50%_off "))
}

func TestPageLimit(t *testing.T) {
	assert.Equal(t, 50, pageLimit(0))
	assert.Equal(t, 10, pageLimit(10))
	assert.Equal(t, 200, pageLimit(1000))
}

func TestWriteErr_ForeignKeyIsInvalid(t *testing.T) {
	err := writeErr("insert", &pq.Error{Code: "23503"})
	assert.Equal(t, apperr.KindInvalid, apperr.KindOf(err))
}

func TestCouponRepo_InsertMapsUniqueViolations(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewCouponRepo(db)
	c := &domain.Coupon{ID: "c1", Code: "ABCD2345", OfferID: "o1", UserID: "u1", CompanyID: "co1",
		Status: domain.CouponActive, ExpiresAt: time.Now().Add(time.Hour), CreatedAt: time.Now()}

	mock.ExpectExec("INSERT INTO coupons").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "coupons_code_key"})
	assert.ErrorIs(t, repo.Insert(context.Background(), c), coupon.ErrCodeTaken)

	mock.ExpectExec("INSERT INTO coupons").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "coupons_one_active_idx"})
	assert.ErrorIs(t, repo.Insert(context.Background(), c), coupon.ErrDuplicateActive)
}

func TestCouponRepo_RedeemNotActive(t *testing.T) {
	db, mock := setupTestDB(t)
	mock.ExpectExec("UPDATE coupons").
		WithArgs(sqlmock.AnyArg(), "staff1", "c1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := NewCouponRepo(db).Redeem(context.Background(), "c1", "staff1", time.Now())
	assert.ErrorIs(t, err, coupon.ErrNotActive)
}

func TestCouponRepo_ExpireDue(t *testing.T) {
	db, mock := setupTestDB(t)
	mock.ExpectExec("UPDATE coupons SET status = 'EXPIRED'").
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := NewCouponRepo(db).ExpireDue(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestCouponRepo_GetByCodeNotFound(t *testing.T) {
	db, mock := setupTestDB(t)
	mock.ExpectQuery("FROM coupons cp").WithArgs("NOPE").WillReturnError(sql.ErrNoRows)

	_, err := NewCouponRepo(db).GetByCode(context.Background(), "NOPE")
	assert.ErrorIs(t, err, coupon.ErrNotFound)
}

func TestNotificationRepo_List(t *testing.T) {
	db, mock := setupTestDB(t)
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT COUNT").WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery("FROM notifications WHERE user_id = \\$1 AND read_at IS NULL ORDER BY created_at DESC").
		WithArgs("u1", 10, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "type", "title", "body", "link", "priority", "read_at", "created_at"}).
			AddRow("n1", "u1", "SYSTEM", "Hola", "", "", int64(3), nil, now).
			AddRow("n2", "u1", "NEW_MESSAGE", "Missatge", "cos", "/c/1", int64(2), nil, now))

	out, total, err := NewNotificationRepo(db).List(context.Background(), "u1",
		notification.ListFilter{UnreadOnly: true, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, out, 2)
	assert.Equal(t, domain.PriorityHigh, out[0].Priority)
	assert.Equal(t, domain.NotifyNewMessage, out[1].Type)
	assert.Nil(t, out[1].ReadAt)
}

func TestNotificationRepo_MarkReadOtherUser(t *testing.T) {
	db, mock := setupTestDB(t)
	mock.ExpectExec("UPDATE notifications").WillReturnResult(sqlmock.NewResult(0, 0))

	err := NewNotificationRepo(db).MarkRead(context.Background(), "n1", "intruder", time.Now())
	assert.ErrorIs(t, err, notification.ErrNotFound)
}

func TestConversationRepo_CreateDirectRace(t *testing.T) {
	db, mock := setupTestDB(t)
	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO conversations").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "conversations_direct_key_key"})
	mock.ExpectRollback()

	c := &domain.Conversation{ID: "cv1", CreatedBy: "a", LastMessageAt: now, CreatedAt: now}
	m := &domain.Message{ID: "m1", ConversationID: "cv1", SenderID: "a", Body: "hola", CreatedAt: now}
	err := NewConversationRepo(db).Create(context.Background(), c, []string{"a", "b"}, "a:b", m)
	assert.ErrorIs(t, err, conversation.ErrDirectExists)
}

func TestConversationRepo_MessagesTupleCursor(t *testing.T) {
	db, mock := setupTestDB(t)
	at := time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC)
	cols := []string{"id", "conversation_id", "sender_id", "name", "body", "created_at"}

	mock.ExpectQuery(`WHERE m.conversation_id = \$1 AND \(m.created_at, m.id\) < \(\$2, \$3\) ORDER BY m.created_at DESC, m.id DESC LIMIT \$4`).
		WithArgs("cv1", at, "m5", 2).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("m4", "cv1", "a", "Jordi", "quatre", at).
			AddRow("m3", "cv1", "a", "Jordi", "tres", at))

	out, err := NewConversationRepo(db).Messages(context.Background(), "cv1", &conversation.Cursor{At: at, ID: "m5"}, 2)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "m4", out[0].ID)

	mock.ExpectQuery(`WHERE m.conversation_id = \$1 AND m.created_at < \$2 ORDER BY`).
		WithArgs("cv1", at, 2).
		WillReturnRows(sqlmock.NewRows(cols))
	_, err = NewConversationRepo(db).Messages(context.Background(), "cv1", &conversation.Cursor{At: at}, 2)
	require.NoError(t, err)
}

func TestConversationRepo_CreateMarksSenderRead(t *testing.T) {
	db, mock := setupTestDB(t)
	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO conversations").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO conversation_participants").
		WithArgs("cv1", "a", sql.NullTime{Time: now, Valid: true}, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO conversation_participants").
		WithArgs("cv1", "b", sql.NullTime{}, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO messages").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	c := &domain.Conversation{ID: "cv1", CreatedBy: "a", LastMessageAt: now, CreatedAt: now}
	m := &domain.Message{ID: "m1", ConversationID: "cv1", SenderID: "a", Body: "hola", CreatedAt: now}
	require.NoError(t, NewConversationRepo(db).Create(context.Background(), c, []string{"a", "b"}, "", m))
}

func TestGroupOfferRepo_TransitionStale(t *testing.T) {
	db, mock := setupTestDB(t)
	mock.ExpectExec("UPDATE group_offer_requests").WillReturnResult(sqlmock.NewResult(0, 0))

	err := NewGroupOfferRepo(db).Transition(context.Background(), "g1",
		[]domain.GroupOfferStatus{domain.GroupOfferPending}, domain.GroupOfferCancelled, groupoffer.Review{})
	assert.ErrorIs(t, err, groupoffer.ErrInvalidTransition)
}

func TestLeadRepo_ConvertAlreadyConverted(t *testing.T) {
	db, mock := setupTestDB(t)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO companies").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE leads SET converted_company_id").
		WithArgs("co1", "l1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	c := &domain.Company{ID: "co1", Name: "Acme", CIF: "B12345674", Status: domain.CompanyPending, CreatedAt: time.Now()}
	err := NewLeadRepo(db).Convert(context.Background(), "l1", c)
	assert.ErrorIs(t, err, lead.ErrAlreadyConverted)
}

func TestLeadRepo_Convert(t *testing.T) {
	db, mock := setupTestDB(t)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO companies").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE leads SET converted_company_id").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	c := &domain.Company{ID: "co1", Name: "Acme", Status: domain.CompanyPending, CreatedAt: time.Now()}
	require.NoError(t, NewLeadRepo(db).Convert(context.Background(), "l1", c))
}

func TestLeadRepo_MarkRemindedOnce(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewLeadRepo(db)
	mock.ExpectExec("UPDATE lead_tasks SET reminded_at").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE lead_tasks SET reminded_at").WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.MarkReminded(context.Background(), "t1", time.Now())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.MarkReminded(context.Background(), "t1", time.Now())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLeadRepo_Pipeline(t *testing.T) {
	db, mock := setupTestDB(t)
	mock.ExpectQuery("FROM leads WHERE gestor_id = \\$1 GROUP BY stage").WithArgs("g1").
		WillReturnRows(sqlmock.NewRows([]string{"stage", "count", "sum"}).
			AddRow("NEW", int64(4), int64(120000)).
			AddRow("WON", int64(1), int64(50000)))

	out, err := NewLeadRepo(db).Pipeline(context.Background(), "g1")
	require.NoError(t, err)
	assert.Equal(t, []domain.StageSummary{
		{Stage: domain.StageNew, Count: 4, ValueCents: 120000},
		{Stage: domain.StageWon, Count: 1, ValueCents: 50000},
	}, out)
}

func TestContentRepo_CreateDuplicateSource(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewContentRepo(db)
	src := "https://acme.example/news/1"
	c := &domain.Content{ID: "ct1", Kind: domain.KindBlog, AuthorID: "u1", Title: "Hola", Slug: "hola",
		Body: "cos", SourceURL: &src, Status: domain.ContentDraft}

	mock.ExpectExec("INSERT INTO content").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "content_source_url_key"})
	assert.ErrorIs(t, repo.Create(context.Background(), c), content.ErrDuplicateSource)

	mock.ExpectExec("INSERT INTO content").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "content_slug_key"})
	assert.ErrorIs(t, repo.Create(context.Background(), c), content.ErrSlugTaken)
}

func TestContentRepo_SlugsPattern(t *testing.T) {
	db, mock := setupTestDB(t)
	mock.ExpectQuery("SELECT slug FROM content").
		WithArgs("hola-mon", `^hola-mon-[0-9]+$`).
		WillReturnRows(sqlmock.NewRows([]string{"slug"}).AddRow("hola-mon").AddRow("hola-mon-2"))

	out, err := NewContentRepo(db).Slugs(context.Background(), "hola-mon")
	require.NoError(t, err)
	assert.Equal(t, []string{"hola-mon", "hola-mon-2"}, out)
}

func TestDashboardRepo_CompanyStats(t *testing.T) {
	db, mock := setupTestDB(t)
	since := time.Now().Add(-30 * 24 * time.Hour)
	mock.ExpectQuery("FROM group_offer_requests WHERE company_id").WithArgs("co1").
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).
			AddRow("PENDING", int64(2)).AddRow("APPROVED", int64(1)))
	mock.ExpectQuery("FROM offers").WithArgs("co1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(5)))
	mock.ExpectQuery("FROM coupons WHERE company_id").WithArgs("co1", since).
		WillReturnRows(sqlmock.NewRows([]string{"issued", "redeemed"}).AddRow(int64(40), int64(12)))

	st, err := NewDashboardRepo(db).CompanyStats(context.Background(), "co1", since)
	require.NoError(t, err)
	assert.Equal(t, 5, st.ActiveOffers)
	assert.Equal(t, 40, st.CouponsIssued)
	assert.Equal(t, 12, st.CouponsRedeemed)
	assert.Equal(t, 2, st.GroupOffersByStatus[domain.GroupOfferPending])
	assert.Equal(t, 1, st.GroupOffersByStatus[domain.GroupOfferApproved])
}
