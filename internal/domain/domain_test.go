package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriority_String(t *testing.T) {
	assert.Equal(t, "low", PriorityLow.String())
	assert.Equal(t, "normal", PriorityNormal.String())
	assert.Equal(t, "high", PriorityHigh.String())
	assert.Equal(t, "urgent", PriorityUrgent.String())
	assert.Equal(t, "normal", Priority(0).String())
	assert.Equal(t, "normal", Priority(9).String())
}

func TestParsePriority(t *testing.T) {
	p, err := ParsePriority(" URGENT ")
	require.NoError(t, err)
	assert.Equal(t, PriorityUrgent, p)

	_, err = ParsePriority("critical")
	assert.Error(t, err)
}

func TestPriority_JSON(t *testing.T) {
	b, err := json.Marshal(struct {
		P Priority `json:"p"`
	}{PriorityHigh})
	require.NoError(t, err)
	assert.JSONEq(t, `{"p":"high"}`, string(b))

	var v struct {
		P Priority `json:"p"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"p":"low"}`), &v))
	assert.Equal(t, PriorityLow, v.P)
	require.NoError(t, json.Unmarshal([]byte(`{"p":4}`), &v))
	assert.Equal(t, PriorityUrgent, v.P)
	assert.Error(t, json.Unmarshal([]byte(`{"p":7}`), &v))
	assert.Error(t, json.Unmarshal([]byte(`{"p":"meh"}`), &v))
}

func TestRole(t *testing.T) {
	assert.True(t, RoleSuperAdmin.AtLeastAdmin())
	assert.True(t, RoleAdmin.AtLeastAdmin())
	assert.False(t, RoleGestor.AtLeastAdmin())
	assert.True(t, RoleGestor.IsStaff())
	assert.False(t, RoleCompany.IsStaff())
	assert.False(t, RoleEmployee.IsStaff())
	assert.False(t, Role("ROOT").Valid())
}

func TestLeadStage_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to LeadStage
		ok       bool
	}{
		{StageNew, StageContacted, true},
		{StageNew, StageProposal, true},
		{StageNegotiation, StageWon, true},
		{StageQualified, StageContacted, false},
		{StageContacted, StageLost, true},
		{StageLost, StageNew, true},
		{StageLost, StageContacted, false},
		{StageWon, StageLost, false},
		{StageWon, StageNew, false},
		{StageNew, StageNew, false},
		{StageNew, LeadStage("DORMANT"), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.ok, tt.from.CanTransitionTo(tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestGroupOfferStatus_CanTransitionTo(t *testing.T) {
	assert.True(t, GroupOfferPending.CanTransitionTo(GroupOfferInReview))
	assert.True(t, GroupOfferPending.CanTransitionTo(GroupOfferCancelled))
	assert.True(t, GroupOfferInReview.CanTransitionTo(GroupOfferApproved))
	assert.False(t, GroupOfferInReview.CanTransitionTo(GroupOfferCancelled))
	assert.False(t, GroupOfferApproved.CanTransitionTo(GroupOfferRejected))
	assert.True(t, GroupOfferRejected.Terminal())
}

func TestContentStatus_CanTransitionTo(t *testing.T) {
	assert.True(t, ContentDraft.CanTransitionTo(ContentPending))
	assert.False(t, ContentDraft.CanTransitionTo(ContentPublished))
	assert.True(t, ContentRejected.CanTransitionTo(ContentPending))
	assert.True(t, ContentPublished.CanTransitionTo(ContentArchived))
	assert.False(t, ContentArchived.CanTransitionTo(ContentPublished))
}

func TestValidTaxID(t *testing.T) {
	valid := []string{"B12345674", "P1234567D", "12345678Z", "X1234567L"}
	for _, v := range valid {
		assert.True(t, ValidTaxID(v), v)
	}
	invalid := []string{"B12345675", "P12345674", "12345678A", "B1234567", "I12345674", ""}
	for _, v := range invalid {
		assert.False(t, ValidTaxID(v), v)
	}
	assert.Equal(t, "B12345674", NormalizeTaxID(" b-1234.5674 "))
}

func TestValidCIF(t *testing.T) {
	for _, v := range []string{"B12345674", "P1234567D", "A76543214"} {
		assert.True(t, ValidCIF(v), v)
	}
	for _, v := range []string{"12345678Z", "X1234567L", "B12345675", "A7654321D", ""} {
		assert.False(t, ValidCIF(v), v)
	}
}

func TestProfileFor(t *testing.T) {
	birth := time.Date(1985, 4, 23, 0, 0, 0, 0, time.UTC)
	u := &User{
		ID: "u1", Name: "Montse", Email: "montse@gencat.cat", Phone: "600111222",
		Department: "Cultura", Administration: "Generalitat", City: "Girona",
		Bio: "Bibliotecària", BirthDate: &birth, Role: RoleEmployee,
		Privacy: DefaultPrivacy(),
	}

	stranger := u.ProfileFor(Actor{UserID: "u2", Role: RoleEmployee})
	assert.Nil(t, stranger.Email)
	assert.Nil(t, stranger.Phone)
	assert.Nil(t, stranger.City)
	assert.Nil(t, stranger.BirthDate)
	assert.Nil(t, stranger.Privacy)
	require.NotNil(t, stranger.Department)
	assert.Equal(t, "Cultura", *stranger.Department)
	assert.Equal(t, "Generalitat", *stranger.Administration)
	assert.Equal(t, "Bibliotecària", *stranger.Bio)

	b, err := json.Marshal(stranger)
	require.NoError(t, err)
	assert.NotContains(t, string(b), "email")
	assert.NotContains(t, string(b), "phone")

	for _, viewer := range []Actor{{UserID: "u1", Role: RoleEmployee}, {UserID: "a", Role: RoleAdmin}, {UserID: "s", Role: RoleSuperAdmin}} {
		full := u.ProfileFor(viewer)
		require.NotNil(t, full.Email)
		assert.Equal(t, "montse@gencat.cat", *full.Email)
		assert.NotNil(t, full.Phone)
		assert.NotNil(t, full.City)
		assert.Equal(t, &birth, full.BirthDate)
		assert.NotNil(t, full.Privacy)
	}

	u.Privacy = PrivacySettings{ShowEmail: true, ShowCity: true}
	gestor := u.ProfileFor(Actor{UserID: "g", Role: RoleGestor})
	assert.NotNil(t, gestor.Email)
	assert.NotNil(t, gestor.City)
	assert.Nil(t, gestor.Department)
	assert.Nil(t, gestor.Bio)
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

func TestQuotePlanChange(t *testing.T) {
	basic := Plan{ID: "basic", PriceCents: 3000, PeriodDays: 30}
	pro := Plan{ID: "pro", PriceCents: 9000, PeriodDays: 30}
	yearly := Plan{ID: "yearly", PriceCents: 100000, PeriodDays: 365}
	now := day(2026, 3, 1)

	t.Run("no current plan pays full price", func(t *testing.T) {
		q := QuotePlanChange("c1", nil, nil, nil, pro, now)
		assert.True(t, q.FullPeriod)
		assert.Equal(t, int64(9000), q.AmountDueCents)
		assert.Equal(t, now, q.PeriodStart)
		assert.Equal(t, day(2026, 3, 31), q.RenewsAt)
		assert.Nil(t, q.FromPlanID)
	})

	t.Run("ended period pays full price", func(t *testing.T) {
		renews := now.Add(-time.Hour)
		q := QuotePlanChange("c1", &basic, nil, &renews, pro, now)
		assert.True(t, q.FullPeriod)
		assert.Equal(t, int64(9000), q.AmountDueCents)
	})

	t.Run("upgrade mid period", func(t *testing.T) {
		start := day(2026, 2, 14)
		renews := day(2026, 3, 16)
		q := QuotePlanChange("c1", &basic, &start, &renews, pro, now)
		assert.False(t, q.FullPeriod)
		assert.Equal(t, 15, q.RemainingDays)
		assert.Equal(t, int64(1500), q.CreditCents)
		assert.Equal(t, int64(4500), q.ChargeCents)
		assert.Equal(t, int64(3000), q.AmountDueCents)
		assert.Equal(t, renews, q.RenewsAt)
		assert.Equal(t, start, q.PeriodStart)
	})

	t.Run("downgrade yields credit", func(t *testing.T) {
		renews := now.Add(10 * 24 * time.Hour)
		q := QuotePlanChange("c1", &pro, nil, &renews, basic, now)
		assert.Equal(t, 10, q.RemainingDays)
		assert.Equal(t, int64(3000), q.CreditCents)
		assert.Equal(t, int64(1000), q.ChargeCents)
		assert.Equal(t, int64(-2000), q.AmountDueCents)
	})

	t.Run("partial day rounds up", func(t *testing.T) {
		renews := now.Add(36 * time.Hour)
		q := QuotePlanChange("c1", &basic, nil, &renews, pro, now)
		assert.Equal(t, 2, q.RemainingDays)
	})

	t.Run("remaining clamped to current period", func(t *testing.T) {
		renews := now.AddDate(0, 0, 45)
		q := QuotePlanChange("c1", &basic, nil, &renews, yearly, now)
		assert.Equal(t, 30, q.RemainingDays)
		assert.Equal(t, int64(3000), q.CreditCents)
		// 100000 * 30 / 365 = 8219.17
		assert.Equal(t, int64(8219), q.ChargeCents)
	})
}

func TestProrateRounding(t *testing.T) {
	assert.Equal(t, int64(5), prorate(9, 1, 2))     // 4.5 -> 5
	assert.Equal(t, int64(-5), prorate(-9, 1, 2))   // -4.5 -> -5
	assert.Equal(t, int64(3), prorate(10, 1, 3))    // 3.33 -> 3
	assert.Equal(t, int64(7), prorate(20, 1, 3))    // 6.67 -> 7
	assert.Equal(t, int64(0), prorate(1000, 0, 30)) // nothing left
}

func TestOfferCouponExpiry(t *testing.T) {
	now := day(2026, 5, 1)
	o := &Offer{Active: true, CouponValidityDays: 10}
	assert.Equal(t, day(2026, 5, 11), o.CouponExpiry(now))

	end := day(2026, 5, 4)
	o.ExpiresAt = &end
	assert.Equal(t, end, o.CouponExpiry(now))
	assert.True(t, o.Available(now))
	assert.False(t, o.Available(day(2026, 5, 5)))

	o.CouponValidityDays = 0
	o.ExpiresAt = nil
	assert.Equal(t, day(2026, 5, 31), o.CouponExpiry(now))
}

func TestDirectKeyAndPreview(t *testing.T) {
	assert.Equal(t, DirectKey("b", "a"), DirectKey("a", "b"))
	assert.Equal(t, "short", Preview("short"))

	long := make([]rune, 200)
	for i := range long {
		long[i] = 'à'
	}
	p := []rune(Preview(string(long)))
	assert.Len(t, p, PreviewLength)
	assert.Equal(t, '…', p[len(p)-1])
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "que-es-la-publica", Slugify("Què és La Pública?"))
	assert.Equal(t, "l-ajuntament-de-lleida-obre-convocatoria-2026", Slugify("  L'Ajuntament de Lleida obre convocatòria 2026!! "))
	assert.Equal(t, "post", Slugify("¡¿!?"))
}
