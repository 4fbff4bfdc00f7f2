package movement

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validMovement() Movement {
	return Movement{
		ShopID:    "S1",
		ArticleID: "A1",
		Kind:      KindOut,
		Quantity:  3,
		Reason:    "sale",
	}
}

func TestValidate_Accepts(t *testing.T) {
	v := NewValidator()
	for _, k := range Kinds {
		m := validMovement()
		m.Kind = k
		got, err := v.Validate(m)
		require.NoError(t, err, "kind %s", k)
		assert.Equal(t, k, got.Kind)
	}
}

func TestValidate_RejectsNonPositiveQuantity(t *testing.T) {
	v := NewValidator()
	for _, qty := range []int64{0, -1, -100} {
		m := validMovement()
		m.Quantity = qty
		_, err := v.Validate(m)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidMovement))

		var ve *ValidationError
		require.ErrorAs(t, err, &ve)
		require.Len(t, ve.Fields, 1)
		assert.Equal(t, "qty", ve.Fields[0].Field)
		assert.Equal(t, "gt", ve.Fields[0].Rule)
	}
}

func TestValidate_RejectsUnknownKind(t *testing.T) {
	m := validMovement()
	m.Kind = "transfer"
	_, err := NewValidator().Validate(m)

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "type", ve.Fields[0].Field)
	assert.Contains(t, err.Error(), "must be one of in, out, adjust")
}

func TestValidate_CollectsAllFields(t *testing.T) {
	_, err := NewValidator().Validate(Movement{Reason: "x"})

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	fields := make([]string, 0, len(ve.Fields))
	for _, f := range ve.Fields {
		fields = append(fields, f.Field)
	}
	assert.ElementsMatch(t, []string{"shop_id", "article_id", "type", "qty"}, fields)
	assert.True(t, IsValidationError(err))
}

func TestValidate_WhitespaceIDsAreMissing(t *testing.T) {
	m := validMovement()
	m.ShopID = "   "
	_, err := NewValidator().Validate(m)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shop_id is required")
}

func TestNormalize(t *testing.T) {
	// "e" + combining acute accent composes to U+00E9 under NFC.
	m := Movement{
		ShopID:     " S1 ",
		ArticleID:  "A1\t",
		Kind:       " OUT ",
		Quantity:   1,
		Reason:     "cafe\u0301",
		CapturedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.FixedZone("x", 3600)),
	}
	got := m.Normalize()
	assert.Equal(t, "S1", got.ShopID)
	assert.Equal(t, "A1", got.ArticleID)
	assert.Equal(t, KindOut, got.Kind)
	assert.Equal(t, "caf\u00e9", got.Reason)
	assert.Equal(t, time.UTC, got.CapturedAt.Location())
	assert.Equal(t, 2, got.CapturedAt.Hour())
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind(" Adjust")
	require.NoError(t, err)
	assert.Equal(t, KindAdjust, k)

	_, err = ParseKind("sideways")
	assert.ErrorIs(t, err, ErrInvalidMovement)
}

func TestMovementString(t *testing.T) {
	assert.Equal(t, "out S1/A1 qty=3", validMovement().String())
}
