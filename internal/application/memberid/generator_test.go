package memberid

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/member-auth/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockPrefixIndex struct{ mock.Mock }

func (m *mockPrefixIndex) HighestIDWithPrefix(ctx context.Context, prefix string) (string, bool, error) {
	args := m.Called(ctx, prefix)
	return args.String(0), args.Bool(1), args.Error(2)
}

func dob(year int) time.Time { return time.Date(year, 3, 4, 0, 0, 0, 0, time.UTC) }

func TestGenerate_FirstForPrefix(t *testing.T) {
	idx := &mockPrefixIndex{}
	idx.On("HighestIDWithPrefix", mock.Anything, "A01").Return("", false, nil)

	got, err := NewGenerator(idx).Generate(context.Background(), "Alice", dob(2001))
	require.NoError(t, err)
	assert.Equal(t, "A0101", got)
}

func TestGenerate_IncrementsHighest(t *testing.T) {
	idx := &mockPrefixIndex{}
	idx.On("HighestIDWithPrefix", mock.Anything, "A01").Return("A0107", true, nil)

	got, err := NewGenerator(idx).Generate(context.Background(), "Alice", dob(2001))
	require.NoError(t, err)
	assert.Equal(t, "A0108", got)
}

func TestGenerate_LowercaseAndUnicodeInitial(t *testing.T) {
	idx := &mockPrefixIndex{}
	idx.On("HighestIDWithPrefix", mock.Anything, "Z99").Return("", false, nil)
	idx.On("HighestIDWithPrefix", mock.Anything, "É05").Return("", false, nil)
	g := NewGenerator(idx)

	got, err := g.Generate(context.Background(), "  zoe", dob(1999))
	require.NoError(t, err)
	assert.Equal(t, "Z9901", got)

	got, err = g.Generate(context.Background(), "élodie", dob(2005))
	require.NoError(t, err)
	assert.Equal(t, "É0501", got)
}

func TestGenerate_CapacityExceeded(t *testing.T) {
	idx := &mockPrefixIndex{}
	idx.On("HighestIDWithPrefix", mock.Anything, "B90").Return("B9099", true, nil)

	_, err := NewGenerator(idx).Generate(context.Background(), "Bob", dob(1990))
	assert.True(t, errors.Is(err, domain.ErrCapacityExceeded))
}

func TestGenerate_EmptyName(t *testing.T) {
	_, err := NewGenerator(&mockPrefixIndex{}).Generate(context.Background(), "   ", dob(2000))
	assert.True(t, errors.Is(err, domain.ErrBadRequest))
}

func TestGenerate_StoreError(t *testing.T) {
	idx := &mockPrefixIndex{}
	idx.On("HighestIDWithPrefix", mock.Anything, "C00").Return("", false, errors.New("throttled"))

	_, err := NewGenerator(idx).Generate(context.Background(), "Carol", dob(2000))
	assert.ErrorContains(t, err, "throttled")
}

func TestGenerate_MalformedHighest(t *testing.T) {
	idx := &mockPrefixIndex{}
	idx.On("HighestIDWithPrefix", mock.Anything, "C00").Return("C00x", true, nil)

	_, err := NewGenerator(idx).Generate(context.Background(), "Carol", dob(2000))
	assert.ErrorContains(t, err, "malformed member id")
}

func TestNext(t *testing.T) {
	for id, want := range map[string]string{"A0101": "A0102", "B9009": "B9010", "É0541": "É0542"} {
		got, err := Next(id)
		require.NoError(t, err, id)
		assert.Equal(t, want, got)
	}
}

func TestNext_CapacityAndMalformed(t *testing.T) {
	_, err := Next("Z9999")
	assert.ErrorIs(t, err, domain.ErrCapacityExceeded)

	for _, id := range []string{"", "A1", "A01x1"} {
		_, err := Next(id)
		assert.Error(t, err, id)
	}
}
