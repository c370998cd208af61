package preferences

import (
	"encoding/json"
	"testing"

	"github.com/ksred/paper-api/internal/database"
	"github.com/ksred/paper-api/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	db, err := database.OpenInMemory("preferences_" + t.Name())
	require.NoError(t, err)
	return NewService(db)
}

func TestGetBeforeFirstWrite(t *testing.T) {
	service := newTestService(t)

	_, err := service.Get()
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestUpdateThenGet(t *testing.T) {
	service := newTestService(t)

	document := json.RawMessage(`{"expressLogin":true,"defaultEquityOrderLegInstruction":"BUY"}`)
	require.NoError(t, service.Update(document))

	got, err := service.Get()
	require.NoError(t, err)
	assert.JSONEq(t, string(document), string(got))
}

func TestUpdateIsLastWriteWins(t *testing.T) {
	service := newTestService(t)

	require.NoError(t, service.Update(json.RawMessage(`{"v":1}`)))
	require.NoError(t, service.Update(json.RawMessage(`{"v":2}`)))

	got, err := service.Get()
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":2}`, string(got))
}

func TestUpdateRejectsInvalidJSON(t *testing.T) {
	service := newTestService(t)

	err := service.Update(json.RawMessage(`{"broken":`))
	assert.ErrorIs(t, err, types.ErrInvalidInput)

	err = service.Update(nil)
	assert.ErrorIs(t, err, types.ErrInvalidInput)
}
