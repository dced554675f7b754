package repository

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditSchema(t *testing.T) {
	stmts := AuditSchema("scan")
	require.Len(t, stmts, 3)
	assert.Equal(t, "CREATE DATABASE IF NOT EXISTS scan", stmts[0])
	assert.True(t, strings.Contains(stmts[1], "scan.circuit_breaker_log"))
	assert.True(t, strings.Contains(stmts[2], "scan.system_log"))
}

func TestEncodeMetadata(t *testing.T) {
	s, err := encodeMetadata(nil)
	require.NoError(t, err)
	assert.Equal(t, "{}", s)

	s, err = encodeMetadata(map[string]any{"change_percent": -5.5, "symbol": "BTCUSDT"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"change_percent":-5.5,"symbol":"BTCUSDT"}`, s)
}
