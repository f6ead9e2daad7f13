package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, stdin string, args ...string) string {
	t.Helper()
	color.NoColor = true
	var out bytes.Buffer
	cmd := newRootCmd(viper.New())
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute())
	return out.String()
}

func TestChatFromArgs(t *testing.T) {
	out := run(t, "", "chat", "--session", "t-1", "-v", "ibuprofen", "yes")
	assert.Contains(t, out, "you> ibuprofen")
	assert.Contains(t, out, "Added 1 x Ibuprofen 200mg")
	assert.Contains(t, out, "branch=search")
}

func TestChatFromStdinSkipsComments(t *testing.T) {
	out := run(t, "# warm up\nhello\n\n", "chat")
	assert.Equal(t, 1, strings.Count(out, "you> "))
	assert.Contains(t, out, "you> hello")
}

func TestChatRejectsUnknownBulkPolicy(t *testing.T) {
	cmd := newRootCmd(viper.New())
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"chat", "--bulk", "everything", "hello"})
	assert.Error(t, cmd.Execute())
}

func TestRouteDescribesBlockedMessage(t *testing.T) {
	out := run(t, "", "route", "can I buy amoxicillin without a prescription")
	assert.Contains(t, out, "normalized:")
	assert.Contains(t, out, "intent:")
	assert.NotContains(t, out, "blocked:    no")
}

func TestRouteKeepsProductWords(t *testing.T) {
	out := run(t, "", "route", "add otrivin nasal spray")
	assert.Contains(t, out, "normalized: add otrivin nasal spray")
}

func TestChatAddsNasalSpray(t *testing.T) {
	out := run(t, "", "chat", "--session", "t-2", "-v", "add otrivin nasal spray")
	assert.Contains(t, out, "Added 1 x Otrivin Nasal Spray")
	assert.Contains(t, out, "branch=cart_mutation")
}

func TestSeedSQLite(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "pharmacy.db")
	out := run(t, "", "seed", "--driver", "sqlite", "--dsn", dsn)
	assert.Contains(t, out, "inserted 9 of 9 products")
	assert.Contains(t, out, "Panadol Extra")

	out = run(t, "", "seed", "--driver", "sqlite", "--dsn", dsn)
	assert.Contains(t, out, "inserted 0 of 9 products")
}
