package cmd

import (
	"bytes"
	"testing"
	"time"

	"potsync/application"
	"potsync/domain/entities"
	"potsync/domain/services"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigureLogging(t *testing.T) {
	defer log.SetLevel(log.InfoLevel)
	defer log.SetFormatter(&log.TextFormatter{})

	require.NoError(t, configureLogging("debug", "json"))
	assert.Equal(t, log.DebugLevel, log.GetLevel())
	assert.IsType(t, &log.JSONFormatter{}, log.StandardLogger().Formatter)

	require.NoError(t, configureLogging("warn", "TEXT"))
	assert.Equal(t, log.WarnLevel, log.GetLevel())
	assert.IsType(t, &log.TextFormatter{}, log.StandardLogger().Formatter)

	assert.Error(t, configureLogging("loud", "text"))
	assert.Error(t, configureLogging("info", "xml"))
}

func TestRootCommandTree(t *testing.T) {
	root := NewRootCommand()

	for _, path := range [][]string{
		{"run"},
		{"sync"},
		{"migrate", "up"},
		{"migrate", "down"},
		{"migrate", "status"},
		{"cooldown", "list"},
		{"cooldown", "clear"},
	} {
		found, _, err := root.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], found.Name())
	}

	run, _, err := root.Find([]string{"run"})
	require.NoError(t, err)
	flag := run.Flags().Lookup("migrate")
	require.NotNil(t, flag)
	assert.Equal(t, "true", flag.DefValue)
}

func TestPrintCooldowns(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	until := now.Add(2 * time.Hour)
	manager := services.NewCooldownManager(nil, 3, func() time.Time { return now })

	var out bytes.Buffer
	printCooldowns(&out, []*entities.CreditAccount{
		{Type: "amex", Cooldown: entities.Cooldown{Until: &until}},
		{Type: "barclaycard"},
	}, manager)

	assert.Contains(t, out.String(), "amex")
	assert.Contains(t, out.String(), "active   until 2024-03-01T14:00:00Z")
	assert.Contains(t, out.String(), "barclaycard")
	assert.Contains(t, out.String(), "idle")

	out.Reset()
	printCooldowns(&out, nil, manager)
	assert.Equal(t, "No credit accounts linked\n", out.String())
}

func TestPrintTickResult(t *testing.T) {
	cmd := &cobra.Command{}
	var out bytes.Buffer
	cmd.SetOut(&out)

	printTickResult(cmd, &application.TickResult{
		RunID:  "run-1",
		Status: entities.SyncRunStatusPartial,
		Outcomes: []entities.AccountOutcome{
			{AccountType: "amex", Status: entities.OutcomeTransferred, Transfers: []entities.TransferLog{{Kind: entities.TransferKindSpending, Amount: 100}}},
			{AccountType: "barclaycard", Status: entities.OutcomeError, Error: "boom"},
		},
	})

	assert.Contains(t, out.String(), "run run-1: partial")
	assert.Contains(t, out.String(), "transfers=1")
	assert.Contains(t, out.String(), `error="boom"`)
}
