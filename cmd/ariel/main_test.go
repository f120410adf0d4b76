package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func testApp() *cli.App {
	return &cli.App{
		Name: "ariel",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Value: "ariel.yaml"},
			&cli.StringFlag{Name: "log-level", Value: "info"},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "search",
				Action: searchCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "mode", Value: "auto"},
					&cli.IntFlag{Name: "max-results", Value: 10},
				},
			},
			{
				Name:   "reembed",
				Action: reembedCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "model", Required: true},
					&cli.IntFlag{Name: "dimension"},
					&cli.BoolFlag{Name: "dry-run"},
					&cli.BoolFlag{Name: "force"},
					&cli.IntFlag{Name: "batch-size", Value: 100},
				},
			},
		},
	}
}

func TestSetupLogger(t *testing.T) {
	t.Run("valid log levels", func(t *testing.T) {
		for _, level := range []string{"debug", "info", "warn", "error", "DEBUG", "WaRn"} {
			t.Run(level, func(t *testing.T) {
				app := testApp()
				app.Action = func(c *cli.Context) error { return nil }
				require.NoError(t, app.Run([]string{"ariel", "--log-level", level}))
			})
		}
	})

	t.Run("invalid log level returns error", func(t *testing.T) {
		app := testApp()
		app.Action = func(c *cli.Context) error { return nil }
		err := app.Run([]string{"ariel", "--log-level", "loud"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid log level")
	})
}

func TestSearchCommand(t *testing.T) {
	t.Run("requires a query argument", func(t *testing.T) {
		err := testApp().Run([]string{"ariel", "search"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "query argument")
	})

	t.Run("whitespace query rejected", func(t *testing.T) {
		err := testApp().Run([]string{"ariel", "search", "   "})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "query argument")
	})
}

func TestReembedCommandFlags(t *testing.T) {
	t.Run("model is required", func(t *testing.T) {
		err := testApp().Run([]string{"ariel", "reembed"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "model")
	})

	t.Run("batch-size defaults to 100", func(t *testing.T) {
		app := testApp()
		var batchFlag *cli.IntFlag
		for _, flag := range app.Commands[1].Flags {
			if f, ok := flag.(*cli.IntFlag); ok && f.Name == "batch-size" {
				batchFlag = f
				break
			}
		}
		require.NotNil(t, batchFlag)
		assert.Equal(t, 100, batchFlag.Value)
	})
}
