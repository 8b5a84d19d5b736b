package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"git.home.luguber.info/inful/nextgen/internal/eventstore"
	"git.home.luguber.info/inful/nextgen/internal/foundation/errors"
)

// HistoryCmd lists recorded builds or prints one build's events.
type HistoryCmd struct {
	BuildID string `arg:"" optional:"" name:"build-id" help:"Show the events of this build"`
	Limit   int    `default:"20" help:"Maximum builds to list"`
}

func (h *HistoryCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	path := cfg.HistoryPath()
	if path == "" {
		return errors.ConfigError("build history is not enabled").
			WithContext("field", "events.historyDb").
			Build()
	}
	store, err := eventstore.NewSQLiteStore(path)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if h.BuildID != "" {
		events, err := store.GetByBuildID(g.Ctx, h.BuildID)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			return errors.ValidationError("unknown build").WithContext("build_id", h.BuildID).Build()
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(events)
	}

	proj := eventstore.NewBuildHistoryProjection(store, h.Limit)
	if err := proj.Rebuild(g.Ctx); err != nil {
		return err
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "BUILD\tSTARTED\tMODE\tSTATUS\tDURATION\tFILES\tERROR")
	for _, b := range proj.GetHistory() {
		dur := time.Duration(b.DurationMS * float64(time.Millisecond)).Round(time.Millisecond)
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			b.BuildID, b.StartedAt.Format(time.DateTime), b.Mode, b.Status, dur, len(b.Files), b.ErrorStep)
	}
	return tw.Flush()
}
