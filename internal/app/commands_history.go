package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/SkyAle-bit/Progetto-FE/internal/contract"
	"github.com/SkyAle-bit/Progetto-FE/internal/output"
	"github.com/SkyAle-bit/Progetto-FE/internal/store"
)

type activityList []store.Activity

func (l activityList) PlainLines() []string {
	if len(l) == 0 {
		return []string{"no activity"}
	}
	out := make([]string, 0, len(l))
	for _, a := range l {
		line := fmt.Sprintf("%s\t%s", output.FormatValue(a.At.Local()), a.Kind)
		if a.Ref != "" {
			line += "\t" + a.Ref
		}
		if a.Detail != "" {
			line += "\t" + a.Detail
		}
		out = append(out, line)
	}
	return out
}

func newHistoryCmd(opts *globalOptions) *cobra.Command {
	history := &cobra.Command{Use: "history", Short: "Inspect the local activity journal"}

	var limit, offset int
	list := &cobra.Command{
		Use:   "list",
		Short: "List recent activity, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, _, ro, err := buildContext(cmd, opts, "history.list")
			if err != nil {
				return err
			}
			if limit <= 0 || offset < 0 {
				return failUsage(p, fmt.Errorf("--limit must be > 0 and --offset >= 0"), "")
			}
			ctx, cancel := commandContext(ro)
			defer cancel()
			st, err := openState(ctx, p, ro)
			if err != nil {
				return err
			}
			defer st.Close()
			entries, hasMore, err := st.Page(ctx, limit, offset)
			if err != nil {
				return failWithHint(p, contract.ErrGeneric, err, "Check state file permissions", exitGeneric)
			}
			meta := map[string]any{"count": len(entries), "offset": offset, "has_more": hasMore}
			if hasMore {
				meta["next_offset"] = offset + len(entries)
			}
			return successWithMeta(ctx, p, ro, activityList(entries), meta, nil)
		},
	}
	list.Flags().IntVar(&limit, "limit", 20, "Maximum entries")
	list.Flags().IntVar(&offset, "offset", 0, "Entries to skip")

	history.AddCommand(list)
	return history
}
