package app

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/SkyAle-bit/Progetto-FE/internal/contract"
)

type planList []contract.Plan

func (l planList) PlainLines() []string {
	if len(l) == 0 {
		return []string{"no plans"}
	}
	out := make([]string, 0, len(l))
	for _, p := range l {
		out = append(out, fmt.Sprintf("%d\t%s\t€%s\t%s", p.ID, p.Name, humanize.FormatFloat("#.###,##", p.FullPrice), p.Duration))
	}
	return out
}

type professionalList []contract.Professional

func (l professionalList) PlainLines() []string {
	if len(l) == 0 {
		return []string{"no professionals"}
	}
	out := make([]string, 0, len(l))
	for _, p := range l {
		out = append(out, fmt.Sprintf("%d\t%s\t%s", p.ID, p.FullName, p.Role))
	}
	return out
}

type userList []contract.User

func (l userList) PlainLines() []string {
	if len(l) == 0 {
		return []string{"no clients"}
	}
	out := make([]string, 0, len(l))
	for _, u := range l {
		out = append(out, fmt.Sprintf("%d\t%s\t%s", u.ID, u.FullName(), u.Email))
	}
	return out
}

func parsePlanDuration(v string) (contract.PlanDuration, error) {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "":
		return "", nil
	case "SEMESTRALE", "SEMIANNUAL", "6M":
		return contract.DurationSemiannual, nil
	case "ANNUALE", "ANNUAL", "12M":
		return contract.DurationAnnual, nil
	default:
		return "", fmt.Errorf("invalid --duration %q: want SEMESTRALE|ANNUALE", v)
	}
}

// filterPlans keeps plans of one billing duration; an empty duration keeps all.
func filterPlans(plans []contract.Plan, d contract.PlanDuration) []contract.Plan {
	if d == "" {
		return plans
	}
	out := make([]contract.Plan, 0, len(plans))
	for _, p := range plans {
		if p.Duration == d {
			out = append(out, p)
		}
	}
	return out
}

func newPlansCmd(opts *globalOptions) *cobra.Command {
	var duration string
	cmd := &cobra.Command{
		Use:   "plans",
		Short: "List membership plans",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, be, ro, err := buildContext(cmd, opts, "plans")
			if err != nil {
				return err
			}
			d, err := parsePlanDuration(duration)
			if err != nil {
				return failUsage(p, err, "")
			}
			ctx, cancel := commandContext(ro)
			defer cancel()
			plans, err := callBackend(ctx, "backend.list_plans", func() ([]contract.Plan, error) {
				return be.ListPlans(ctx)
			})
			if err != nil {
				return failBackend(p, err)
			}
			plans = filterPlans(plans, d)
			return successWithMeta(ctx, p, ro, planList(plans), map[string]any{"count": len(plans)}, nil)
		},
	}
	cmd.Flags().StringVar(&duration, "duration", "", "Billing duration: SEMESTRALE|ANNUALE")
	return cmd
}

func newProfessionalsCmd(opts *globalOptions) *cobra.Command {
	var role string
	cmd := &cobra.Command{
		Use:   "professionals",
		Short: "List trainers or nutritionists",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, be, ro, err := buildContext(cmd, opts, "professionals")
			if err != nil {
				return err
			}
			r, err := contract.ParseProfessionalRole(role)
			if err != nil {
				return failUsage(p, err, "Pass --role PERSONAL_TRAINER or --role NUTRITIONIST")
			}
			ctx, cancel := commandContext(ro)
			defer cancel()
			items, err := callBackend(ctx, "backend.list_professionals", func() ([]contract.Professional, error) {
				return be.ListProfessionals(ctx, r)
			})
			if err != nil {
				return failBackend(p, err)
			}
			for i := range items {
				if items[i].Role == "" {
					items[i].Role = r
				}
			}
			return successWithMeta(ctx, p, ro, professionalList(items), map[string]any{"count": len(items), "role": r}, nil)
		},
	}
	cmd.Flags().StringVar(&role, "role", "", "PERSONAL_TRAINER|NUTRITIONIST")
	return cmd
}

func newClientsCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clients",
		Short: "List the clients who follow you",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, be, ro, err := buildContext(cmd, opts, "clients")
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(ro)
			defer cancel()
			sess, st, err := requireSession(ctx, p, be, ro)
			if err != nil {
				return err
			}
			defer st.Close()
			if err := requireProfessional(p, sess); err != nil {
				return err
			}
			items, err := callBackend(ctx, "backend.list_clients", func() ([]contract.User, error) {
				return be.ListClients(ctx, sess.User.ID)
			})
			if err != nil {
				return failBackend(p, err)
			}
			return successWithMeta(ctx, p, ro, userList(items), map[string]any{"count": len(items)}, nil)
		},
	}
}
