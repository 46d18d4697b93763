package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"hireline/internal/app"
	"hireline/internal/config"
	"hireline/internal/db"
	"hireline/internal/domain"
	"hireline/internal/engine"
	"hireline/internal/gateway"
	"hireline/internal/migrate"
	"hireline/internal/repo"
	"hireline/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "hl",
	Short: "Hireline CLI",
	Long: `Hireline runs the engagement and escrow lifecycle for a freelance marketplace.
- Workspace: your .hireline directory with the database; platform config lives in the DB (import from hireline.yml).
- Engagements: jobs and tasks a client posts; statuses go open -> assigned -> in_progress -> delivered -> completed (cancelled exits, owners can re-open).
- Proposals: freelancer bids on an open engagement; accepting one opens the order with the price frozen.
- Orders: the escrow ledger; the client funds, the freelancer delivers, the client releases. Money moves only at fund and release.
- Teams: every freelancer with an accepted order on a project joins the roster; the roster gets one shared channel.
- Reviews: one per completed, released order; they feed the freelancer's rating aggregate.
- Event log: diary of everything, view with 'hl log tail'.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("HIRELINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	rootCmd.PersistentFlags().String("platform", "", "platform id (overrides config default)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
	_ = viper.BindPFlag("platform", rootCmd.PersistentFlags().Lookup("platform"))
}

func registerCommands() {
	rootCmd.AddCommand(engagementCmd())
	rootCmd.AddCommand(proposalCmd())
	rootCmd.AddCommand(orderCmd())
	rootCmd.AddCommand(reviewCmd())
	rootCmd.AddCommand(projectCmd())
	rootCmd.AddCommand(actorCmd())
	rootCmd.AddCommand(apikeyCmd())
	rootCmd.AddCommand(platformCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
}

func engagementCmd() *cobra.Command {
	eng := &cobra.Command{
		Use:   "engagement",
		Short: "Manage engagements",
		Long:  "Engagements are the postings: standalone jobs or project tasks. Freelancers bid on open ones; the lifecycle mirrors the winning order.",
	}
	eng.AddCommand(engagementCreateCmd())
	eng.AddCommand(engagementListCmd())
	eng.AddCommand(engagementGetCmd())
	eng.AddCommand(engagementStatusCmd())
	return eng
}

func engagementCreateCmd() *cobra.Command {
	var spec engine.EngagementSpec
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Post an engagement",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				eng, err := e.CreateEngagement(ctx, viper.GetString("actor-id"), spec)
				if err != nil {
					return err
				}
				return printJSONOrTable(eng)
			})
		},
	}
	cmd.Flags().StringVar(&spec.ID, "id", "", "engagement id (optional)")
	cmd.Flags().StringVar(&spec.ProjectID, "project", "", "project id (required for tasks)")
	cmd.Flags().StringVar(&spec.Kind, "kind", "job", "job or task")
	cmd.Flags().StringVar(&spec.Title, "title", "", "title")
	cmd.Flags().StringVar(&spec.Description, "description", "", "description")
	cmd.Flags().Int64Var(&spec.BudgetMin, "budget-min", 0, "budget lower bound")
	cmd.Flags().Int64Var(&spec.BudgetMax, "budget-max", 0, "budget upper bound (or fixed price)")
	cmd.Flags().StringArrayVar(&spec.Skills, "skill", []string{}, "required skill (repeatable)")
	cmd.Flags().StringVar(&spec.Category, "category", "", "category")
	cmd.Flags().StringVar(&spec.Deadline, "deadline", "", "deadline (RFC3339)")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("budget-max")
	return cmd
}

func engagementListCmd() *cobra.Command {
	var f repo.EngagementFilter
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List engagements",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListEngagements(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Kind", "Title", "Budget", "Status", "Owner"})
				for _, eng := range items {
					tw.AppendRow(table.Row{eng.ID, eng.Kind, eng.Title, budgetLabel(eng), eng.Status, eng.OwnerID})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.OwnerID, "owner", "", "owner filter")
	cmd.Flags().StringVar(&f.ProjectID, "project", "", "project filter")
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter")
	cmd.Flags().StringVar(&f.Kind, "kind", "", "kind filter")
	return cmd
}

func engagementGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Get engagement",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				eng, err := e.GetEngagement(ctx, id)
				if err != nil {
					return err
				}
				return printJSONOrTable(eng)
			})
		},
	}
	return cmd
}

func engagementStatusCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "set-status <id>",
		Short: "Change engagement status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				eng, err := e.SetEngagementStatus(ctx, id, viper.GetString("actor-id"), status)
				if err != nil {
					return err
				}
				return printJSONOrTable(eng)
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "new status")
	_ = cmd.MarkFlagRequired("status")
	return cmd
}

func proposalCmd() *cobra.Command {
	prop := &cobra.Command{
		Use:   "proposal",
		Short: "Manage proposals",
		Long:  "Proposals are freelancer bids: price, delivery estimate, pitch. One active bid per freelancer per engagement; the client accepts exactly one.",
	}
	prop.AddCommand(proposalSubmitCmd())
	prop.AddCommand(proposalListCmd())
	prop.AddCommand(proposalAcceptCmd())
	prop.AddCommand(proposalRejectCmd())
	return prop
}

func proposalSubmitCmd() *cobra.Command {
	var engagementID, pitch string
	var price int64
	var deliveryDays int
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a proposal",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.SubmitProposal(ctx, engagementID, viper.GetString("actor-id"), price, deliveryDays, pitch)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&engagementID, "engagement", "", "engagement id")
	cmd.Flags().Int64Var(&price, "price", 0, "bid price")
	cmd.Flags().IntVar(&deliveryDays, "delivery-days", 0, "estimated delivery in days")
	cmd.Flags().StringVar(&pitch, "pitch", "", "pitch text")
	_ = cmd.MarkFlagRequired("engagement")
	_ = cmd.MarkFlagRequired("price")
	return cmd
}

func proposalListCmd() *cobra.Command {
	var engagementID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List proposals for an engagement",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListProposals(ctx, engagementID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Freelancer", "Price", "Days", "Status"})
				for _, p := range items {
					tw.AppendRow(table.Row{p.ID, p.FreelancerID, p.Price, p.DeliveryDays, p.Status})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&engagementID, "engagement", "", "engagement id")
	_ = cmd.MarkFlagRequired("engagement")
	return cmd
}

func proposalAcceptCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accept <id>",
		Short: "Accept a proposal and open the order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, o, err := e.AcceptProposal(ctx, id, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{"proposal": p, "order": o})
			})
		},
	}
	return cmd
}

func proposalRejectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reject <id>",
		Short: "Reject a proposal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.RejectProposal(ctx, id, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	return cmd
}

func orderCmd() *cobra.Command {
	ord := &cobra.Command{
		Use:   "order",
		Short: "Manage orders",
		Long:  "Orders track the escrow ledger per assignment: accept, fund, start, deliver, then release. Fund and release each talk to the payment gateway exactly once.",
	}
	ord.AddCommand(orderActionCmd("accept", "Freelancer accepts the order", engine.Engine.AcceptOrder))
	ord.AddCommand(orderActionCmd("start", "Start work on a funded order", engine.Engine.StartOrder))
	ord.AddCommand(orderActionCmd("fund", "Capture the escrow", engine.Engine.FundOrder))
	ord.AddCommand(orderActionCmd("deliver", "Mark the order delivered", engine.Engine.MarkDelivered))
	ord.AddCommand(orderActionCmd("request-release", "Ask the client to release escrow", engine.Engine.RequestRelease))
	ord.AddCommand(orderActionCmd("release", "Release the escrow to the freelancer", engine.Engine.ReleaseOrder))
	ord.AddCommand(orderGetCmd())
	ord.AddCommand(orderListCmd())
	return ord
}

func orderActionCmd(verb, short string, do func(engine.Engine, context.Context, string, string) (domain.Order, error)) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				o, err := do(e, ctx, id, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(o)
			})
		},
	}
}

func orderGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Get order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				o, err := e.GetOrder(ctx, id)
				if err != nil {
					return err
				}
				return printJSONOrTable(o)
			})
		},
	}
	return cmd
}

func orderListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List orders for the current actor",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListOrders(ctx, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Engagement", "Client", "Freelancer", "Price", "Status", "Paid", "Released"})
				for _, o := range items {
					tw.AppendRow(table.Row{o.ID, o.EngagementID, o.ClientID, o.FreelancerID, o.Price, o.Status, o.IsPaid, o.EscrowReleased})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func reviewCmd() *cobra.Command {
	rev := &cobra.Command{
		Use:   "review",
		Short: "Manage reviews",
		Long:  "One review per completed, released order. Ratings feed the freelancer's public aggregate.",
	}
	rev.AddCommand(reviewAddCmd())
	rev.AddCommand(reviewShowCmd())
	rev.AddCommand(reviewListCmd())
	return rev
}

func reviewListCmd() *cobra.Command {
	var freelancerID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List reviews received by a freelancer",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListReviews(ctx, freelancerID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Order", "Rating", "Comment"})
				for _, rv := range items {
					tw.AppendRow(table.Row{rv.ID, rv.OrderID, rv.Rating, rv.Comment})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&freelancerID, "freelancer", "", "freelancer id")
	_ = cmd.MarkFlagRequired("freelancer")
	return cmd
}

func reviewAddCmd() *cobra.Command {
	var orderID, comment string
	var rating int
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Review a completed order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				rv, err := e.SubmitReview(ctx, orderID, viper.GetString("actor-id"), rating, comment)
				if err != nil {
					return err
				}
				return printJSONOrTable(rv)
			})
		},
	}
	cmd.Flags().StringVar(&orderID, "order", "", "order id")
	cmd.Flags().IntVar(&rating, "rating", 0, "rating 1-5")
	cmd.Flags().StringVar(&comment, "comment", "", "comment")
	_ = cmd.MarkFlagRequired("order")
	_ = cmd.MarkFlagRequired("rating")
	return cmd
}

func reviewShowCmd() *cobra.Command {
	var orderID string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the review of an order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				rv, err := e.GetReview(ctx, orderID)
				if err != nil {
					return err
				}
				return printJSONOrTable(rv)
			})
		},
	}
	cmd.Flags().StringVar(&orderID, "order", "", "order id")
	_ = cmd.MarkFlagRequired("order")
	return cmd
}

func projectCmd() *cobra.Command {
	prj := &cobra.Command{
		Use:   "project",
		Short: "Manage projects and teams",
		Long:  "Projects group task engagements. The team roster is derived from accepted orders; 'hl project channel create' opens the shared conversation.",
	}
	prj.AddCommand(projectCreateCmd())
	prj.AddCommand(projectListCmd())
	prj.AddCommand(projectShowCmd())
	prj.AddCommand(projectTeamCmd())
	prj.AddCommand(projectChannelCmd())
	return prj
}

func projectCreateCmd() *cobra.Command {
	var title string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create project",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.CreateProject(ctx, viper.GetString("actor-id"), title)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "project title")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func projectListCmd() *cobra.Command {
	var clientID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListProjects(ctx, clientID)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	cmd.Flags().StringVar(&clientID, "client", "", "client filter")
	return cmd
}

func projectShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.GetProject(ctx, id)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	return cmd
}

func projectTeamCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "team <id>",
		Short: "Show the derived roster",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				tm, err := e.DeriveRoster(ctx, id)
				if err != nil {
					return err
				}
				return printJSONOrTable(tm)
			})
		},
	}
	return cmd
}

func projectChannelCmd() *cobra.Command {
	ch := &cobra.Command{Use: "channel", Short: "Manage the team channel"}
	create := &cobra.Command{
		Use:   "create <project-id>",
		Short: "Create or fetch the team channel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.EnsureChannel(ctx, id, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	leave := &cobra.Command{
		Use:   "leave <project-id>",
		Short: "Leave the team channel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.LeaveChannel(ctx, id, viper.GetString("actor-id"))
			})
		},
	}
	ch.AddCommand(create)
	ch.AddCommand(leave)
	return ch
}

func actorCmd() *cobra.Command {
	act := &cobra.Command{Use: "actor", Short: "Manage actors"}
	act.AddCommand(actorRegisterCmd())
	act.AddCommand(actorShowCmd())
	act.AddCommand(actorPublishCmd())
	return act
}

func actorRegisterCmd() *cobra.Command {
	var displayName string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register the current actor",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				a, err := e.RegisterActor(ctx, viper.GetString("actor-id"), displayName)
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	cmd.Flags().StringVar(&displayName, "display-name", "", "display name")
	return cmd
}

func actorShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show actor and rating aggregate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				a, err := e.GetActor(ctx, id)
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	return cmd
}

func actorPublishCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish the current actor's client profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				a, err := e.PublishProfile(ctx, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	return cmd
}

func apikeyCmd() *cobra.Command {
	key := &cobra.Command{
		Use:   "apikey",
		Short: "Manage API keys",
		Long:  "API keys authenticate non-interactive clients against the HTTP API via the X-Api-Key header. Only the SHA-256 hash is stored.",
	}
	key.AddCommand(apikeyCreateCmd())
	key.AddCommand(apikeyListCmd())
	key.AddCommand(apikeyRevokeCmd())
	return key
}

func apikeyCreateCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an API key for the current actor",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				secret := uuid.NewString()
				key := domain.APIKey{
					ID:      uuid.NewString(),
					ActorID: viper.GetString("actor-id"),
					Name:    name,
					KeyHash: repo.HashAPIKey(secret),
				}
				if err := r.InsertAPIKey(ctx, nil, key); err != nil {
					return err
				}
				// The plaintext key is shown once; only the hash survives.
				return printJSONOrTable(map[string]any{
					"id":       key.ID,
					"actor_id": key.ActorID,
					"name":     key.Name,
					"key":      secret,
				})
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "key label")
	return cmd
}

func apikeyListCmd() *cobra.Command {
	var actorID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				keys, err := r.ListAPIKeys(ctx, actorID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(keys)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Actor", "Name", "Created"})
				for _, k := range keys {
					tw.AppendRow(table.Row{k.ID, k.ActorID, k.Name, k.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&actorID, "actor", "", "actor filter")
	return cmd
}

func apikeyRevokeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "revoke <id>",
		Short: "Revoke an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				return r.DeleteAPIKey(ctx, id)
			})
		},
	}
	return cmd
}

func platformCmd() *cobra.Command {
	plat := &cobra.Command{Use: "platform", Short: "Manage the platform"}
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Manage platform config",
		Long:  "Config is the platform rulebook (stored in DB): currency, category catalog, cooldowns, and webhooks. Import from hireline.yml if desired.",
	}
	cfg.AddCommand(platformConfigShowCmd())
	cfg.AddCommand(platformConfigImportCmd())
	cfg.AddCommand(platformConfigValidateCmd())
	plat.AddCommand(cfg)
	return plat
}

func platformConfigShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show platform config stored in DB",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return printJSONOrTable(e.Config)
			})
		},
	}
	return cmd
}

func platformConfigImportCmd() *cobra.Command {
	var filePath string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import platform config from YAML into the DB",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromFile(filePath)
			if err != nil {
				return err
			}
			platformID := cfg.Platform.ID
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				if override := viper.GetString("platform"); override != "" {
					platformID = override
				}
				if err := r.UpsertPlatformConfig(ctx, nil, platformID, cfg); err != nil {
					return err
				}
				return printJSONOrTable(cfg)
			})
		},
	}
	cmd.Flags().StringVar(&filePath, "file", "", "path to YAML config")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func platformConfigValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate stored config",
		RunE: func(cmd *cobra.Command, args []string) error {
			err := withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.Config.Validate()
			})
			if viper.GetBool("json") {
				return printJSON(map[string]any{"ok": err == nil, "error": fmt.Sprint(err)})
			}
			if err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	}
	return cmd
}

func logCmd() *cobra.Command {
	log := &cobra.Command{
		Use:   "log",
		Short: "Event log",
		Long:  "The diary of everything that happened: postings, bids, escrow moves, reviews.",
	}
	log.AddCommand(logTailCmd())
	return log
}

func logTailCmd() *cobra.Command {
	var n int
	var entityID string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				events, err := e.Repo.TailEvents(ctx, n, entityID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(events)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "TS", "Type", "Entity", "Actor"})
				for _, evt := range events {
					tw.AppendRow(table.Row{evt.ID, evt.TS, evt.Type, evt.EntityKind + "/" + evt.EntityID, evt.ActorID})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&entityID, "entity-id", "", "entity id filter")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			if _, err := db.EnsureWorkspace(workspace); err != nil {
				return err
			}
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			r := repo.Repo{DB: conn}
			_, cfg, err := app.ResolvePlatformAndConfig(cmd.Context(), workspace, viper.GetString("platform"), r)
			if err != nil {
				return err
			}
			e := engine.New(conn, cfg, buildGateway(cfg))
			authCfg := server.AuthConfig{JWTSecret: os.Getenv("HIRELINE_JWT_SECRET")}
			if authCfg.JWTSecret == "" {
				return fmt.Errorf("HIRELINE_JWT_SECRET is required for bearer auth")
			}
			handler, err := server.New(server.Config{Engine: e, BasePath: basePath, Auth: authCfg})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			stop, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			go func() {
				<-stop.Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Hireline API on http://%s%s (OpenAPI at /openapi.json, Swagger UI at /docs)\n", addr, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	return cmd
}

// --- helpers ---

// buildGateway picks the HTTP gateway when configured, the in-process dev
// gateway otherwise.
func buildGateway(cfg *config.Config) gateway.Gateway {
	if cfg != nil && strings.TrimSpace(cfg.Escrow.GatewayURL) != "" {
		return gateway.NewHTTP(cfg.Escrow.GatewayURL, os.Getenv("HIRELINE_GATEWAY_SECRET"))
	}
	return &gateway.Dev{}
}

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	r := repo.Repo{DB: conn}
	_, cfg, err := app.ResolvePlatformAndConfig(ctx, workspace, viper.GetString("platform"), r)
	if err != nil {
		return err
	}
	e := engine.New(conn, cfg, buildGateway(cfg))
	return fn(ctx, e)
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	r := repo.Repo{DB: conn}
	return fn(ctx, r)
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func budgetLabel(e domain.Engagement) string {
	if e.FixedBudget() {
		return fmt.Sprintf("%d", e.BudgetMax)
	}
	return fmt.Sprintf("%d-%d", e.BudgetMin, e.BudgetMax)
}
