package main

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"github.com/Billy-Davies-2/knockout-pool/internal/config"
	"github.com/Billy-Davies-2/knockout-pool/internal/dal"
	"github.com/Billy-Davies-2/knockout-pool/internal/engine"
	"github.com/Billy-Davies-2/knockout-pool/internal/export"
	"github.com/Billy-Davies-2/knockout-pool/internal/ingest"
	"github.com/Billy-Davies-2/knockout-pool/internal/logger"
	"github.com/Billy-Davies-2/knockout-pool/internal/models"
	"github.com/Billy-Davies-2/knockout-pool/internal/seed"
)

// withService opens the store, runs fn with a scoring service on it and
// closes the store again
func (a *app) withService(fn func(store dal.Store, svc *engine.Service) error) error {
	store, err := a.openStore()
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store, engine.NewService(store, a.tournament))
}

func (a *app) createCommand() *cli.Command {
	return &cli.Command{
		Name:  "create",
		Usage: "create the schema with the tournament's teams, slots and slot mapping",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "recreate", Usage: "delete all stored data first"},
		},
		Action: func(c *cli.Context) error {
			return a.withService(func(store dal.Store, _ *engine.Service) error {
				if c.Bool("recreate") {
					if err := store.Reset(c.Context); err != nil {
						return fmt.Errorf("failed to reset store: %w", err)
					}
					logger.Info("Store reset")
				}
				return ingest.NewLoader(store, a.tournament).Init(c.Context)
			})
		},
	}
}

func (a *app) loadCommand() *cli.Command {
	return &cli.Command{
		Name:  "load",
		Usage: "load the schedule workbook and draft forms, then recompute",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "schedule", Usage: "schedule workbook (.xlsx)"},
			&cli.StringFlag{Name: "forms", Usage: "directory of draft forms (.xlsx)"},
			&cli.BoolFlag{Name: "scores-only", Usage: "only update results from the schedule"},
		},
		Action: func(c *cli.Context) error {
			schedule, forms := c.String("schedule"), c.String("forms")
			if schedule == "" && forms == "" {
				return cli.Exit("nothing to load: pass --schedule and/or --forms", 2)
			}

			return a.withService(func(store dal.Store, svc *engine.Service) error {
				ctx := c.Context
				if c.Bool("scores-only") {
					if schedule == "" {
						return cli.Exit("--scores-only needs --schedule", 2)
					}
					games, err := ingest.ReadSchedule(schedule, a.tournament.Schedule(), a.tournament)
					if err != nil {
						return err
					}
					report, err := svc.SubmitResults(ctx, ingest.Results(games))
					if err != nil {
						return err
					}
					return printReport(c, report)
				}

				loader := ingest.NewLoader(store, a.tournament)
				if schedule != "" {
					if _, err := loader.LoadSchedule(ctx, schedule); err != nil {
						return err
					}
				}
				if forms != "" {
					if _, err := loader.LoadForms(ctx, forms); err != nil {
						return err
					}
				}
				report, err := svc.Recompute(ctx)
				if err != nil {
					return err
				}
				return printReport(c, report)
			})
		},
	}
}

func (a *app) recomputeCommand() *cli.Command {
	return &cli.Command{
		Name:  "recompute",
		Usage: "recompute standings, team totals and participant scores",
		Action: func(c *cli.Context) error {
			return a.withService(func(_ dal.Store, svc *engine.Service) error {
				report, err := svc.Recompute(c.Context)
				if err != nil {
					return err
				}
				return printReport(c, report)
			})
		},
	}
}

func printReport(c *cli.Context, report *models.CycleReport) error {
	if report == nil {
		_, err := fmt.Fprintln(c.App.Writer, "no changes")
		return err
	}
	_, err := fmt.Fprintf(c.App.Writer, "cycle %s: %d scores and %d teams changed in %s\n",
		report.ID, len(report.Scores), len(report.Teams), report.Duration)
	return err
}

func (a *app) printCommand() *cli.Command {
	return &cli.Command{
		Name:  "print",
		Usage: "print the leaderboard and optionally every standings table",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "top", Usage: "only the first N participants (0 = all)"},
			&cli.BoolFlag{Name: "standings", Usage: "also print the standings tables"},
		},
		Action: func(c *cli.Context) error {
			return a.withService(func(_ dal.Store, svc *engine.Service) error {
				board, err := svc.Leaderboard(c.Context, c.Int("top"))
				if err != nil {
					return err
				}

				w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "#\tPARTICIPANT\tTEAM\tSCORE")
				for _, e := range board {
					fmt.Fprintf(w, "%d\t%s\t%s\t%d\n", e.Rank, e.Name, e.TeamName, e.TotalScore)
				}
				if err := w.Flush(); err != nil {
					return err
				}

				if !c.Bool("standings") {
					return nil
				}
				tables, err := svc.AllStandings(c.Context)
				if err != nil {
					return err
				}
				for _, s := range tables {
					fmt.Fprintf(c.App.Writer, "\n%s (%s)\n", s.Code, s.Stage)
					w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
					fmt.Fprintln(w, "TEAM\tP\tW\tD\tL\tGF\tGA\tGD\tPTS\tGP")
					for _, r := range s.Rows {
						fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\n",
							r.Team, r.Played, r.Won, r.Drawn, r.Lost, r.GoalsFor, r.GoalsAgainst, r.GoalDifference, r.Points, r.GamePoints)
					}
					if err := w.Flush(); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}

func (a *app) slotsCommand() *cli.Command {
	return &cli.Command{
		Name:  "slots",
		Usage: "show or change which team fills each bracket slot",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "print the slot mapping",
				Action: func(c *cli.Context) error {
					return a.withService(func(_ dal.Store, svc *engine.Service) error {
						mapping, err := svc.SlotMapping(c.Context)
						if err != nil {
							return err
						}
						w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
						fmt.Fprintln(w, "SLOT\tTEAM")
						for _, slot := range a.tournament.Slots() {
							team := mapping[slot]
							if team == "" {
								team = "-"
							}
							fmt.Fprintf(w, "%s\t%s\n", slot, team)
						}
						return w.Flush()
					})
				},
			},
			{
				Name:      "set",
				Usage:     "assign teams to slots; an empty team clears the slot",
				ArgsUsage: "CODE=TEAM...",
				Action: func(c *cli.Context) error {
					updates, err := parseAssignments(c.Args().Slice())
					if err != nil {
						return cli.Exit(err.Error(), 2)
					}
					return a.withService(func(_ dal.Store, svc *engine.Service) error {
						mapping, err := svc.SlotMapping(c.Context)
						if err != nil {
							return err
						}
						for code, team := range updates {
							mapping[code] = team
						}
						report, err := svc.ReplaceSlotMapping(c.Context, mapping)
						if err != nil {
							return err
						}
						return printReport(c, report)
					})
				},
			},
		},
	}
}

// parseAssignments reads CODE=TEAM arguments
func parseAssignments(args []string) (map[string]string, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("no assignments given, expected CODE=TEAM")
	}
	out := make(map[string]string, len(args))
	for _, arg := range args {
		code, team, ok := strings.Cut(arg, "=")
		if !ok || strings.TrimSpace(code) == "" {
			return nil, fmt.Errorf("invalid assignment %q, expected CODE=TEAM", arg)
		}
		out[config.NormalizeCode(code)] = models.CleanTeamName(team)
	}
	return out, nil
}

func (a *app) exportCommand() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "write the leaderboard, team totals and standings to a workbook",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "out", Usage: "output file", Value: "standings.xlsx"},
			&cli.BoolFlag{Name: "upload", Usage: "also upload the workbook to the export bucket"},
		},
		Action: func(c *cli.Context) error {
			return a.withService(func(_ dal.Store, svc *engine.Service) error {
				report, err := export.Collect(c.Context, a.tournament.Name(), svc)
				if err != nil {
					return err
				}
				out := c.String("out")
				if err := export.SaveWorkbook(out, report); err != nil {
					return err
				}
				logger.Info("Workbook written", "path", out, "participants", len(report.Leaderboard))

				if !c.Bool("upload") {
					return nil
				}
				if !a.cfg.ExportEnabled() {
					return cli.Exit("upload needs EXPORT_BUCKET, EXPORT_ACCESS_KEY_ID and EXPORT_SECRET_ACCESS_KEY", 2)
				}
				uploader, err := export.NewS3Uploader(c.Context, a.cfg.Export)
				if err != nil {
					return err
				}
				var buf bytes.Buffer
				if err := export.WriteWorkbook(&buf, report); err != nil {
					return err
				}
				key := strings.ToLower(strings.ReplaceAll(a.tournament.Name(), " ", "")) + "/" + filepath.Base(out)
				res, err := uploader.Upload(c.Context, key, export.ContentType, bytes.NewReader(buf.Bytes()))
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(c.App.Writer, "uploaded %s %s\n", res.Key, res.Location)
				return err
			})
		},
	}
}

func (a *app) demoCommand() *cli.Command {
	return &cli.Command{
		Name:  "demo",
		Usage: "fill the store with generated fixtures and participants",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "participants", Usage: "number of fake participants", Value: 20},
			&cli.BoolFlag{Name: "results", Usage: "play the group stage with random scores"},
			&cli.Uint64Flag{Name: "seed", Usage: "random seed (0 = from the clock)"},
		},
		Action: func(c *cli.Context) error {
			return a.withService(func(store dal.Store, svc *engine.Service) error {
				sum, err := seed.Demo(c.Context, store, a.tournament, seed.Options{
					Participants: c.Int("participants"),
					Results:      c.Bool("results"),
					Seed:         c.Uint64("seed"),
				})
				if err != nil {
					return err
				}
				report, err := svc.Recompute(c.Context)
				if err != nil {
					return err
				}
				fmt.Fprintf(c.App.Writer, "%d games (%d played), %d participants\n", sum.Games, sum.Played, sum.Participants)
				return printReport(c, report)
			})
		},
	}
}
