package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/daimoniac/vesselfit/internal/assessment"
	"github.com/daimoniac/vesselfit/internal/inspectionfile"
	"github.com/daimoniac/vesselfit/internal/observability"
	"github.com/daimoniac/vesselfit/internal/statestore"
	"github.com/daimoniac/vesselfit/internal/types"
)

// withApp loads configuration, builds the app for one command and closes it
// afterwards. Logs go to stderr so stdout carries only the result.
func withApp(cmd *cobra.Command, fn func(a *app) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := observability.NewLoggerTo(cmd.ErrOrStderr(), cfg.Observability.LogLevel)

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(a)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newCalcCmd() *cobra.Command {
	var actor assessment.Actor

	cmd := &cobra.Command{
		Use:   "calc <inspection-package>...",
		Short: "Assess every component of one or more inspection packages",
		Long: `Assess every component of an inspection package and print the vessel
assessment as JSON. Each calculated component is recorded in the audit
trail under the given user, or the system user when none is set.

Given several packages, the inspections are assessed in parallel up to
worker.batchConcurrency and a JSON array is printed in argument order.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inspections := make([]types.Inspection, 0, len(args))
			for _, path := range args {
				pkg, err := inspectionfile.ParseFile(path)
				if err != nil {
					return err
				}
				inspections = append(inspections, pkg.Inspection())
			}

			return withApp(cmd, func(a *app) error {
				if len(inspections) == 1 {
					result, err := a.assessment.AssessVessel(cmd.Context(), inspections[0], actor)
					if err != nil {
						return fmt.Errorf("assessment of %s failed: %w", inspections[0].InspectionID, err)
					}
					return writeJSON(cmd.OutOrStdout(), result)
				}

				results, err := a.assessment.AssessBatch(cmd.Context(), inspections, actor)
				if err != nil {
					return fmt.Errorf("batch assessment failed: %w", err)
				}
				return writeJSON(cmd.OutOrStdout(), results)
			})
		},
	}

	cmd.Flags().StringVar(&actor.UserID, "user-id", "", "user recorded in the audit trail")
	cmd.Flags().StringVar(&actor.UserName, "user-name", "", "display name recorded in the audit trail")

	return cmd
}

func newMaterialCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "material",
		Short: "Look up materials in the allowable stress table",
	}
	cmd.AddCommand(newMaterialStressCmd())
	cmd.AddCommand(newMaterialValidateCmd())
	return cmd
}

// withResolver builds only the material resolver; lookups never touch the
// state store.
func withResolver(cmd *cobra.Command, fn func(a *app) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := observability.NewLoggerTo(cmd.ErrOrStderr(), cfg.Observability.LogLevel)

	resolver, err := newResolver(cfg.Materials, logger)
	if err != nil {
		return err
	}
	return fn(&app{cfg: cfg, logger: logger, resolver: resolver})
}

func newMaterialStressCmd() *cobra.Command {
	var temperature float64

	cmd := &cobra.Command{
		Use:   "stress <spec>",
		Short: "Print the allowable stress of a material at a temperature",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withResolver(cmd, func(a *app) error {
				lookup, err := a.resolver.AllowableStress(args[0], temperature)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), lookup)
			})
		},
	}

	cmd.Flags().Float64VarP(&temperature, "temperature", "t", 0, "design temperature in °F")
	_ = cmd.MarkFlagRequired("temperature")

	return cmd
}

func newMaterialValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <spec>",
		Short: "Check a material specification and suggest close matches",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withResolver(cmd, func(a *app) error {
				v, err := a.resolver.ValidateMaterial(args[0])
				if err != nil {
					return err
				}
				if err := writeJSON(cmd.OutOrStdout(), v); err != nil {
					return err
				}
				if !v.IsValid {
					return fmt.Errorf("unknown material %q", args[0])
				}
				return nil
			})
		},
	}
}

func newAuditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Export, report on and verify the audit trail",
	}
	cmd.AddCommand(newAuditExportCmd())
	cmd.AddCommand(newAuditReportCmd())
	cmd.AddCommand(newAuditVerifyCmd())
	return cmd
}

func newAuditExportCmd() *cobra.Command {
	var (
		filter   statestore.AuditFilter
		from, to string
		output   string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export audit entries with their integrity verification",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if filter.From, err = parseTimeFlag(from, false); err != nil {
				return fmt.Errorf("invalid --from: %w", err)
			}
			if filter.To, err = parseTimeFlag(to, true); err != nil {
				return fmt.Errorf("invalid --to: %w", err)
			}

			return withApp(cmd, func(a *app) error {
				export, err := a.audit.Export(cmd.Context(), filter)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if output != "" {
					f, err := os.Create(output)
					if err != nil {
						return fmt.Errorf("failed to create %s: %w", output, err)
					}
					defer f.Close()
					out = f
				}
				if err := writeJSON(out, export); err != nil {
					return err
				}
				if !export.IntegrityVerified {
					return fmt.Errorf("%d audit entries failed verification", len(export.FailedEntryIDs))
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&filter.EntityType, "entity-type", "", "only entries for this entity type")
	cmd.Flags().StringVar(&filter.EntityID, "entity-id", "", "only entries for this entity")
	cmd.Flags().StringVar(&filter.Action, "action", "", "only entries with this action")
	cmd.Flags().StringVar(&filter.UserID, "user-id", "", "only entries by this user")
	cmd.Flags().StringVar(&from, "from", "", "earliest timestamp (RFC 3339 or YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "latest timestamp (RFC 3339 or YYYY-MM-DD, inclusive)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the export to a file instead of stdout")

	return cmd
}

func newAuditReportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "report <inspection-id>",
		Short: "Print the audit report of an inspection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app) error {
				report, err := a.audit.GenerateInspectionAuditReport(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				_, err = io.WriteString(cmd.OutOrStdout(), report)
				return err
			})
		},
	}
}

func newAuditVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <entity-type> <entity-id>",
		Short: "Verify the checksum chain of one entity",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app) error {
				result, err := a.audit.VerifyChain(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				if err := writeJSON(cmd.OutOrStdout(), result); err != nil {
					return err
				}
				if !result.Valid {
					return fmt.Errorf("audit chain broken at entry %s: %s", result.BrokenEntryID, result.Reason)
				}
				return nil
			})
		},
	}
}

// parseTimeFlag accepts RFC 3339 or a bare date. A bare upper bound covers
// the whole day.
func parseTimeFlag(value string, endOfDay bool) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return nil, fmt.Errorf("expected RFC 3339 or YYYY-MM-DD, got %q", value)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}
