package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/flemzord/cronspool/internal/job"
	"github.com/flemzord/cronspool/internal/service"
	"github.com/flemzord/cronspool/internal/session"
)

func jobCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "job",
		Short: "Manage scheduled jobs",
	}
	cmd.AddCommand(jobAddCmd(), jobListCmd(), jobRemoveCmd(), jobEnableCmd(), jobDisableCmd())
	return cmd
}

// commandService builds an unstarted service over the configured data dir.
// Job commands edit the store directly; a running daemon sees the changes
// on restart, or live through the gateway API.
func commandService(cmd *cobra.Command) (*service.Service, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	svcCfg, err := serviceConfig(cfg, newLogger())
	if err != nil {
		return nil, err
	}
	return service.New(svcCfg, session.NewHTTPClient(cfg.Targets, nil))
}

func jobAddCmd() *cobra.Command {
	var (
		schedule string
		target   string
		prompt   string
		oneshot  bool
		disabled bool
	)

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Create a scheduled job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := commandService(cmd)
			if err != nil {
				return err
			}

			out, err := svc.AddJob(job.CreateInput{
				Name:     args[0],
				Schedule: schedule,
				Target:   target,
				Prompt:   prompt,
				OneShot:  oneshot,
				Enabled:  !disabled,
			})
			if err != nil {
				return err
			}
			fmt.Println(out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&schedule, "schedule", "s", "", "Cron schedule (5 fields, or @hourly etc.)")
	cmd.Flags().StringVarP(&target, "target", "t", "", "Delivery target (empty uses the default target)")
	cmd.Flags().StringVarP(&prompt, "prompt", "p", "", "Prompt text delivered when the job fires")
	cmd.Flags().BoolVar(&oneshot, "oneshot", false, "Delete the job after its first delivery")
	cmd.Flags().BoolVar(&disabled, "disabled", false, "Create the job disabled")
	_ = cmd.MarkFlagRequired("schedule")
	_ = cmd.MarkFlagRequired("prompt")

	return cmd
}

func jobListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all jobs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := commandService(cmd)
			if err != nil {
				return err
			}
			fmt.Println(svc.ListJobs())
			return nil
		},
	}
}

func jobRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Delete a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := commandService(cmd)
			if err != nil {
				return err
			}
			out, err := svc.RemoveJob(args[0])
			if err != nil {
				return err
			}
			fmt.Println(out)
			return nil
		},
	}
}

func jobEnableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "enable <id>",
		Short: "Mark a job eligible for evaluation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := commandService(cmd)
			if err != nil {
				return err
			}
			out, err := svc.EnableJob(args[0])
			if err != nil {
				return err
			}
			fmt.Println(out)
			return nil
		},
	}
}

func jobDisableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disable <id>",
		Short: "Exclude a job from evaluation without deleting it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := commandService(cmd)
			if err != nil {
				return err
			}
			out, err := svc.DisableJob(args[0])
			if err != nil {
				return err
			}
			fmt.Println(out)
			return nil
		},
	}
}
