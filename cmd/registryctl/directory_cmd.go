package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/iota-uz/entity-registry/modules/registry/domain/entity"
)

func newPersonCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "person",
		Short: "Manage natural persons",
	}
	cmd.AddCommand(newPersonAddCmd())
	return cmd
}

func newPersonAddCmd() *cobra.Command {
	var (
		id       string
		fullName string
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a natural person",
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := parseOptionalUUID("id", id)
			if err != nil {
				return err
			}
			if strings.TrimSpace(fullName) == "" {
				return withCode(exitUsage, fmt.Errorf("--name is required"))
			}

			rt, ctx, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.close()

			created, err := rt.identities().CreatePerson(ctx, pid, strings.TrimSpace(fullName))
			if err != nil {
				return withCode(exitDBWrite, err)
			}
			return writeJSON(map[string]any{"id": created, "full_name": strings.TrimSpace(fullName)})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "Person UUID (generated when empty)")
	cmd.Flags().StringVar(&fullName, "name", "", "Full name (required)")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newAuthorityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "authority",
		Short: "Manage approving authorities",
	}
	cmd.AddCommand(newAuthorityAddCmd())
	return cmd
}

func newAuthorityAddCmd() *cobra.Command {
	var (
		id     string
		name   string
		region string
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register an approving authority",
		RunE: func(cmd *cobra.Command, args []string) error {
			aid, err := parseOptionalUUID("id", id)
			if err != nil {
				return err
			}
			rt, ctx, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.close()

			a, err := rt.entities().CreateAuthority(ctx, entity.Authority{
				ID:         aid,
				Name:       strings.TrimSpace(name),
				RegionCode: strings.TrimSpace(region),
			})
			if err != nil {
				return withCode(exitDBWrite, err)
			}
			return writeJSON(a)
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "Authority UUID (generated when empty)")
	cmd.Flags().StringVar(&name, "name", "", "Authority name (required)")
	cmd.Flags().StringVar(&region, "region", "", "Region code covered by the authority (required)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("region")
	return cmd
}
