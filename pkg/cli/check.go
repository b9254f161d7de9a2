package cli

import (
	"flag"
	"fmt"
	"net/url"
)

func newCheckCommand() *Command {
	cmd := &Command{
		Name:        "check",
		Description: "Check whether the caller holds a permission",
		Flags:       flag.NewFlagSet("check", flag.ExitOnError),
	}
	cmd.Run = runCheck
	return cmd
}

func runCheck(args []string) error {
	flags := flag.NewFlagSet("check", flag.ExitOnError)
	workspace := flags.String("workspace", "", "Workspace ID (empty checks the global context)")
	permission := flags.String("permission", "", "Permission to check, e.g. card:create")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if *permission == "" {
		return fmt.Errorf("-permission is required")
	}

	client := NewClientFromEnv()

	req := map[string]string{"permission": *permission}
	if *workspace != "" {
		req["workspace_id"] = *workspace
	}

	var resp struct {
		UserID      string `json:"user_id"`
		WorkspaceID string `json:"workspace_id"`
		Permission  string `json:"permission"`
		Allowed     bool   `json:"allowed"`
	}
	if err := client.Post("/v1/authz/check", req, &resp); err != nil {
		return err
	}
	if err := printJSON(resp); err != nil {
		return err
	}
	if !resp.Allowed {
		return fmt.Errorf("permission %q denied", *permission)
	}
	return nil
}

func newPermissionsCommand() *Command {
	cmd := &Command{
		Name:        "permissions",
		Description: "List the caller's permissions, flat or per workspace",
		Flags:       flag.NewFlagSet("permissions", flag.ExitOnError),
	}
	cmd.Run = runPermissions
	return cmd
}

func runPermissions(args []string) error {
	flags := flag.NewFlagSet("permissions", flag.ExitOnError)
	workspace := flags.String("workspace", "", "Limit to one workspace")
	if err := flags.Parse(args); err != nil {
		return err
	}

	client := NewClientFromEnv()

	path := "/v1/me/permissions"
	if *workspace != "" {
		path = "/v1/workspaces/" + url.PathEscape(*workspace) + "/permissions"
	}

	var resp map[string]interface{}
	if err := client.Get(path, &resp); err != nil {
		return err
	}
	return printJSON(resp)
}

func newContextCommand() *Command {
	cmd := &Command{
		Name:        "context",
		Description: "Show a permission context (own or another user's)",
		Flags:       flag.NewFlagSet("context", flag.ExitOnError),
	}
	cmd.Run = runContext
	return cmd
}

func runContext(args []string) error {
	flags := flag.NewFlagSet("context", flag.ExitOnError)
	user := flags.String("user", "", "Target user ID (defaults to the caller)")
	if err := flags.Parse(args); err != nil {
		return err
	}

	client := NewClientFromEnv()

	path := "/v1/me/permissions/context"
	if *user != "" {
		path = "/v1/users/" + url.PathEscape(*user) + "/permissions/context"
	}

	var resp map[string]interface{}
	if err := client.Get(path, &resp); err != nil {
		return err
	}
	return printJSON(resp)
}

func newRoleCommand() *Command {
	cmd := &Command{
		Name:        "role",
		Description: "Show the caller's role in a workspace",
		Flags:       flag.NewFlagSet("role", flag.ExitOnError),
	}
	cmd.Run = runRole
	return cmd
}

func runRole(args []string) error {
	flags := flag.NewFlagSet("role", flag.ExitOnError)
	workspace := flags.String("workspace", "", "Workspace ID")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if *workspace == "" {
		return fmt.Errorf("-workspace is required")
	}

	client := NewClientFromEnv()

	var resp map[string]interface{}
	if err := client.Get("/v1/workspaces/"+url.PathEscape(*workspace)+"/role", &resp); err != nil {
		return err
	}
	return printJSON(resp)
}

func newInvalidateCommand() *Command {
	cmd := &Command{
		Name:        "invalidate",
		Description: "Drop cached authorization state for a user in a workspace",
		Flags:       flag.NewFlagSet("invalidate", flag.ExitOnError),
	}
	cmd.Run = runInvalidate
	return cmd
}

func runInvalidate(args []string) error {
	flags := flag.NewFlagSet("invalidate", flag.ExitOnError)
	user := flags.String("user", "", "User ID")
	workspace := flags.String("workspace", "", "Workspace ID")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if *user == "" || *workspace == "" {
		return fmt.Errorf("-user and -workspace are required")
	}

	client := NewClientFromEnv()

	req := map[string]string{"user_id": *user, "workspace_id": *workspace}
	if err := client.Post("/v1/authz/invalidate", req, nil); err != nil {
		return err
	}
	log.WithFields(map[string]interface{}{
		"user_id":      *user,
		"workspace_id": *workspace,
	}).Info("authorization cache invalidated")
	return nil
}
