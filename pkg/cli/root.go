package cli

import (
	"flag"
	"fmt"
	"os"
)

// Command represents a CLI command
type Command struct {
	Name        string
	Description string
	Run         func(args []string) error
	Subcommands map[string]*Command
	Flags       *flag.FlagSet
}

// NewRootCommand creates the root command
func NewRootCommand() *Command {
	root := &Command{
		Name:        "loomctl",
		Description: "loomctl - workspace authorization CLI",
		Subcommands: make(map[string]*Command),
		Flags:       flag.NewFlagSet("loomctl", flag.ExitOnError),
	}

	root.Subcommands["check"] = newCheckCommand()
	root.Subcommands["permissions"] = newPermissionsCommand()
	root.Subcommands["context"] = newContextCommand()
	root.Subcommands["role"] = newRoleCommand()
	root.Subcommands["invalidate"] = newInvalidateCommand()

	return root
}

// Execute runs the command
func (c *Command) Execute() error {
	args := os.Args[1:]
	if len(args) == 0 {
		return c.usage()
	}

	if args[0] == "-h" || args[0] == "--help" {
		return c.usage()
	}

	if subcmd, ok := c.Subcommands[args[0]]; ok {
		return subcmd.Run(args[1:])
	}

	return fmt.Errorf("unknown command: %s", args[0])
}

// usage prints the command usage
func (c *Command) usage() error {
	fmt.Printf("Usage: %s <command> [args]\n\n", c.Name)
	fmt.Printf("Commands:\n")
	for name, cmd := range c.Subcommands {
		fmt.Printf("  %-15s %s\n", name, cmd.Description)
	}
	fmt.Printf("\nEnvironment:\n")
	fmt.Printf("  LOOM_URL     API base URL (default http://localhost:8080)\n")
	fmt.Printf("  LOOM_TOKEN   Bearer token\n")
	return nil
}
