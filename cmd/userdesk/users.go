package main

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/eion/userdesk/internal/cache"
	"github.com/eion/userdesk/internal/textfmt"
	"github.com/eion/userdesk/internal/userapi"
	"github.com/eion/userdesk/internal/userform"
	"github.com/eion/userdesk/internal/userlist"
	"github.com/eion/userdesk/internal/users"
)

var (
	showInactive bool
	maxCount     int
	assumeYes    bool

	draftName   string
	draftEmail  string
	draftAge    string
	draftActive bool
)

// usersCmd groups the direct calls to the user collection
var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Call the user collection directly",
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List users through the display filters",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient(cache.NewUserList())
		list, err := client.FetchAll(cmd.Context())
		if err != nil {
			return err
		}
		shown := userlist.ApplyFilters(list, showInactive, maxCount)
		renderUsers(cmd.OutOrStdout(), shown)
		fmt.Fprintf(cmd.OutOrStdout(), "\n%d shown, %d active of %d\n", len(shown), userapi.CountActive(list), len(list))
		return nil
	},
}

var usersGetCmd = &cobra.Command{
	Use:   "get [id]",
	Short: "Show one user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		user, ok := newClient(cache.NewUserList()).FetchByID(cmd.Context(), id)
		if !ok {
			return fmt.Errorf("user %d not found", id)
		}
		renderUsers(cmd.OutOrStdout(), []users.User{user})
		return nil
	},
}

var usersSearchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search users by name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		matches := newClient(cache.NewUserList()).Search(cmd.Context(), args[0])
		renderUsers(cmd.OutOrStdout(), userlist.ApplyFilters(matches, showInactive, maxCount))
		return nil
	},
}

var usersCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Validate a new user and create it",
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := submitDraft(nil)
		if err != nil {
			return err
		}
		resp, err := newClient(cache.NewUserList()).Create(cmd.Context(), req)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
		renderUsers(cmd.OutOrStdout(), []users.User{resp.Data})
		return nil
	},
}

var usersUpdateCmd = &cobra.Command{
	Use:   "update [id]",
	Short: "Validate changes to a user and save them",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		client := newClient(cache.NewUserList())
		current, ok := client.FetchByID(cmd.Context(), id)
		if !ok {
			return fmt.Errorf("user %d not found", id)
		}

		req, err := submitDraft(&current)
		if err != nil {
			return err
		}
		update := users.UpdateFromRequest(req)
		if cmd.Flags().Changed("active") {
			update.IsActive = &draftActive
		}
		user, err := client.Update(cmd.Context(), id, update)
		if err != nil {
			return err
		}
		renderUsers(cmd.OutOrStdout(), []users.User{user})
		return nil
	},
}

var usersDeleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a user (requires --yes)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		if !assumeYes {
			return fmt.Errorf("refusing to delete user %d without --yes", id)
		}
		if !newClient(cache.NewUserList()).Delete(cmd.Context(), id) {
			return fmt.Errorf("failed to delete user %d", id)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted user %d\n", id)
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{usersListCmd, usersSearchCmd} {
		c.Flags().BoolVar(&showInactive, "all", false, "include inactive users")
		c.Flags().IntVar(&maxCount, "max", 10, "maximum users shown, 0 for no limit")
	}
	for _, c := range []*cobra.Command{usersCreateCmd, usersUpdateCmd} {
		c.Flags().StringVar(&draftName, "name", "", "user name")
		c.Flags().StringVar(&draftEmail, "email", "", "email address")
		c.Flags().StringVar(&draftAge, "age", "", "age in years")
	}
	// New users are always created active.
	usersUpdateCmd.Flags().BoolVar(&draftActive, "active", true, "whether the user is active")
	usersDeleteCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "confirm the deletion")

	usersCmd.AddCommand(usersListCmd, usersGetCmd, usersSearchCmd, usersCreateCmd, usersUpdateCmd, usersDeleteCmd)
}

// submitDraft runs the flag values through the user form. With a seed,
// flags left empty keep the seeded values.
func submitDraft(seed *users.User) (users.CreateUserRequest, error) {
	form := userform.NewForm(userform.Config{Seed: seed}, logger.Named("userform"))
	defer form.Close()

	draft := form.Draft()
	if draftName != "" || seed == nil {
		draft.Name = draftName
	}
	if draftEmail != "" || seed == nil {
		draft.Email = draftEmail
	}
	if draftAge != "" || seed == nil {
		draft.Age = draftAge
	}
	form.Apply(draft)

	req, ok := form.Submit()
	if !ok {
		return users.CreateUserRequest{}, formError(form.FieldErrors())
	}
	return req, nil
}

type formError map[userform.Field]string

func (e formError) Error() string {
	msg := "invalid user"
	for _, field := range userform.Fields {
		if m, ok := e[field]; ok {
			msg += "\n  " + string(field) + ": " + m
		}
	}
	return msg
}

func parseID(arg string) (int, error) {
	id, err := strconv.Atoi(arg)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid user id %q", arg)
	}
	return id, nil
}

// renderUsers prints users as a table with capitalized names.
func renderUsers(w io.Writer, list []users.User) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tEMAIL\tAGE\tACTIVE\tCREATED")
	for _, u := range list {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%t\t%s\n",
			u.ID,
			textfmt.Capitalize(u.Name, false),
			u.Email,
			u.Age,
			u.IsActive,
			u.CreatedAt.Format("2006-01-02"))
	}
	_ = tw.Flush()
}
