package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/yukikurage/hive/internal/database"
	"github.com/yukikurage/hive/internal/models"
	"github.com/yukikurage/hive/internal/services"
)

var createMemberInput struct {
	name     string
	email    string
	password string
	role     string
	pin      string
}

// createMemberCmd bootstraps accounts, typically the first Admin
var createMemberCmd = &cobra.Command{
	Use:   "create-member",
	Short: "Create an account without OTP verification",
	Long: `Create a member directly in the database.

Head and Admin accounts need --pin; it is required at login.`,
	RunE: runCreateMember,
}

func init() {
	f := createMemberCmd.Flags()
	f.StringVar(&createMemberInput.name, "name", "", "Display name")
	f.StringVar(&createMemberInput.email, "email", "", "Email address")
	f.StringVar(&createMemberInput.password, "password", "", "Password")
	f.StringVar(&createMemberInput.role, "role", string(models.RoleUser), "Role: User, Head or Admin")
	f.StringVar(&createMemberInput.pin, "pin", "", "Login PIN for Head and Admin accounts")

	_ = createMemberCmd.MarkFlagRequired("name")
	_ = createMemberCmd.MarkFlagRequired("email")
	_ = createMemberCmd.MarkFlagRequired("password")
}

func runCreateMember(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := newApp(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := database.Migrate(a.db, log); err != nil {
		return err
	}

	member, err := a.auth.CreateMember(cmd.Context(), services.CreateMemberInput{
		Name:     createMemberInput.name,
		Email:    createMemberInput.email,
		Password: createMemberInput.password,
		Role:     models.Role(createMemberInput.role),
		PIN:      createMemberInput.pin,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "created %s %s (id %d)\n", member.Role, member.Email, member.ID)
	return nil
}
