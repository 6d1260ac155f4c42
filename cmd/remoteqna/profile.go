package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"remoteqna/internal/models"
)

func newProfileCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage connection profiles",
	}
	cmd.AddCommand(newProfileListCmd(opts))
	cmd.AddCommand(newProfileShowCmd(opts))
	cmd.AddCommand(newProfileSaveCmd(opts))
	cmd.AddCommand(newProfileDeleteCmd(opts))
	cmd.AddCommand(newProfileExportCmd(opts))
	cmd.AddCommand(newProfileImportCmd(opts))
	return cmd
}

func newProfileListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			profiles := opts.service.Profiles().List()
			if len(profiles) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no profiles saved")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tADDRESS\tUSER\tOS\tPASSWORD\tQNA PATH")
			for _, p := range profiles {
				pw := "-"
				if p.Password != "" {
					pw = "saved"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", p.Name, p.Address(), p.Username, p.OS, pw, p.QnAPath)
			}
			return tw.Flush()
		},
	}
}

func newProfileShowCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: "Show one profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := opts.service.Profile(args[0])
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "name:     %s\n", p.Name)
			fmt.Fprintf(w, "host:     %s\n", p.Host)
			fmt.Fprintf(w, "port:     %d\n", p.EffectivePort())
			fmt.Fprintf(w, "username: %s\n", p.Username)
			fmt.Fprintf(w, "os:       %s\n", p.OS)
			fmt.Fprintf(w, "qna_path: %s\n", p.QnAPath)
			switch {
			case p.Password == "":
				fmt.Fprintln(w, "password: (none)")
			case opts.service.Password(p) == "":
				fmt.Fprintln(w, "password: (saved, cannot be decrypted for this user@host)")
			default:
				fmt.Fprintln(w, "password: (saved)")
			}
			return nil
		},
	}
}

func newProfileSaveCmd(opts *rootOptions) *cobra.Command {
	var (
		p           models.ConnectionProfile
		osName      string
		askPassword bool
		force       bool
	)
	cmd := &cobra.Command{
		Use:   "save <name>",
		Short: "Create or update a profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p.Name = args[0]
			osType, err := models.ParseOS(osName)
			if err != nil {
				return err
			}
			p.OS = osType

			password := ""
			if askPassword {
				password, err = readPassword(fmt.Sprintf("Password for %s@%s: ", p.Username, p.Host))
				if err != nil {
					return err
				}
			}

			in := bufio.NewReader(os.Stdin)
			ask := func(name string) bool {
				if force {
					return true
				}
				return confirm(in, fmt.Sprintf("Profile '%s' already exists. Update it?", name), false)
			}
			if err := opts.service.SaveProfile(p, password, ask); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "profile %q saved\n", p.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&p.Host, "host", "", "remote host name or IP")
	cmd.Flags().IntVar(&p.Port, "port", models.DefaultPort, "SSH port")
	cmd.Flags().StringVarP(&p.Username, "user", "u", "", "SSH user")
	cmd.Flags().StringVar(&osName, "os", string(models.OSWindows), "remote OS: windows, linux or mac")
	cmd.Flags().StringVar(&p.QnAPath, "qna-path", "", "remote QnA path (default depends on --os)")
	cmd.Flags().BoolVarP(&askPassword, "password", "p", false, "prompt for the password and store it encrypted")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing profile without asking")
	_ = cmd.MarkFlagRequired("host")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newProfileDeleteCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <name>",
		Aliases: []string{"rm"},
		Short:   "Delete a profile",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.service.DeleteProfile(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "profile %q deleted\n", args[0])
			return nil
		},
	}
}

func newProfileExportCmd(opts *rootOptions) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write all profiles as JSON (passwords stay encrypted)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var w io.Writer = cmd.OutOrStdout()
			if out != "" && out != "-" {
				f, err := os.OpenFile(out, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			return opts.service.Profiles().Export(w)
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "-", "output file")
	return cmd
}

func newProfileImportCmd(opts *rootOptions) *cobra.Command {
	var replace bool
	cmd := &cobra.Command{
		Use:   "import <file|->",
		Short: "Import profiles from JSON, merging by name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}
			n, err := opts.service.Profiles().Import(r, replace)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d profiles stored\n", n)
			return nil
		},
	}
	cmd.Flags().BoolVar(&replace, "replace", false, "replace all existing profiles")
	return cmd
}
