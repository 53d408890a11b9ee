package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"certhub/client"
	"certhub/models"

	"github.com/spf13/cobra"
)

func (c *cli) verifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <certificate-number>",
		Short: "Verify a certificate by number",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := c.client().Verify(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if c.output() != "table" {
				return printStructured(out, c.output(), res)
			}
			if !res.Valid {
				fmt.Fprintf(out, "INVALID (%s): %s\n", res.Status, res.Message)
				return nil
			}
			cert := res.Certificate
			printTable(out, []string{"Field", "Value"}, [][]string{
				{"Number", cert.CertificateNumber},
				{"Name", cert.FullName},
				{"Course", cert.CourseName},
				{"Subtitle", truncate(cert.CourseSubtitle, 60)},
				{"Issued", cert.IssueDate},
				{"Status", string(cert.Status)},
			})
			return nil
		},
	}
}

func (c *cli) logViewCmd() *cobra.Command {
	var ip, userAgent string
	cmd := &cobra.Command{
		Use:   "log-view <certificate-number>",
		Short: "Report a view seen by an external verification page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			counted, err := c.client().LogView(cmd.Context(), client.LogViewRequest{
				CertificateNumber: args[0],
				ViewedAt:          time.Now().UTC(),
				IPAddress:         ip,
				UserAgent:         userAgent,
			})
			if err != nil {
				return err
			}
			if counted {
				fmt.Fprintln(cmd.OutOrStdout(), "View logged and counted")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "View logged (duplicate, not counted)")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&ip, "ip", "", "Viewer IP address")
	cmd.Flags().StringVar(&userAgent, "user-agent", "certctl", "Viewer user agent")
	return cmd
}

func (c *cli) loginCmd() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in as an admin and print the bearer token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv(envPrefix + "_PASSWORD")
			}
			token, err := c.client().Login(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Admin email")
	cmd.Flags().StringVar(&password, "password", "", "Admin password (or "+envPrefix+"_PASSWORD)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func (c *cli) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all certificates",
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := c.adminClient()
			if err != nil {
				return err
			}
			certs, err := api.ListCertificates(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if c.output() != "table" {
				return printStructured(out, c.output(), certs)
			}
			rows := make([][]string, 0, len(certs))
			for _, cert := range certs {
				rows = append(rows, []string{
					cert.CertificateNumber,
					truncate(cert.FullName, 30),
					truncate(cert.CourseName, 40),
					string(cert.Status),
					strconv.FormatInt(cert.VerificationCount, 10),
				})
			}
			printTable(out, []string{"Number", "Name", "Course", "Status", "Views"}, rows)
			return nil
		},
	}
}

func (c *cli) revokeCmd() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "revoke <certificate-number>",
		Short: "Revoke a certificate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := c.adminClient()
			if err != nil {
				return err
			}
			cert, err := api.Revoke(cmd.Context(), args[0], reason)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Certificate %s revoked\n", cert.CertificateNumber)
			return nil
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "Revocation reason")
	return cmd
}

func (c *cli) statusCmd() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "status <certificate-number> <active|expired|revoked>",
		Short: "Set a certificate's status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			status := models.CertificateStatus(args[1])
			if !status.Valid() {
				return fmt.Errorf("invalid status %q (use active, expired or revoked)", args[1])
			}
			api, err := c.adminClient()
			if err != nil {
				return err
			}
			cert, err := api.UpdateStatus(cmd.Context(), args[0], status, reason)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Certificate %s is now %s\n", cert.CertificateNumber, cert.Status)
			return nil
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "Reason recorded with a revocation")
	return cmd
}

func (c *cli) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <certificate-number>",
		Short: "Delete a certificate record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := c.adminClient()
			if err != nil {
				return err
			}
			if err := api.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Certificate %s deleted\n", args[0])
			return nil
		},
	}
}

func (c *cli) generateCmd() *cobra.Command {
	var (
		req     client.CertificateRequest
		outPath string
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a certificate PDF",
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := c.adminClient()
			if err != nil {
				return err
			}
			doc, err := api.Generate(cmd.Context(), req)
			if err != nil {
				return err
			}
			if outPath == "" {
				outPath = "certificate-" + doc.CertificateNumber + ".pdf"
			}
			if err := os.WriteFile(outPath, doc.PDF, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", outPath, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Certificate %s written to %s\n", doc.CertificateNumber, outPath)
			if !doc.Persisted {
				fmt.Fprintln(cmd.ErrOrStderr(), "Warning: the certificate record was not saved")
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&req.FullName, "name", "", "Recipient full name")
	f.StringVar(&req.CourseName, "course", "", "Course name")
	f.StringVar(&req.CourseSubtitle, "subtitle", "", "Course subtitle")
	f.StringVar(&req.CertificateNumber, "number", "", "Certificate number (generated when empty)")
	f.StringVar(&req.IssueDate, "issue-date", "", "Issue date as printed")
	f.StringVar(&req.InstructorName, "instructor", "", "Instructor name")
	f.StringVar(&req.Email, "email", "", "Recipient email")
	f.StringVar(&req.ExpiryDate, "expiry-date", "", "Expiry date (YYYY-MM-DD)")
	f.StringVar(&outPath, "out", "", "Output file")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("course")
	return cmd
}

func (c *cli) exportCmd() *cobra.Command {
	var format, outPath string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export all certificate records as csv or xlsx",
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := c.adminClient()
			if err != nil {
				return err
			}
			data, err := api.Export(cmd.Context(), format)
			if err != nil {
				return err
			}
			if outPath == "" {
				_, err := cmd.OutOrStdout().Write(data)
				return err
			}
			return os.WriteFile(outPath, data, 0o644)
		},
	}
	cmd.Flags().StringVar(&format, "format", "csv", "csv or xlsx")
	cmd.Flags().StringVar(&outPath, "out", "", "Output file (stdout when empty)")
	return cmd
}
